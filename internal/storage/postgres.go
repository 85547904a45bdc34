package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/ability-tracker/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

type rowScanner interface {
	Scan(dest ...any) error
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 10
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 2
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Pool exposes the connection pool for migrations
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Tasks ---

const taskColumns = `id, title, start_time, end_time, duration, planned_duration, task_type, status,
	completion, score, notes, ability_stat, exp_gain, exp_granted, created_at, updated_at`

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var status string
	var notes, abilityStat sql.NullString

	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.StartTime,
		&t.EndTime,
		&t.DurationMinutes,
		&t.PlannedMinutes,
		&t.Category,
		&status,
		&t.Completion,
		&t.Score,
		&notes,
		&abilityStat,
		&t.ExperienceGain,
		&t.ExperienceGranted,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = models.TaskStatus(status)
	t.Notes = notes.String
	t.AbilityStat = abilityStat.String
	return &t, nil
}

// CreateTask inserts a task, assigning an ID when missing
func (r *PostgresRepository) CreateTask(ctx context.Context, t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.Title,
		t.StartTime,
		t.EndTime,
		t.DurationMinutes,
		t.PlannedMinutes,
		t.Category,
		string(t.Status),
		t.Completion,
		t.Score,
		nullString(t.Notes),
		nullString(t.AbilityStat),
		t.ExperienceGain,
		t.ExperienceGranted,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetTask retrieves a task by ID
func (r *PostgresRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return t, nil
}

// UpdateTask overwrites every mutable column of a task
func (r *PostgresRepository) UpdateTask(ctx context.Context, t *models.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, start_time = $3, end_time = $4, duration = $5, planned_duration = $6,
			task_type = $7, status = $8, completion = $9, score = $10, notes = $11,
			ability_stat = $12, exp_gain = $13, exp_granted = $14, updated_at = $15
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		t.ID,
		t.Title,
		t.StartTime,
		t.EndTime,
		t.DurationMinutes,
		t.PlannedMinutes,
		t.Category,
		string(t.Status),
		t.Completion,
		t.Score,
		nullString(t.Notes),
		nullString(t.AbilityStat),
		t.ExperienceGain,
		t.ExperienceGranted,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}

	return nil
}

// DeleteTask deletes a task by ID
func (r *PostgresRepository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	return nil
}

// ListTasks returns tasks matching filters, newest start first
func (r *PostgresRepository) ListTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.From != nil {
		query += fmt.Sprintf(" AND start_time >= $%d", argNum)
		args = append(args, *filters.From)
		argNum++
	}

	if filters.To != nil {
		query += fmt.Sprintf(" AND start_time < $%d", argNum)
		args = append(args, *filters.To)
		argNum++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	if filters.Category != "" {
		query += fmt.Sprintf(" AND task_type = $%d", argNum)
		args = append(args, filters.Category)
		argNum++
	}

	query += " ORDER BY start_time DESC, id"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

// --- Abilities ---

const abilityColumns = `id, name, display_name, description, icon, color, current_exp, level, max_level, created_at, updated_at`

func scanAbility(row rowScanner) (*models.Ability, error) {
	var a models.Ability
	var description, icon, color sql.NullString

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.DisplayName,
		&description,
		&icon,
		&color,
		&a.CurrentExperience,
		&a.Level,
		&a.MaxLevel,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Description = description.String
	a.Icon = icon.String
	a.Color = color.String
	return &a, nil
}

// ListAbilities returns all abilities in seed order
func (r *PostgresRepository) ListAbilities(ctx context.Context) ([]*models.Ability, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+abilityColumns+` FROM abilities ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list abilities: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Ability, 0)
	for rows.Next() {
		a, err := scanAbility(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ability: %w", err)
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

// GetAbility retrieves an ability by its stat name
func (r *PostgresRepository) GetAbility(ctx context.Context, name string) (*models.Ability, error) {
	a, err := scanAbility(r.pool.QueryRow(ctx, `SELECT `+abilityColumns+` FROM abilities WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ability: %w", err)
	}
	return a, nil
}

// EnsureAbility inserts a by name unless it exists; a is replaced by the stored row
func (r *PostgresRepository) EnsureAbility(ctx context.Context, a *models.Ability) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	result, err := r.pool.Exec(ctx, `
		INSERT INTO abilities (`+abilityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (name) DO NOTHING
	`,
		a.ID,
		a.Name,
		a.DisplayName,
		nullString(a.Description),
		nullString(a.Icon),
		nullString(a.Color),
		a.CurrentExperience,
		a.Level,
		a.MaxLevel,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to ensure ability: %w", err)
	}

	stored, err := r.GetAbility(ctx, a.Name)
	if err != nil {
		return false, err
	}
	if stored != nil {
		*a = *stored
	}

	return result.RowsAffected() > 0, nil
}

// ModifyAbility locks the ability row for the duration of fn
func (r *PostgresRepository) ModifyAbility(ctx context.Context, name string, fn func(*models.Ability) error) (*models.Ability, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := scanAbility(tx.QueryRow(ctx, `SELECT `+abilityColumns+` FROM abilities WHERE name = $1 FOR UPDATE`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ability %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock ability: %w", err)
	}

	if err := fn(a); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE abilities
		SET current_exp = $2, level = $3, max_level = $4, updated_at = $5
		WHERE id = $1
	`, a.ID, a.CurrentExperience, a.Level, a.MaxLevel, a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update ability: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ability update: %w", err)
	}

	return a, nil
}

// --- Rewards ---

const rewardColumns = `id, name, description, type, value, icon, is_unlocked, unlock_condition, unlocked_at, created_at`

func scanReward(row rowScanner) (*models.Reward, error) {
	var rw models.Reward
	var kind string
	var icon sql.NullString
	var unlockedAt sql.NullTime

	err := row.Scan(
		&rw.ID,
		&rw.Name,
		&rw.Description,
		&kind,
		&rw.Value,
		&icon,
		&rw.IsUnlocked,
		&rw.UnlockCondition,
		&unlockedAt,
		&rw.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rw.Kind = models.RewardKind(kind)
	rw.Icon = icon.String
	if unlockedAt.Valid {
		rw.UnlockedAt = &unlockedAt.Time
	}
	return &rw, nil
}

func (r *PostgresRepository) ListRewards(ctx context.Context) ([]*models.Reward, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+rewardColumns+` FROM rewards ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Reward, 0)
	for rows.Next() {
		rw, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		out = append(out, rw)
	}

	return out, rows.Err()
}

func (r *PostgresRepository) GetReward(ctx context.Context, id string) (*models.Reward, error) {
	rw, err := scanReward(r.pool.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}
	return rw, nil
}

// EnsureReward inserts rw by name unless it exists; rw is replaced by the stored row
func (r *PostgresRepository) EnsureReward(ctx context.Context, rw *models.Reward) (bool, error) {
	if rw.ID == "" {
		rw.ID = uuid.NewString()
	}

	result, err := r.pool.Exec(ctx, `
		INSERT INTO rewards (`+rewardColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (name) DO NOTHING
	`,
		rw.ID,
		rw.Name,
		rw.Description,
		string(rw.Kind),
		rw.Value,
		nullString(rw.Icon),
		rw.IsUnlocked,
		rw.UnlockCondition,
		nullTime(rw.UnlockedAt),
		rw.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to ensure reward: %w", err)
	}

	stored, err := scanReward(r.pool.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE name = $1`, rw.Name))
	if err != nil {
		return false, fmt.Errorf("failed to reload reward: %w", err)
	}
	*rw = *stored

	return result.RowsAffected() > 0, nil
}

// UnlockReward flips is_unlocked once; later calls report false
func (r *PostgresRepository) UnlockReward(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.unlock(ctx, "rewards", id, at)
}

// --- Achievements ---

const achievementColumns = `id, name, description, icon, is_unlocked, unlock_condition, unlocked_at, created_at`

func scanAchievement(row rowScanner) (*models.Achievement, error) {
	var a models.Achievement
	var icon sql.NullString
	var unlockedAt sql.NullTime

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Description,
		&icon,
		&a.IsUnlocked,
		&a.UnlockCondition,
		&unlockedAt,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Icon = icon.String
	if unlockedAt.Valid {
		a.UnlockedAt = &unlockedAt.Time
	}
	return &a, nil
}

func (r *PostgresRepository) ListAchievements(ctx context.Context) ([]*models.Achievement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+achievementColumns+` FROM achievements ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Achievement, 0)
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

func (r *PostgresRepository) GetAchievement(ctx context.Context, id string) (*models.Achievement, error) {
	a, err := scanAchievement(r.pool.QueryRow(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get achievement: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) EnsureAchievement(ctx context.Context, a *models.Achievement) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	result, err := r.pool.Exec(ctx, `
		INSERT INTO achievements (`+achievementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO NOTHING
	`,
		a.ID,
		a.Name,
		a.Description,
		nullString(a.Icon),
		a.IsUnlocked,
		a.UnlockCondition,
		nullTime(a.UnlockedAt),
		a.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to ensure achievement: %w", err)
	}

	stored, err := scanAchievement(r.pool.QueryRow(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE name = $1`, a.Name))
	if err != nil {
		return false, fmt.Errorf("failed to reload achievement: %w", err)
	}
	*a = *stored

	return result.RowsAffected() > 0, nil
}

func (r *PostgresRepository) UnlockAchievement(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.unlock(ctx, "achievements", id, at)
}

// unlock is shared by rewards and achievements; table is never user input
func (r *PostgresRepository) unlock(ctx context.Context, table, id string, at time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx,
		`UPDATE `+table+` SET is_unlocked = TRUE, unlocked_at = $2 WHERE id = $1 AND NOT is_unlocked`,
		id, at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to unlock %s: %w", table, err)
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s: %w", table, err)
	}
	if !exists {
		return false, fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return false, nil
}

// --- Daily scores ---

const dailyScoreColumns = `id, date, total_score, task_count, level, updated_at`

func scanDailyScore(row rowScanner) (*models.DailyScore, error) {
	var s models.DailyScore
	err := row.Scan(&s.ID, &s.Date, &s.TotalScore, &s.TaskCount, &s.Level, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Date = Day(s.Date)
	return &s, nil
}

// UpsertDailyScore writes the aggregate for s.Date, keeping an existing ID
func (r *PostgresRepository) UpsertDailyScore(ctx context.Context, s *models.DailyScore) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Date = Day(s.Date)

	err := r.pool.QueryRow(ctx, `
		INSERT INTO daily_scores (`+dailyScoreColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (date) DO UPDATE
		SET total_score = EXCLUDED.total_score,
			task_count = EXCLUDED.task_count,
			level = EXCLUDED.level,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`, s.ID, s.Date, s.TotalScore, s.TaskCount, s.Level, s.UpdatedAt).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert daily score: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetDailyScore(ctx context.Context, date time.Time) (*models.DailyScore, error) {
	s, err := scanDailyScore(r.pool.QueryRow(ctx, `SELECT `+dailyScoreColumns+` FROM daily_scores WHERE date = $1`, Day(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get daily score: %w", err)
	}
	return s, nil
}

// ListDailyScores returns scores with from <= date <= to, newest first
func (r *PostgresRepository) ListDailyScores(ctx context.Context, from, to time.Time) ([]*models.DailyScore, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+dailyScoreColumns+` FROM daily_scores WHERE date >= $1 AND date <= $2 ORDER BY date DESC`,
		Day(from), Day(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily scores: %w", err)
	}
	defer rows.Close()

	out := make([]*models.DailyScore, 0)
	for rows.Next() {
		s, err := scanDailyScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily score: %w", err)
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

// Helper functions for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
