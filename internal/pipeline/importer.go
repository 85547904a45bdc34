// Package pipeline turns pasted calendar text into scored, classified tasks
// and credits the resulting experience.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/terra-clan/ability-tracker/internal/calendar"
	"github.com/terra-clan/ability-tracker/internal/classifier"
	"github.com/terra-clan/ability-tracker/internal/models"
	"github.com/terra-clan/ability-tracker/internal/tracker"
)

// Stages at which an event can fail
const (
	StageValidate = "validate"
	StagePersist  = "persist"
	StageGrant    = "grant"
	StageEvaluate = "evaluate"
)

// ImportedTask is a created task with the classification it was built from
type ImportedTask struct {
	Task           *models.Task      `json:"task"`
	Classification classifier.Result `json:"classification"`
	LevelUp        *models.LevelUp   `json:"levelUp,omitempty"`
}

// Failure records an event that did not make it through the pipeline
type Failure struct {
	Title string `json:"title"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// ImportReport summarizes one import
type ImportReport struct {
	Parsed   int              `json:"parsed"`
	Imported []ImportedTask   `json:"imported"`
	LevelUps []models.LevelUp `json:"levelUps"`
	Unlocks  models.Unlocks   `json:"unlocks"`
	Failures []Failure        `json:"failures"`
}

// Importer runs calendar text through parse, classify, persist, grant and evaluate
type Importer struct {
	classifier *classifier.Classifier
	tracker    *tracker.Service
	loc        *time.Location
}

// NewImporter creates an importer. Calendar dates are read in loc.
func NewImporter(c *classifier.Classifier, svc *tracker.Service, loc *time.Location) *Importer {
	if loc == nil {
		loc = time.Local
	}
	return &Importer{classifier: c, tracker: svc, loc: loc}
}

// Import processes every event in text. A failing event is recorded in the
// report and skipped; the error return is reserved for cancellation.
func (im *Importer) Import(ctx context.Context, text string) (*ImportReport, error) {
	events := calendar.ParseAll(text, im.loc)

	report := &ImportReport{
		Parsed:   len(events),
		Imported: make([]ImportedTask, 0, len(events)),
		LevelUps: []models.LevelUp{},
		Unlocks:  models.Unlocks{RewardIDs: []string{}, AchievementIDs: []string{}},
		Failures: []Failure{},
	}
	if len(events) == 0 {
		return report, nil
	}

	titles := make([]string, len(events))
	for i, ev := range events {
		titles[i] = ev.Title
	}
	results := im.classifier.ClassifyBatch(ctx, titles)

	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		im.importEvent(ctx, ev, results[i], report)
	}

	slog.Info("calendar import finished",
		"parsed", report.Parsed,
		"imported", len(report.Imported),
		"failed", len(report.Failures),
		"level_ups", len(report.LevelUps),
	)
	return report, nil
}

func (im *Importer) importEvent(ctx context.Context, ev calendar.Event, cls classifier.Result, report *ImportReport) {
	fail := func(stage string, err error) {
		slog.Warn("calendar event skipped", "title", ev.Title, "stage", stage, "error", err)
		report.Failures = append(report.Failures, Failure{Title: ev.Title, Stage: stage, Error: err.Error()})
	}

	ev = spanMidnight(ev)

	task, err := im.tracker.CreateTask(ctx, models.CreateTaskRequest{
		Title:           ev.Title,
		StartTime:       ev.Start,
		EndTime:         ev.End,
		DurationMinutes: ev.DurationMinutes,
		PlannedMinutes:  ev.DurationMinutes,
		Category:        cls.Category,
		AbilityStat:     cls.AbilityStat,
		ExperienceGain:  cls.ExperienceGain,
	})
	if err != nil {
		var ve *tracker.ValidationError
		if errors.As(err, &ve) {
			fail(StageValidate, err)
		} else {
			fail(StagePersist, err)
		}
		return
	}

	imported := ImportedTask{Task: task, Classification: cls}

	lu, err := im.tracker.AwardTaskExperience(ctx, task.ID)
	if err != nil {
		report.Imported = append(report.Imported, imported)
		fail(StageGrant, err)
		return
	}
	if lu != nil {
		task.ExperienceGranted = true
		imported.LevelUp = lu
	}
	report.Imported = append(report.Imported, imported)

	if lu == nil || !lu.LeveledUp {
		return
	}
	report.LevelUps = append(report.LevelUps, *lu)

	unlocks, err := im.tracker.EvaluateRewards(ctx)
	if err != nil {
		fail(StageEvaluate, err)
		return
	}
	report.Unlocks.Merge(unlocks)
}

// spanMidnight moves an end time that lies before the start to the next
// day, so a block such as 23:00 - 01:00 becomes a two-hour overnight event.
func spanMidnight(ev calendar.Event) calendar.Event {
	if !ev.End.Before(ev.Start) {
		return ev
	}
	ev.End = ev.End.AddDate(0, 0, 1)
	ev.DurationMinutes = int(math.Round(ev.End.Sub(ev.Start).Minutes()))
	return ev
}
