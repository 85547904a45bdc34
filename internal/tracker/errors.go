package tracker

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrAbilityNotFound     = errors.New("ability not found")
	ErrRewardNotFound      = errors.New("reward not found")
	ErrAchievementNotFound = errors.New("achievement not found")
)

// ValidationError rejects a single-record operation on malformed input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
