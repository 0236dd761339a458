package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInputUnreadable marks media that cannot be probed; fatal for the job.
	ErrInputUnreadable = errors.New("input unreadable")
	// ErrKeyConflict marks a cache invariant violation: two producers published
	// divergent content for one key. Always fatal, never silently ignored.
	ErrKeyConflict = errors.New("cache key conflict")
	// ErrCacheUnavailable marks a cache store outage; the pipeline degrades to
	// uncached execution rather than failing the job.
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
	ErrTimeout          = errors.New("timeout")
	ErrTransient        = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether an error must abort the whole job regardless of the
// failing stage's optional flag.
func Fatal(err error) bool {
	return errors.Is(err, ErrInputUnreadable) || errors.Is(err, ErrKeyConflict)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
