package commenter

import (
	"errors"
	"fmt"
	"time"
)

// ErrWriteForbidden means the discussion thread rejected the write (closed,
// restricted, or the account must join first). Retried: restrictions can lift.
var ErrWriteForbidden = errors.New("discussion group is closed for writing")

// RateLimitError carries the backend-instructed wait before the next call.
type RateLimitError struct {
	Wait time.Duration
	Err  error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: wait %s", e.Wait)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// FailureClass buckets a delivery attempt's result.
type FailureClass int

const (
	ClassNone FailureClass = iota
	ClassWriteForbidden
	ClassRateLimited
	ClassOther
)

func (c FailureClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassWriteForbidden:
		return "write_forbidden"
	case ClassRateLimited:
		return "rate_limited"
	default:
		return "other"
	}
}

// Classify maps an attempt error to its class. A nil error is ClassNone.
func Classify(err error) FailureClass {
	var rl *RateLimitError
	switch {
	case err == nil:
		return ClassNone
	case errors.As(err, &rl):
		return ClassRateLimited
	case errors.Is(err, ErrWriteForbidden):
		return ClassWriteForbidden
	default:
		return ClassOther
	}
}

// Describe renders an attempt error for the operator report.
func Describe(err error) string {
	var rl *RateLimitError
	switch Classify(err) {
	case ClassNone:
		return ""
	case ClassRateLimited:
		errors.As(err, &rl)
		return fmt.Sprintf("rate limited: backend asked for a %s wait", rl.Wait)
	case ClassWriteForbidden:
		return err.Error()
	default:
		return fmt.Sprintf("%s: %v", errorType(err), err)
	}
}

// errorType names the concrete type behind err, skipping fmt's wrapper.
func errorType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil || fmt.Sprintf("%T", err) != "*fmt.wrapError" {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}
