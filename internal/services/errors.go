package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/703deuce/upscale/internal/queue"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrInference     = errors.New("inference error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

type serviceError struct {
	marker    error
	stage     string
	operation string
	message   string
	cause     error
}

func (e *serviceError) Error() string {
	detail := buildDetail(e.stage, e.operation, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.marker.Error(), detail, e.cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.marker.Error(), detail)
}

func (e *serviceError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.marker, e.cause}
	}
	return []error{e.marker}
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later status classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &serviceError{
		marker:    marker,
		stage:     strings.TrimSpace(stage),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		cause:     err,
	}
}

// ErrorDetails exposes the structured context Wrap attaches to an error.
type ErrorDetails struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

// Details extracts structured context from an error produced by Wrap. Errors
// from other sources yield zero-valued fields with Cause set to the error
// itself.
func Details(err error) ErrorDetails {
	var svcErr *serviceError
	if errors.As(err, &svcErr) {
		return ErrorDetails{
			Marker:    svcErr.marker,
			Stage:     svcErr.stage,
			Operation: svcErr.operation,
			Message:   svcErr.message,
			Cause:     svcErr.cause,
		}
	}
	return ErrorDetails{Cause: err}
}

// FailureStatus maps a stage error to the queue status the workflow manager
// should persist after the stage fails. Request-shaped problems land in review
// so the caller can correct the job; tool and inference failures land in
// failed and stay retryable.
func FailureStatus(err error) queue.Status {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return queue.StatusReview
	default:
		return queue.StatusFailed
	}
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
