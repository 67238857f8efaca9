package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("job not found")
	ErrTerminal           = errors.New("job is in a terminal state")
	ErrProgressRegression = errors.New("progress cannot decrease")
	ErrNoJobAvailable     = errors.New("no queued job available")
)

// ErrorKind classifies a pipeline failure for reporting to clients.
type ErrorKind string

const (
	KindInput        ErrorKind = "input"
	KindConnectivity ErrorKind = "connectivity"
	KindTimeout      ErrorKind = "timeout"
	KindSchema       ErrorKind = "schema"
	KindValidation   ErrorKind = "validation"
	KindArtifact     ErrorKind = "artifact"
	KindInternal     ErrorKind = "internal"
)

// InputError means the submitted media or transcript is unusable.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return e.Reason }

// ConnectivityError means the analysis backend could not be reached at all.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("cannot reach analysis backend (is the model server running?): %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// TimeoutError means every analysis attempt ran out of time.
type TimeoutError struct {
	Attempts     int
	FinalTimeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analysis timed out after %d attempts (final timeout %s)", e.Attempts, e.FinalTimeout)
}

// BackendError wraps an unexpected failure from the analysis backend.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string { return fmt.Sprintf("analysis backend: %v", e.Err) }
func (e *BackendError) Unwrap() error { return e.Err }

// SchemaError means the model response could not be parsed into the expected
// shape even after repair. Snippet carries a bounded excerpt of the offending
// payload for logs.
type SchemaError struct {
	Field   string
	Snippet string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("response field %q does not match expected schema", e.Field)
	}
	return "response is not valid JSON"
}

// ValidationError means the parsed response violated a content rule, such as
// a quiz question whose answer matches none of its options. Question is the
// zero-based index.
type ValidationError struct {
	Question int
	Detail   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %d: %s", e.Question+1, e.Detail)
}

// ArtifactError wraps a failure while generating one output artifact.
type ArtifactError struct {
	Kind ArtifactKind
	Err  error
}

func (e *ArtifactError) Error() string { return fmt.Sprintf("generating %s artifact: %v", e.Kind, e.Err) }
func (e *ArtifactError) Unwrap() error { return e.Err }

// Classify maps an error to its reporting kind. Unrecognized errors are
// internal.
func Classify(err error) ErrorKind {
	var (
		inputErr      *InputError
		connErr       *ConnectivityError
		timeoutErr    *TimeoutError
		schemaErr     *SchemaError
		validationErr *ValidationError
		artifactErr   *ArtifactError
	)
	switch {
	case errors.As(err, &inputErr):
		return KindInput
	case errors.As(err, &connErr):
		return KindConnectivity
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &schemaErr):
		return KindSchema
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &artifactErr):
		return KindArtifact
	default:
		return KindInternal
	}
}
