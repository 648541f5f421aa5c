package common

import (
	"errors"
	"fmt"

	"docverify/constants"
)

// Common application errors
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidInput  = errors.New("invalid input")
)

// ErrorKind classifies a stage failure. The orchestrator is the only
// component that decides retry-vs-fail from a kind; adapters only raise.
type ErrorKind string

const (
	KindTransient         ErrorKind = "TRANSIENT_IO"       // retryable, bounded
	KindUnsupportedFormat ErrorKind = "UNSUPPORTED_FORMAT" // fatal
	KindNotFound          ErrorKind = "NOT_FOUND"          // fatal, dangling reference
	KindConversion        ErrorKind = "CONVERSION"         // retryable once
	KindRuleSetConfig     ErrorKind = "RULESET_CONFIG"     // fatal, deployment bug
	KindPersistence       ErrorKind = "PERSISTENCE"        // retryable, own budget
	KindCancelled         ErrorKind = "CANCELLED"          // terminal, operator initiated
)

// PipelineError is a typed stage failure.
type PipelineError struct {
	Kind    ErrorKind
	Stage   constants.Stage
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewError builds a PipelineError. Stage is filled in by the orchestrator
// when the adapter did not set it.
func NewError(kind ErrorKind, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Cause: cause}
}

// Errorf builds a PipelineError with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from err. Unclassified errors (including
// deadline expiry on external calls) are treated as transient so they
// stay inside the bounded retry budget rather than failing hard.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// Retryable reports whether a failure of this kind may be retried at all.
func Retryable(kind ErrorKind) bool {
	switch kind {
	case KindTransient, KindConversion, KindPersistence:
		return true
	}
	return false
}

// AttemptBudget returns the total attempts allowed for a failure kind
// given the configured per-stage cap. Conversion failures are retried at
// most once since flaky renderers either recover immediately or not at all.
func AttemptBudget(kind ErrorKind, stageCap int) int {
	switch kind {
	case KindConversion:
		return 2
	case KindTransient, KindPersistence:
		return stageCap
	default:
		return 1
	}
}

// Message renders the kind + message pair recorded on the job.
func Message(err error) (kind, msg string) {
	k := KindOf(err)
	var pe *PipelineError
	if errors.As(err, &pe) {
		return string(k), pe.Message
	}
	return string(k), err.Error()
}
