package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateRegistration = errors.New("design already has an open cache registration")
	ErrUnknownRegistration   = errors.New("design has no open cache registration")
	ErrDiscoveryRootMissing  = errors.New("discovery root directory does not exist")
	ErrCleanupNotConfirmed   = errors.New("force cleanup requires explicit confirmation")
)

// ConfigError is fatal and detected before any design is processed.
type ConfigError struct {
	Msg string
	Err error
}

func NewConfigError(msg string, err error) *ConfigError {
	return &ConfigError{Msg: msg, Err: err}
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StageFailure is recoverable at design granularity: the design transitions
// to FAILED, its cache is purged, and the batch halts.
type StageFailure struct {
	Stage string
	Slug  string
	Err   error
}

func NewStageFailure(stage, slug string, err error) *StageFailure {
	return &StageFailure{Stage: stage, Slug: slug, Err: err}
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage %s failed for design %s: %v", e.Stage, e.Slug, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// InvariantViolation indicates a broken programming contract and is always fatal.
type InvariantViolation struct {
	Msg string
}

func NewInvariantViolation(msg string) *InvariantViolation {
	return &InvariantViolation{Msg: msg}
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Msg)
}

// IsInvariantViolation reports whether err carries an InvariantViolation anywhere
// in its chain.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}
