package simulation

import (
	"fmt"
)

// ConfigurationError reports an invalid parameter set or run setting.
// It is a programmer error and aborts the call that detected it.
type ConfigurationError struct {
	Parameter string
	Reason    string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %q: %s", e.Parameter, e.Reason)
}

func configErrorf(parameter, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Parameter: parameter, Reason: fmt.Sprintf(format, args...)}
}

// EngineStateError is returned when results are requested before a run has
// produced a trial table.
type EngineStateError struct {
	Operation string
}

// Error implements the error interface
func (e *EngineStateError) Error() string {
	return fmt.Sprintf("%s requires a completed simulation run", e.Operation)
}

// UndefinedCorrelationError is returned by sensitivity analysis when a column
// has zero variance over the valid trials. Constant names the column that
// does not vary: the factor, the outcome, or neither when too few trials
// are valid.
type UndefinedCorrelationError struct {
	Column   string
	Outcome  string
	Constant string
}

// Error implements the error interface
func (e *UndefinedCorrelationError) Error() string {
	if e.Constant == "" {
		return fmt.Sprintf("correlation of %q against %q is undefined: fewer than two valid trials", e.Column, e.Outcome)
	}
	return fmt.Sprintf("correlation of %q against %q is undefined: %q has zero variance", e.Column, e.Outcome, e.Constant)
}

// UnknownColumnError is returned when a trial table has no column of the
// requested name.
type UnknownColumnError struct {
	Column string
}

// Error implements the error interface
func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown trial table column %q", e.Column)
}

// NonFiniteTrialWarning counts the trials of one column whose value is NaN or
// infinite. These trials stay in the table and are excluded from statistics.
type NonFiniteTrialWarning struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

// String returns a human-readable description of the warning
func (w NonFiniteTrialWarning) String() string {
	return fmt.Sprintf("%s: %d non-finite trials", w.Column, w.Count)
}
