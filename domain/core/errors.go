package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrCohortNotFound   = fmt.Errorf("%w: cohort", ErrNotFound)
	ErrReportNotFound   = fmt.Errorf("%w: report", ErrNotFound)
	ErrVariableNotFound = fmt.Errorf("%w: variable", ErrNotFound)

	// Profiling errors
	ErrUnsupportedType = errors.New("unsupported variable type")
	ErrEmptySeries     = errors.New("series empty after exclusions")
	ErrBinningInvalid  = errors.New("invalid binning policy")

	// Configuration errors - caller bugs, raised before any computation
	ErrUnknownMetric      = errors.New("unknown metric name")
	ErrMetricTypeMismatch = errors.New("metric not applicable to variable type")
	ErrUnknownAggregation = errors.New("unknown aggregation method")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewProfilingError(varKey VariableKey, err error) error {
	return fmt.Errorf("profiling %s: %w", varKey, err)
}

func NewConfigurationError(detail string, err error) error {
	return fmt.Errorf("%w: %s", err, detail)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsProfilingError(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrEmptySeries) ||
		errors.Is(err, ErrBinningInvalid)
}

func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrUnknownMetric) ||
		errors.Is(err, ErrMetricTypeMismatch) ||
		errors.Is(err, ErrUnknownAggregation)
}
