package factor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDataInsufficient matches any DataInsufficientError via errors.Is.
var ErrDataInsufficient = errors.New("insufficient data")

// DataInsufficientError means the series is too short or lacks columns for a calculator.
type DataInsufficientError struct {
	Calculator string
	Required   int
	Actual     int
	Missing    []string
}

func (e *DataInsufficientError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: insufficient data, missing columns [%s]", e.Calculator, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: insufficient data, required %d data points, got %d", e.Calculator, e.Required, e.Actual)
}

func (e *DataInsufficientError) Is(target error) bool { return target == ErrDataInsufficient }

// CalculatorExecutionError wraps an error or panic raised by a single calculator.
type CalculatorExecutionError struct {
	Calculator string
	Err        error
	Panic      bool
}

func (e *CalculatorExecutionError) Error() string {
	if e.Panic {
		return fmt.Sprintf("%s: panic: %v", e.Calculator, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Calculator, e.Err)
}

func (e *CalculatorExecutionError) Unwrap() error { return e.Err }

// EntityComputationError means the whole computation for one entity failed.
type EntityComputationError struct {
	EntityID string
	Err      error
}

func (e *EntityComputationError) Error() string {
	return fmt.Sprintf("entity %s: %v", e.EntityID, e.Err)
}

func (e *EntityComputationError) Unwrap() error { return e.Err }
