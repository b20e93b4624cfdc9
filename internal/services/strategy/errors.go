package strategy

import "fmt"

// StrategyConfigurationError reports a malformed condition tree. It is always returned
// to the caller before any evaluation happens.
type StrategyConfigurationError struct {
	Path string
	Msg  string
}

func (e *StrategyConfigurationError) Error() string {
	if e.Path == "" {
		return "strategy configuration: " + e.Msg
	}
	return fmt.Sprintf("strategy configuration: %s: %s", e.Path, e.Msg)
}

// UnknownFactorError describes a leaf whose factor is absent from the snapshot. The
// evaluator records it as a non-match and never returns it.
type UnknownFactorError struct {
	FactorID string
}

func (e *UnknownFactorError) Error() string {
	return fmt.Sprintf("factor %q not in snapshot", e.FactorID)
}

// FormulaEvaluationError reports a confidence formula that failed to parse or evaluate.
type FormulaEvaluationError struct {
	Formula string
	Pos     int
	Msg     string
}

func (e *FormulaEvaluationError) Error() string {
	return fmt.Sprintf("formula %q at %d: %s", e.Formula, e.Pos, e.Msg)
}
