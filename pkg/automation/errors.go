package automation

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrRuleNotFound indicates no rule has the requested ID.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrUnknownCondition indicates an unrecognized condition type.
	ErrUnknownCondition = errors.New("unknown condition type")

	// ErrUnknownOperator indicates an operator not valid for its condition
	// or schedule type.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrUnknownAction indicates an unrecognized action type.
	ErrUnknownAction = errors.New("unknown action type")
)

// ConfigurationError indicates an action or rule is misconfigured. It is
// raised before any side effect.
type ConfigurationError struct {
	ActionType ActionType
	Field      string
	Message    string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s action misconfigured: %s: %s", e.ActionType, e.Field, e.Message)
	}
	return fmt.Sprintf("%s action misconfigured: %s", e.ActionType, e.Message)
}

// ConditionEvaluationError indicates a condition could not be evaluated.
// The engine logs it and treats the condition as not met.
type ConditionEvaluationError struct {
	RuleID   string
	Type     ConditionType
	Operator Operator
	Cause    error
}

// Error implements the error interface.
func (e *ConditionEvaluationError) Error() string {
	return fmt.Sprintf("rule %s: condition %s/%s: %v", e.RuleID, e.Type, e.Operator, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ConditionEvaluationError) Unwrap() error {
	return e.Cause
}

// RuleError reports a rule that failed validation.
type RuleError struct {
	RuleID string
	Name   string
	Errors []string
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	label := e.Name
	if label == "" {
		label = e.RuleID
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("rule %q: %s", label, e.Errors[0])
	}
	return fmt.Sprintf("rule %q: %d validation errors: %v", label, len(e.Errors), e.Errors)
}
