package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
)

// ErrorCategory classifies failures raised while running a backtest
type ErrorCategory string

const (
	// Fatal to one run, reported upward as a status
	ErrorCategoryRuleCompile ErrorCategory = "RULE_COMPILE"
	ErrorCategoryEmptyInput  ErrorCategory = "EMPTY_INPUT"

	// Absorbed locally, visible only through diagnostics
	ErrorCategoryRuleEvaluation    ErrorCategory = "RULE_EVALUATION"
	ErrorCategoryDegenerateMetrics ErrorCategory = "DEGENERATE_METRICS"

	// Surface errors from the adapters around the engine
	ErrorCategoryData          ErrorCategory = "DATA"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryStorage       ErrorCategory = "STORAGE"
)

// Sentinels for errors.Is checks
var (
	ErrRuleCompile    = stderrors.New("rule compile failed")
	ErrRuleEvaluation = stderrors.New("rule evaluation failed")
	ErrEmptyInput     = stderrors.New("empty input")
)

// BacktestError represents a categorized error with context
type BacktestError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *BacktestError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *BacktestError) Unwrap() error {
	return e.Underlying
}

// Is matches the category sentinels
func (e *BacktestError) Is(target error) bool {
	switch target {
	case ErrRuleCompile:
		return e.Category == ErrorCategoryRuleCompile
	case ErrRuleEvaluation:
		return e.Category == ErrorCategoryRuleEvaluation
	case ErrEmptyInput:
		return e.Category == ErrorCategoryEmptyInput
	}
	return false
}

// IsRecoverable reports whether the engine absorbs this error locally
func (e *BacktestError) IsRecoverable() bool {
	switch e.Category {
	case ErrorCategoryRuleEvaluation, ErrorCategoryDegenerateMetrics, ErrorCategoryEmptyInput:
		return true
	default:
		return false
	}
}

// NewBacktestError creates a new categorized error
func NewBacktestError(category ErrorCategory, component, operation, message string) *BacktestError {
	return &BacktestError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with backtest error context
func WrapError(err error, category ErrorCategory, component, operation string) *BacktestError {
	if err == nil {
		return nil
	}
	return &BacktestError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *BacktestError) WithContext(key string, value interface{}) *BacktestError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// CategoryOf returns the category of err, or "" when it is not a BacktestError
func CategoryOf(err error) ErrorCategory {
	var bErr *BacktestError
	if stderrors.As(err, &bErr) {
		return bErr.Category
	}
	return ""
}

func NewRuleCompileError(component string, err error) *BacktestError {
	return WrapError(err, ErrorCategoryRuleCompile, component, "compile")
}

func NewRuleEvaluationError(component string, err error) *BacktestError {
	return WrapError(err, ErrorCategoryRuleEvaluation, component, "evaluate")
}

func NewEmptyInputError(component, message string) *BacktestError {
	return NewBacktestError(ErrorCategoryEmptyInput, component, "replay", message)
}

func NewDegenerateMetricsError(operation, message string) *BacktestError {
	return NewBacktestError(ErrorCategoryDegenerateMetrics, "metrics", operation, message)
}

func NewDataError(component, operation string, err error) *BacktestError {
	return WrapError(err, ErrorCategoryData, component, operation)
}

func NewConfigurationError(component, operation, message string) *BacktestError {
	return NewBacktestError(ErrorCategoryConfiguration, component, operation, message)
}

func NewStorageError(component, operation string, err error) *BacktestError {
	return WrapError(err, ErrorCategoryStorage, component, operation)
}

// ErrorStats tracks error counts for run diagnostics. Not safe for concurrent
// use: each instrument replay owns one and the run merges them.
type ErrorStats struct {
	TotalErrors      int
	ErrorsByCategory map[ErrorCategory]int
	RecentErrors     []*BacktestError
	MaxRecentErrors  int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	return &ErrorStats{
		ErrorsByCategory: make(map[ErrorCategory]int),
		RecentErrors:     make([]*BacktestError, 0, maxRecentErrors),
		MaxRecentErrors:  maxRecentErrors,
	}
}

// RecordError records an error in the statistics
func (es *ErrorStats) RecordError(err *BacktestError) {
	if err == nil {
		return
	}
	es.TotalErrors++
	es.ErrorsByCategory[err.Category]++

	if es.MaxRecentErrors <= 0 {
		return
	}
	es.RecentErrors = append(es.RecentErrors, err)
	if len(es.RecentErrors) > es.MaxRecentErrors {
		es.RecentErrors = es.RecentErrors[1:]
	}
}

// Count returns the number of recorded errors in a category
func (es *ErrorStats) Count(category ErrorCategory) int {
	return es.ErrorsByCategory[category]
}

// Merge folds other into es, keeping the bounded recent list
func (es *ErrorStats) Merge(other *ErrorStats) {
	if other == nil {
		return
	}
	es.TotalErrors += other.TotalErrors
	for c, n := range other.ErrorsByCategory {
		es.ErrorsByCategory[c] += n
	}
	for _, err := range other.RecentErrors {
		if es.MaxRecentErrors <= 0 {
			break
		}
		es.RecentErrors = append(es.RecentErrors, err)
		if len(es.RecentErrors) > es.MaxRecentErrors {
			es.RecentErrors = es.RecentErrors[1:]
		}
	}
}

// Categories returns the recorded categories in a stable order
func (es *ErrorStats) Categories() []ErrorCategory {
	cats := make([]ErrorCategory, 0, len(es.ErrorsByCategory))
	for c := range es.ErrorsByCategory {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}
