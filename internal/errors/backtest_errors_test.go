package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacktestError_ErrorString(t *testing.T) {
	err := NewRuleCompileError("buy-rule", stderrors.New("unexpected token"))
	assert.Equal(t, "[RULE_COMPILE:buy-rule] compile: operation failed: unexpected token", err.Error())

	plain := NewEmptyInputError("005930", "series has no ticks")
	assert.Equal(t, "[EMPTY_INPUT:005930] replay: series has no ticks", plain.Error())
}

func TestBacktestError_IsAndUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := fmt.Errorf("run: %w", NewRuleCompileError("sell-rule", cause))

	assert.True(t, stderrors.Is(err, ErrRuleCompile))
	assert.False(t, stderrors.Is(err, ErrEmptyInput))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, ErrorCategoryRuleCompile, CategoryOf(err))
	assert.Equal(t, ErrorCategory(""), CategoryOf(cause))

	assert.True(t, stderrors.Is(NewEmptyInputError("x", "empty"), ErrEmptyInput))
}

func TestBacktestError_IsRecoverable(t *testing.T) {
	assert.True(t, NewRuleEvaluationError("r", stderrors.New("x")).IsRecoverable())
	assert.True(t, NewDegenerateMetricsError("drawdown", "no prior peak").IsRecoverable())
	assert.True(t, NewEmptyInputError("r", "x").IsRecoverable())
	assert.False(t, NewRuleCompileError("r", stderrors.New("x")).IsRecoverable())
	assert.False(t, NewConfigurationError("cfg", "load", "bad").IsRecoverable())
}

func TestWrapError_Nil(t *testing.T) {
	assert.Nil(t, WrapError(nil, ErrorCategoryData, "csv", "load"))
}

func TestBacktestError_WithContext(t *testing.T) {
	err := NewDataError("csv", "load", stderrors.New("x")).WithContext("line", 7)
	assert.Equal(t, 7, err.Context["line"])
}

func TestErrorStats_RecordAndMerge(t *testing.T) {
	a := NewErrorStats(2)
	a.RecordError(NewRuleEvaluationError("r", stderrors.New("1")))
	a.RecordError(NewRuleEvaluationError("r", stderrors.New("2")))
	a.RecordError(NewDegenerateMetricsError("drawdown", "3"))
	a.RecordError(nil)

	assert.Equal(t, 3, a.TotalErrors)
	assert.Equal(t, 2, a.Count(ErrorCategoryRuleEvaluation))
	require.Len(t, a.RecentErrors, 2)
	assert.Equal(t, ErrorCategoryDegenerateMetrics, a.RecentErrors[1].Category)

	b := NewErrorStats(2)
	b.RecordError(NewRuleEvaluationError("r", stderrors.New("4")))
	a.Merge(b)
	a.Merge(nil)

	assert.Equal(t, 4, a.TotalErrors)
	assert.Equal(t, 3, a.Count(ErrorCategoryRuleEvaluation))
	assert.Len(t, a.RecentErrors, 2)
	assert.Equal(t, []ErrorCategory{ErrorCategoryDegenerateMetrics, ErrorCategoryRuleEvaluation}, a.Categories())
}
