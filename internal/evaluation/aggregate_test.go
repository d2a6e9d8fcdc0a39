package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/patchbench/api/schemas"
)

func caseResult(difficulty schemas.Difficulty, category schemas.Category, severity schemas.Severity, passed bool, confidence float64) CaseResult {
	return CaseResult{
		Case: schemas.TestCase{
			Difficulty: difficulty,
			Bug:        schemas.BugReport{Category: category, Severity: severity},
		},
		Selection: &schemas.SelectionResult{ConfidenceScore: confidence},
		Validation: &schemas.PatchValidationResult{
			Success:  passed,
			Duration: 2 * time.Second,
		},
	}
}

func TestAggregate_EmptyBatch(t *testing.T) {
	t.Parallel()
	summary := Aggregate(nil)

	assert.Zero(t, summary.TotalTests)
	assert.Zero(t, summary.PassRate, "an empty batch must not divide by zero")
	assert.Zero(t, summary.MeanConfidence)
	assert.Zero(t, summary.MeanExecutionTime)
	assert.Empty(t, summary.ByDifficulty)
}

func TestAggregate_PassRateArithmetic(t *testing.T) {
	t.Parallel()
	results := []CaseResult{
		caseResult(schemas.DifficultyEasy, schemas.CategoryLogic, schemas.SeverityLow, true, 0.9),
		caseResult(schemas.DifficultyEasy, schemas.CategoryLogic, schemas.SeverityHigh, false, 0.5),
		caseResult(schemas.DifficultyHard, schemas.CategoryRuntime, schemas.SeverityHigh, true, 0.7),
		caseResult(schemas.DifficultyHard, schemas.CategoryRuntime, schemas.SeverityHigh, true, 0.3),
	}

	summary := Aggregate(results)

	assert.Equal(t, 4, summary.TotalTests)
	assert.Equal(t, 3, summary.PassedTests)
	assert.Equal(t, 1, summary.FailedTests)
	assert.InDelta(t, 0.75, summary.PassRate, 1e-9)
	assert.InDelta(t, 0.6, summary.MeanConfidence, 1e-9)
	assert.Equal(t, 2*time.Second, summary.MeanExecutionTime)
}

func TestAggregate_BreakdownRates(t *testing.T) {
	t.Parallel()
	results := []CaseResult{
		caseResult(schemas.DifficultyEasy, schemas.CategoryLogic, schemas.SeverityLow, true, 0.9),
		caseResult(schemas.DifficultyEasy, schemas.CategoryUI, schemas.SeverityLow, false, 0.4),
		caseResult(schemas.DifficultyExpert, schemas.CategoryLogic, schemas.SeverityCritical, false, 0.2),
	}

	summary := Aggregate(results)

	easy := summary.ByDifficulty[schemas.DifficultyEasy]
	require.NotNil(t, easy)
	assert.Equal(t, 2, easy.Total)
	assert.Equal(t, 1, easy.Passed)
	assert.InDelta(t, 0.5, easy.Rate, 1e-9)

	expert := summary.ByDifficulty[schemas.DifficultyExpert]
	require.NotNil(t, expert)
	assert.Zero(t, expert.Passed)
	assert.Zero(t, expert.Rate)

	logic := summary.ByCategory[schemas.CategoryLogic]
	require.NotNil(t, logic)
	assert.Equal(t, 2, logic.Total)
	assert.InDelta(t, 0.5, logic.Rate, 1e-9)

	critical := summary.BySeverity[schemas.SeverityCritical]
	require.NotNil(t, critical)
	assert.Equal(t, 1, critical.Total)
}

func TestAggregate_ErroredCasesCountAsFailed(t *testing.T) {
	t.Parallel()
	errored := CaseResult{
		Case: schemas.TestCase{Difficulty: schemas.DifficultyMedium},
		Err:  "selection failed: no candidates to select from",
	}

	summary := Aggregate([]CaseResult{errored})

	assert.Equal(t, 1, summary.TotalTests)
	assert.Equal(t, 1, summary.FailedTests)
	assert.Zero(t, summary.PassRate)
	assert.Zero(t, summary.MeanConfidence, "errored cases carry no selection to average")
}

func TestCaseResult_Passed(t *testing.T) {
	t.Parallel()
	assert.False(t, CaseResult{}.Passed())
	assert.False(t, CaseResult{Err: "boom", Validation: &schemas.PatchValidationResult{Success: true}}.Passed())
	assert.True(t, CaseResult{Validation: &schemas.PatchValidationResult{Success: true}}.Passed())
}
