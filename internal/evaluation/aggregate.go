// Package evaluation batches patch attempts over mined test cases and folds
// the per-case outcomes into summary statistics.
package evaluation

import (
	"time"

	"github.com/xkilldash9x/patchbench/api/schemas"
)

// CaseResult pairs one mined test case with the outcome of evaluating it.
type CaseResult struct {
	Case       schemas.TestCase               `json:"case"`
	Selection  *schemas.SelectionResult       `json:"selection,omitempty"`
	Validation *schemas.PatchValidationResult `json:"validation,omitempty"`
	Err        string                         `json:"error,omitempty"`
}

// Passed reports whether this case counts toward the pass rate.
func (r CaseResult) Passed() bool {
	return r.Err == "" && r.Validation != nil && r.Validation.Success
}

// Aggregate folds case results into an EvaluationSummary. Pure accumulation:
// an empty batch yields zero rates, never a division by zero.
func Aggregate(results []CaseResult) schemas.EvaluationSummary {
	summary := schemas.EvaluationSummary{
		ByDifficulty: make(map[schemas.Difficulty]*schemas.Breakdown),
		ByCategory:   make(map[schemas.Category]*schemas.Breakdown),
		BySeverity:   make(map[schemas.Severity]*schemas.Breakdown),
	}

	var (
		confidenceSum float64
		durationSum   time.Duration
		withSelection int
	)
	for _, r := range results {
		summary.TotalTests++
		passed := r.Passed()
		if passed {
			summary.PassedTests++
		} else {
			summary.FailedTests++
		}

		if r.Selection != nil {
			confidenceSum += r.Selection.ConfidenceScore
			withSelection++
		}
		if r.Validation != nil {
			durationSum += r.Validation.Duration
		}

		increment(summary.ByDifficulty, r.Case.Difficulty, passed)
		increment(summary.ByCategory, r.Case.Bug.Category, passed)
		increment(summary.BySeverity, r.Case.Bug.Severity, passed)
	}

	if summary.TotalTests > 0 {
		summary.PassRate = float64(summary.PassedTests) / float64(summary.TotalTests)
		summary.MeanExecutionTime = durationSum / time.Duration(summary.TotalTests)
	}
	if withSelection > 0 {
		summary.MeanConfidence = confidenceSum / float64(withSelection)
	}
	return summary
}

// increment bumps one breakdown bucket, recomputing its rate.
func increment[K comparable](table map[K]*schemas.Breakdown, key K, passed bool) {
	b, ok := table[key]
	if !ok {
		b = &schemas.Breakdown{}
		table[key] = b
	}
	b.Total++
	if passed {
		b.Passed++
	}
	b.Rate = float64(b.Passed) / float64(b.Total)
}
