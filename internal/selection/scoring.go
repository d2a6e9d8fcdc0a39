// File: internal/selection/scoring.go
//
// Per-criterion scoring primitives shared by the strategies. All scores are
// pure functions of a candidate, clamped to [0,1].
package selection

import (
	"github.com/xkilldash9x/patchbench/api/schemas"
)

// Fixed penalties applied inside the impact score.
const (
	breakingChangePenalty = 0.3
	negativePerfPenalty   = 0.2
)

// impactScore estimates how invasive a candidate is: 0 is a surgical change,
// 1 the riskiest. Blends normalized lines affected, scope changes, side
// effects, and fixed penalties for breaking changes and predicted slowdowns.
func impactScore(p schemas.GeneratedPatch) float64 {
	score := 0.4 * minf(float64(p.Impact.LinesChanged)/100, 1)
	score += 0.2 * minf(float64(p.Impact.FilesModified)/5, 1)
	score += 0.1 * minf(float64(p.Impact.ScopeChanges)/5, 1)
	score += 0.1 * minf(float64(p.Impact.SideEffects)/5, 1)
	if p.Impact.BreakingChange {
		score += breakingChangePenalty
	}
	if p.Impact.PerformanceImpact < 0 {
		score += negativePerfPenalty
	}
	return clamp01(score)
}

// validationScore rewards static validity: +0.3 syntactic, +0.3 semantic,
// +0.2 grammar compliance, plus a resolved-vs-introduced error balance.
func validationScore(p schemas.GeneratedPatch) float64 {
	score := 0.0
	if p.Validation.SyntaxValid {
		score += 0.3
	}
	if p.Validation.SemanticsValid {
		score += 0.3
	}
	if p.Validation.GrammarCompliant {
		score += 0.2
	}
	score += 0.04 * float64(p.Validation.ErrorsResolved)
	score -= 0.08 * float64(p.Validation.ErrorsIntroduced)
	return clamp01(score)
}

// contextScore measures how well a candidate's shape matches the failure
// being fixed and the operator's stated preferences.
func contextScore(p schemas.GeneratedPatch, selCtx Context) float64 {
	score := 0.5
	if containsType(selCtx.PreferredTypes, p.Type) {
		score += 0.3
	}
	if containsType(selCtx.AvoidedTypes, p.Type) {
		score -= 0.3
	}
	switch {
	case selCtx.FailureType == schemas.FailureCompilation && p.Type == schemas.PatchImportAddition:
		score += 0.2
	case selCtx.FailureType == schemas.FailureAssertion && p.Type == schemas.PatchDirectFix:
		score += 0.2
	case selCtx.FailureType == schemas.FailureRuntime && p.Type == schemas.PatchDirectFix:
		score += 0.1
	}
	return clamp01(score)
}

func containsType(types []schemas.PatchType, t schemas.PatchType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
