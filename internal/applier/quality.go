// File: internal/applier/quality.go
package applier

import (
	"context"

	"github.com/xkilldash9x/patchbench/api/schemas"
)

// DerivedQuality is the default QualityAnalyzer. It derives placeholder
// scores from the candidate's own confidence and declared risk plus the
// observed test outcome; it never inspects source. Swap in a real analyzer
// via New when one exists.
type DerivedQuality struct{}

func (DerivedQuality) Analyze(_ context.Context, patch schemas.GeneratedPatch, result *schemas.PatchValidationResult) schemas.QualityReport {
	base := 0.5 + 0.4*patch.Confidence
	switch patch.Impact.Risk {
	case schemas.RiskHigh:
		base -= 0.2
	case schemas.RiskMedium:
		base -= 0.1
	}
	if !result.Compiled {
		base -= 0.2
	}
	base = clampUnit(base)

	coverage := 0.0
	if result.Tests.Total > 0 {
		coverage = float64(result.Tests.Passed) / float64(result.Tests.Total)
	}
	return schemas.QualityReport{
		Maintainability: base,
		Readability:     clampUnit(base + 0.05),
		TestCoverage:    coverage,
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
