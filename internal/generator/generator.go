// Package generator holds the candidate-generator seam: the pipeline's only
// upstream dependency. The Gemini client implements schemas.CandidateGenerator;
// anything able to propose fixes can be swapped in behind that interface.
package generator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/xkilldash9x/patchbench/api/schemas"
)

// NewErrorPatch converts a generation failure into a zero-confidence
// synthetic candidate carrying the error text, so the pipeline always has a
// result object to aggregate.
func NewErrorPatch(req schemas.PatchRequest, genErr error) schemas.GeneratedPatch {
	return schemas.GeneratedPatch{
		ID:         uuid.New().String(),
		Type:       schemas.PatchWorkaround,
		Confidence: 0,
		Reasoning:  fmt.Sprintf("candidate generation failed for request %s: %v", req.ID, genErr),
		Impact: schemas.ImpactEstimate{
			Risk: schemas.RiskLow,
		},
	}
}
