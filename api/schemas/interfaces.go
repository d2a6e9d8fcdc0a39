package schemas

import "context"

// CandidateGenerator defines the contract for the external fix-suggestion
// engine (e.g. a Gemini-backed client). The pipeline treats it as opaque and
// must tolerate it returning zero candidates.
type CandidateGenerator interface {
	// Generate proposes zero or more candidate fixes for the request,
	// ordered by the generator's own preference.
	Generate(ctx context.Context, req PatchRequest) ([]GeneratedPatch, error)
	// Close releases any resources held by the generator.
	Close() error
}

// QualityAnalyzer scores an applied patch. The default implementation derives
// placeholder scores from confidence and risk; a real analyzer can be plugged
// in without touching the applier.
type QualityAnalyzer interface {
	Analyze(ctx context.Context, patch GeneratedPatch, result *PatchValidationResult) QualityReport
}
