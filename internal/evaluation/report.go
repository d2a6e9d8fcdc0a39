// File: internal/evaluation/report.go
package evaluation

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/patchbench/api/schemas"
)

// Report is the persisted artifact of one evaluation batch.
type Report struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	RepoRoot    string                    `json:"repo_root"`
	Summary     schemas.EvaluationSummary `json:"summary"`
	Results     []CaseResult              `json:"results"`
}

// WriteReport serializes the batch outcome to path, creating parent
// directories as needed.
func WriteReport(path, repoRoot string, results []CaseResult, summary schemas.EvaluationSummary) error {
	report := Report{
		GeneratedAt: time.Now().UTC(),
		RepoRoot:    repoRoot,
		Summary:     summary,
		Results:     results,
	}

	data, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize evaluation report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write evaluation report: %w", err)
	}
	return nil
}

// ReadReport loads a previously written report.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read evaluation report: %w", err)
	}
	var report Report
	if err := json.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse evaluation report: %w", err)
	}
	return &report, nil
}
