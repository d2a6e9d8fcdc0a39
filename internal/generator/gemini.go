// File: internal/generator/gemini.go
package generator

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/patchbench/api/schemas"
	"github.com/xkilldash9x/patchbench/internal/config"
)

// wireCandidate is the JSON shape the model is instructed to return.
type wireCandidate struct {
	PatchType  string            `json:"patch_type"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
	Patch      string            `json:"patch"`
	Files      map[string]string `json:"files"`
}

// GeminiGenerator implements schemas.CandidateGenerator on top of the Gemini
// API.
type GeminiGenerator struct {
	logger *zap.Logger
	client *genai.Client
	cfg    config.GeneratorConfig
}

// NewGeminiGenerator builds a Gemini-backed candidate generator. The API key
// is read from the environment variable named in the configuration.
func NewGeminiGenerator(ctx context.Context, logger *zap.Logger, cfg config.GeneratorConfig) (*GeminiGenerator, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("generator API key not set in environment variable %s", cfg.APIKeyEnv)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiGenerator{
		logger: logger.Named("gemini-generator"),
		client: client,
		cfg:    cfg,
	}, nil
}

// Generate asks the model for candidate fixes and converts the response into
// normalized patches. An empty candidate list is a valid outcome; the caller
// handles it as "no candidates".
func (g *GeminiGenerator) Generate(ctx context.Context, req schemas.PatchRequest) ([]schemas.GeneratedPatch, error) {
	timeout := g.cfg.APITimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(genCtx, g.cfg.Model, genai.Text(g.userPrompt(req)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.systemPrompt(), genai.RoleUser),
		Temperature:       genai.Ptr(g.cfg.Temperature),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}

	candidates, err := g.parseResponse(resp.Text(), req)
	if err != nil {
		g.logger.Error("Failed to parse generator response.", zap.Error(err), zap.String("request_id", req.ID))
		return nil, err
	}
	g.logger.Info("Generator produced candidates.",
		zap.String("request_id", req.ID),
		zap.Int("count", len(candidates)))
	return candidates, nil
}

// Close implements schemas.CandidateGenerator. The genai client holds no
// long-lived connections that need explicit teardown.
func (g *GeminiGenerator) Close() error { return nil }

func (g *GeminiGenerator) systemPrompt() string {
	return `You are an automated program-repair engine. You receive one failing test
with the source files involved, and you propose candidate fixes.

**Output Requirements (Strict JSON Format):**
Respond ONLY with a JSON array of candidate objects:
[
  {
    "patch_type": "DIRECT_FIX" | "REFACTOR" | "IMPORT_ADDITION" | "WORKAROUND" | "CONFIG_CHANGE",
    "confidence": 0.0 to 1.0,
    "reasoning": "Why this change fixes the failure.",
    "files": { "relative/path.ext": "full new content of the file" }
  }
]

**Guidelines:**
- Propose at most the requested number of candidates, most promising first.
- Each candidate must be minimal: change only what the failure requires.
- "files" must contain the COMPLETE new content of every file you change.
- Do not modify test files unless the test itself is wrong.`
}

func (g *GeminiGenerator) userPrompt(req schemas.PatchRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Failing test: %s\n", req.Failure.TestName)
	fmt.Fprintf(&sb, "Failure type: %s\n", req.Failure.Type)
	fmt.Fprintf(&sb, "Error message: %s\n", req.Failure.ErrorMessage)
	if req.Failure.StackTrace != "" {
		fmt.Fprintf(&sb, "Stack trace:\n%s\n", req.Failure.StackTrace)
	}
	fmt.Fprintf(&sb, "Expected outcome: %s\n", req.ExpectedOutcome)
	fmt.Fprintf(&sb, "Project: type=%s language=%s framework=%s\n",
		req.Context.ProjectType, req.Context.Language, req.Context.Framework)
	fmt.Fprintf(&sb, "Propose up to %d candidate fixes.\n", g.maxCandidates())

	paths := make([]string, 0, len(req.Files))
	for path := range req.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		fmt.Fprintf(&sb, "\n--- FILE: %s ---\n%s\n", path, req.Files[path])
	}
	return sb.String()
}

func (g *GeminiGenerator) maxCandidates() int {
	if g.cfg.MaxCandidates > 0 {
		return g.cfg.MaxCandidates
	}
	return 3
}

// parseResponse decodes the model's JSON, tolerating markdown fences and
// stray prose around the array.
func (g *GeminiGenerator) parseResponse(response string, req schemas.PatchRequest) ([]schemas.GeneratedPatch, error) {
	payload := StripFences(response)
	if !strings.HasPrefix(payload, "[") {
		first := strings.Index(payload, "[")
		last := strings.LastIndex(payload, "]")
		if first != -1 && last > first {
			payload = payload[first : last+1]
		}
	}

	var wire []wireCandidate
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal generator JSON response: %w. Extracted: %.500s", err, payload)
	}

	max := g.maxCandidates()
	if len(wire) > max {
		wire = wire[:max]
	}

	patches := make([]schemas.GeneratedPatch, 0, len(wire))
	for _, w := range wire {
		p := schemas.GeneratedPatch{
			Type:          schemas.PatchType(strings.ToUpper(strings.TrimSpace(w.PatchType))),
			PatchText:     w.Patch,
			ModifiedFiles: w.Files,
			Confidence:    w.Confidence,
			Reasoning:     w.Reasoning,
		}
		switch p.Type {
		case schemas.PatchDirectFix, schemas.PatchRefactor, schemas.PatchImportAddition,
			schemas.PatchWorkaround, schemas.PatchConfigChange:
		default:
			p.Type = schemas.PatchDirectFix
		}
		Normalize(&p, req.Files)
		patches = append(patches, p)
	}
	return patches, nil
}
