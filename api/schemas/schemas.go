package schemas

import "time"

// Severity classifies how damaging a bug is, derived from keyword heuristics
// over commit messages and diff text.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Category classifies the nature of a bug.
type Category string

const (
	CategoryCompilation Category = "COMPILATION"
	CategoryRuntime     Category = "RUNTIME"
	CategoryLogic       Category = "LOGIC"
	CategoryPerformance Category = "PERFORMANCE"
	CategoryUI          Category = "UI"
)

// Difficulty classifies a historical fix's complexity, derived from diff size
// and file count.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
	DifficultyExpert Difficulty = "EXPERT"
)

// FailureType classifies a live test failure.
type FailureType string

const (
	FailureCompilation FailureType = "COMPILATION"
	FailureRuntime     FailureType = "RUNTIME"
	FailureAssertion   FailureType = "ASSERTION"
	FailureTimeout     FailureType = "TIMEOUT"
)

// RiskLevel is a coarse classification of a patch's blast radius.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// PatchType describes the shape of a proposed fix, used by the rule-based and
// user-guided selection strategies.
type PatchType string

const (
	PatchDirectFix      PatchType = "DIRECT_FIX"
	PatchRefactor       PatchType = "REFACTOR"
	PatchImportAddition PatchType = "IMPORT_ADDITION"
	PatchWorkaround     PatchType = "WORKAROUND"
	PatchConfigChange   PatchType = "CONFIG_CHANGE"
)

// BugReport describes one bug, reconstructed from a historical commit or a
// live failure. Immutable once created.
type BugReport struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	ReproductionSteps []string  `json:"reproduction_steps"`
	ExpectedBehavior  string    `json:"expected_behavior"`
	ActualBehavior    string    `json:"actual_behavior"`
	AffectedFiles     []string  `json:"affected_files"`
	TestFiles         []string  `json:"test_files"`
	Severity          Severity  `json:"severity"`
	Category          Category  `json:"category"`
	CreatedAt         time.Time `json:"created_at"`
}

// RepoState captures file contents and test outcomes at a single commit.
type RepoState struct {
	Commit       string            `json:"commit"`
	Files        map[string]string `json:"files"`
	FailingTests []string          `json:"failing_tests,omitempty"`
	PassingTests []string          `json:"passing_tests,omitempty"`
}

// TestCase is a labeled before/after bug-fix episode mined from history.
// Created once by the miner and consumed read-only by evaluation runs.
type TestCase struct {
	ID         string     `json:"id"`
	Bug        BugReport  `json:"bug"`
	Before     RepoState  `json:"before"`
	After      RepoState  `json:"after"`
	HumanPatch string     `json:"human_patch"`
	Difficulty Difficulty `json:"difficulty"`
}

// TestFailure is a structurally parsed failure from a live test run.
type TestFailure struct {
	TestName      string      `json:"test_name"`
	TestFile      string      `json:"test_file"`
	ErrorMessage  string      `json:"error_message"`
	StackTrace    string      `json:"stack_trace"`
	AffectedFiles []string    `json:"affected_files"`
	Type          FailureType `json:"type"`
}

// ProjectContext tells the candidate generator what kind of codebase it is
// patching.
type ProjectContext struct {
	ProjectType string `json:"project_type"`
	Language    string `json:"language"`
	Framework   string `json:"framework"`
}

// PatchRequest packages everything the candidate generator needs to propose
// fixes for one failure. Built once per evaluation attempt.
type PatchRequest struct {
	ID              string            `json:"id"`
	Description     string            `json:"description"`
	Failure         TestFailure       `json:"failure"`
	Files           map[string]string `json:"files"`
	ExpectedOutcome string            `json:"expected_outcome"`
	Context         ProjectContext    `json:"context"`
}

// ImpactEstimate records a candidate's predicted blast radius.
type ImpactEstimate struct {
	LinesChanged      int       `json:"lines_changed"`
	FilesModified     int       `json:"files_modified"`
	Risk              RiskLevel `json:"risk"`
	ScopeChanges      int       `json:"scope_changes"`
	SideEffects       int       `json:"side_effects"`
	BreakingChange    bool      `json:"breaking_change"`
	PerformanceImpact int       `json:"performance_impact"` // negative means a predicted slowdown
}

// ValidationReport carries the generator's (or a downstream checker's) static
// assessment of a candidate.
type ValidationReport struct {
	SyntaxValid      bool `json:"syntax_valid"`
	SemanticsValid   bool `json:"semantics_valid"`
	GrammarCompliant bool `json:"grammar_compliant"`
	ErrorsResolved   int  `json:"errors_resolved"`
	ErrorsIntroduced int  `json:"errors_introduced"`
}

// GeneratedPatch is one proposed fix. Immutable once produced by the
// generator.
type GeneratedPatch struct {
	ID            string            `json:"id"`
	Type          PatchType         `json:"type"`
	PatchText     string            `json:"patch_text"`
	ModifiedFiles map[string]string `json:"modified_files"`
	Confidence    float64           `json:"confidence"`
	Reasoning     string            `json:"reasoning"`
	Impact        ImpactEstimate    `json:"impact"`
	Validation    ValidationReport  `json:"validation"`
}

// SelectionMetrics records how a selection was made.
type SelectionMetrics struct {
	Scores     map[string]float64 `json:"scores"`   // candidate ID -> final score
	Criteria   map[string]float64 `json:"criteria"` // per-criterion scores for the winner
	Duration   time.Duration      `json:"duration"`
	Algorithms []string           `json:"algorithms"`
}

// SelectionResult is the outcome of picking one candidate among several.
type SelectionResult struct {
	Selected        GeneratedPatch   `json:"selected"`
	Justification   string           `json:"justification"`
	Alternatives    []GeneratedPatch `json:"alternatives"`
	ConfidenceScore float64          `json:"confidence_score"`
	Metrics         SelectionMetrics `json:"metrics"`
	Recommendations []string         `json:"recommendations"`
}

// TestRunSummary is the aggregate outcome of one test-runner invocation,
// delta'd against the failures the request set out to fix.
type TestRunSummary struct {
	Total         int      `json:"total"`
	Passed        int      `json:"passed"`
	Failed        int      `json:"failed"`
	NewFailures   []string `json:"new_failures,omitempty"`
	FixedFailures []string `json:"fixed_failures,omitempty"`
	Regressions   []string `json:"regressions,omitempty"`
}

// QualityReport holds code-quality scores for an applied patch. Values are
// derived placeholders unless a real analyzer is plugged in.
type QualityReport struct {
	Maintainability float64 `json:"maintainability"`
	Readability     float64 `json:"readability"`
	TestCoverage    float64 `json:"test_coverage"`
}

// PatchValidationResult is the outcome of transactionally applying one
// candidate to the working tree.
type PatchValidationResult struct {
	CandidateID   string         `json:"candidate_id"`
	Applied       bool           `json:"applied"`
	Compiled      bool           `json:"compiled"`
	Tests         TestRunSummary `json:"tests"`
	Duration      time.Duration  `json:"duration"`
	Quality       QualityReport  `json:"quality"`
	Success       bool           `json:"success"`
	ErrorMessages []string       `json:"error_messages,omitempty"`
}

// Breakdown tracks pass counts for one slice of an evaluation batch.
type Breakdown struct {
	Passed int     `json:"passed"`
	Total  int     `json:"total"`
	Rate   float64 `json:"rate"`
}

// EvaluationSummary rolls per-case results into batch statistics. Built once
// after a full run; read-only thereafter.
type EvaluationSummary struct {
	TotalTests        int                       `json:"total_tests"`
	PassedTests       int                       `json:"passed_tests"`
	FailedTests       int                       `json:"failed_tests"`
	PassRate          float64                   `json:"pass_rate"`
	MeanConfidence    float64                   `json:"mean_confidence"`
	MeanExecutionTime time.Duration             `json:"mean_execution_time"`
	ByDifficulty      map[Difficulty]*Breakdown `json:"by_difficulty"`
	ByCategory        map[Category]*Breakdown   `json:"by_category"`
	BySeverity        map[Severity]*Breakdown   `json:"by_severity"`
}
