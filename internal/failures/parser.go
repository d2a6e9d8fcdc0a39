// Package failures turns raw test-runner output into structured failure
// records. Parsing is best-effort: malformed or unrecognized lines are
// skipped, and the parser never returns an error.
package failures

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/patchbench/api/schemas"
)

// Regex definitions for parsing test-runner output.
var (
	// Matches a "FAIL path/to/file.test.ts" or "FAIL\tpackage" suite marker.
	failMarkerRegex = regexp.MustCompile(`^FAIL\s+(\S+)`)
	// Matches a per-test failure line, glyph style ("✕ name (12 ms)") or
	// go test style ("--- FAIL: TestName").
	testNameRegex   = regexp.MustCompile(`^\s*[✕✗×]\s+(.+?)(?:\s+\(\d+\s*m?s\))?$`)
	goTestFailRegex = regexp.MustCompile(`^\s*--- FAIL: (\S+)`)
	// Matches the first line of an error block.
	errorClassRegex = regexp.MustCompile(`^\s*((?:[A-Za-z]*Error|panic|FAIL|fatal error)[::]\s*.+)`)
	// Matches stack-frame continuation lines.
	stackLineRegex = regexp.MustCompile(`^\s+(?:at\s+|\S+\()`)
	// Extracts source paths from stack frames.
	sourcePathRegex = regexp.MustCompile(`([A-Za-z0-9_@./\\-]+\.(?:go|ts|tsx|js|jsx|mjs|py|java|rs|c|cc|cpp|h))(?::\d+)?`)
)

// Keyword sets for failure-type classification, checked in priority order.
// Compilation diagnostics often also look like runtime ones, so compilation
// goes first.
var (
	compilationKeywords = []string{
		"syntaxerror", "syntax error", "cannot find module", "cannot resolve",
		"compilation", "compile error", "undeclared", "undefined:",
		"expected ';'", "ts(",
	}
	timeoutKeywords = []string{
		"timeout", "timed out", "deadline exceeded", "exceeded the time limit",
	}
	runtimeKeywords = []string{
		"typeerror", "referenceerror", "rangeerror", "panic", "nil pointer",
		"null pointer", "segmentation", "is not a function", "undefined is not",
		"index out of range",
	}
)

// Parse walks the combined stdout+stderr of a test-runner invocation and
// extracts one TestFailure per failing test, in encounter order.
func Parse(output string) []schemas.TestFailure {
	var (
		results []schemas.TestFailure
		current *schemas.TestFailure
		inStack bool
		seen    map[string]bool
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Type = ClassifyFailure(current.ErrorMessage, current.StackTrace)
		results = append(results, *current)
		current = nil
		inStack = false
	}

	currentFile := ""
	for _, line := range strings.Split(output, "\n") {
		if m := failMarkerRegex.FindStringSubmatch(line); m != nil {
			flush()
			currentFile = m[1]
			continue
		}

		name := ""
		if m := testNameRegex.FindStringSubmatch(line); m != nil {
			name = strings.TrimSpace(m[1])
		} else if m := goTestFailRegex.FindStringSubmatch(line); m != nil {
			name = m[1]
		}
		if name != "" {
			flush()
			current = &schemas.TestFailure{TestName: name, TestFile: currentFile}
			seen = map[string]bool{}
			continue
		}

		if current == nil {
			continue
		}

		if m := errorClassRegex.FindStringSubmatch(line); m != nil && current.ErrorMessage == "" {
			current.ErrorMessage = strings.TrimSpace(m[1])
			inStack = true
			continue
		}

		if inStack && (stackLineRegex.MatchString(line) || strings.TrimSpace(line) == "") {
			if current.StackTrace != "" {
				current.StackTrace += "\n"
			}
			current.StackTrace += line
			for _, path := range extractSourcePaths(line) {
				if !seen[path] {
					seen[path] = true
					current.AffectedFiles = append(current.AffectedFiles, path)
				}
			}
		}
	}
	flush()
	return results
}

// ClassifyFailure maps an error message plus stack trace onto a failure type
// by case-insensitive keyword search. First match wins, in the priority order
// compilation > timeout > runtime; anything else is an assertion failure.
func ClassifyFailure(errorMessage, stackTrace string) schemas.FailureType {
	text := strings.ToLower(errorMessage + "\n" + stackTrace)
	for _, kw := range compilationKeywords {
		if strings.Contains(text, kw) {
			return schemas.FailureCompilation
		}
	}
	for _, kw := range timeoutKeywords {
		if strings.Contains(text, kw) {
			return schemas.FailureTimeout
		}
	}
	for _, kw := range runtimeKeywords {
		if strings.Contains(text, kw) {
			return schemas.FailureRuntime
		}
	}
	return schemas.FailureAssertion
}

// extractSourcePaths pulls source file paths out of a stack-frame line,
// skipping third-party and toolchain frames.
func extractSourcePaths(line string) []string {
	var paths []string
	for _, m := range sourcePathRegex.FindAllStringSubmatch(line, -1) {
		path := m[1]
		if strings.Contains(path, "node_modules") || strings.Contains(path, "go/src/") {
			continue
		}
		paths = append(paths, path)
	}
	return paths
}
