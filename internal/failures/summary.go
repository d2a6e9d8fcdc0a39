// File: internal/failures/summary.go
package failures

import (
	"regexp"
	"strconv"
	"strings"
)

// RunCounts holds the aggregate outcome of one test-runner invocation.
type RunCounts struct {
	Total       int
	Passed      int
	Failed      int
	FailedTests []string
}

var (
	// Jest-style summary: "Tests:       2 failed, 1 skipped, 9 passed, 12 total".
	summaryLineRegex = regexp.MustCompile(`^Tests:\s+(.+)$`)
	summaryPartRegex = regexp.MustCompile(`(\d+)\s+(failed|passed|skipped|total)`)
	goTestPassRegex  = regexp.MustCompile(`^\s*--- PASS: (\S+)`)
)

// Summarize extracts aggregate pass/fail counts from test-runner output.
// A structured summary line is preferred; otherwise counts fall back to
// per-test markers. Both are best-effort regex extraction.
func Summarize(output string) RunCounts {
	counts := RunCounts{}
	sawSummary := false

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if m := summaryLineRegex.FindStringSubmatch(line); m != nil {
			for _, part := range summaryPartRegex.FindAllStringSubmatch(m[1], -1) {
				n, err := strconv.Atoi(part[1])
				if err != nil {
					continue
				}
				switch part[2] {
				case "failed":
					counts.Failed = n
				case "passed":
					counts.Passed = n
				case "total":
					counts.Total = n
				}
			}
			sawSummary = true
		}
	}

	for _, failure := range Parse(output) {
		counts.FailedTests = append(counts.FailedTests, failure.TestName)
	}

	if !sawSummary {
		for _, line := range strings.Split(output, "\n") {
			if goTestPassRegex.MatchString(line) {
				counts.Passed++
			}
		}
		counts.Failed = len(counts.FailedTests)
		counts.Total = counts.Passed + counts.Failed
	}
	return counts
}
