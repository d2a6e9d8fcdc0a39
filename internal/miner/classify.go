// File: internal/miner/classify.go
//
// Keyword and threshold heuristics for labeling mined bug-fix episodes.
// These are pure functions over text so they stay unit-testable without any
// repository access.
package miner

import (
	"strings"

	"github.com/xkilldash9x/patchbench/api/schemas"
)

var (
	criticalKeywords = []string{
		"crash", "panic", "security", "vulnerab", "data loss", "corrupt", "critical",
	}
	highKeywords = []string{
		"exception", "regression", "broken", "deadlock", "race", "leak",
	}
	lowKeywords = []string{
		"typo", "cosmetic", "lint", "formatting", "whitespace", "comment", "doc",
	}

	compilationCategoryKeywords = []string{
		"compile", "build error", "build fail", "syntax", "type error", "typecheck",
	}
	runtimeCategoryKeywords = []string{
		"crash", "panic", "exception", "nil pointer", "null", "undefined", "segfault",
	}
	performanceCategoryKeywords = []string{
		"performance", "slow", "latency", "memory", "leak", "optimiz", "throughput",
	}
	uiCategoryKeywords = []string{
		"ui ", "layout", "render", "style", "css", "overflow", "flicker",
	}

	uiExtensions = []string{".css", ".scss", ".less", ".html", ".vue", ".svelte"}
)

// DeriveSeverity classifies a commit's severity from keyword heuristics over
// its message and diff text. Default is medium.
func DeriveSeverity(message, diff string) schemas.Severity {
	text := strings.ToLower(message + "\n" + diff)
	for _, kw := range criticalKeywords {
		if strings.Contains(text, kw) {
			return schemas.SeverityCritical
		}
	}
	for _, kw := range highKeywords {
		if strings.Contains(text, kw) {
			return schemas.SeverityHigh
		}
	}
	for _, kw := range lowKeywords {
		if strings.Contains(text, kw) {
			return schemas.SeverityLow
		}
	}
	return schemas.SeverityMedium
}

// DeriveCategory classifies a commit's bug category from message keywords,
// falling back to file-extension hints. Default is logic.
func DeriveCategory(message string, changedFiles []string) schemas.Category {
	text := strings.ToLower(message)
	for _, kw := range compilationCategoryKeywords {
		if strings.Contains(text, kw) {
			return schemas.CategoryCompilation
		}
	}
	for _, kw := range runtimeCategoryKeywords {
		if strings.Contains(text, kw) {
			return schemas.CategoryRuntime
		}
	}
	for _, kw := range performanceCategoryKeywords {
		if strings.Contains(text, kw) {
			return schemas.CategoryPerformance
		}
	}
	for _, kw := range uiCategoryKeywords {
		if strings.Contains(text, kw) {
			return schemas.CategoryUI
		}
	}
	for _, file := range changedFiles {
		for _, ext := range uiExtensions {
			if strings.HasSuffix(strings.ToLower(file), ext) {
				return schemas.CategoryUI
			}
		}
	}
	return schemas.CategoryLogic
}

// DeriveDifficulty maps a fix's complexity score, diffLines + 10*fileCount,
// onto a difficulty band: < 20 easy, < 50 medium, < 100 hard, else expert.
func DeriveDifficulty(diffLines, fileCount int) schemas.Difficulty {
	complexity := diffLines + 10*fileCount
	switch {
	case complexity < 20:
		return schemas.DifficultyEasy
	case complexity < 50:
		return schemas.DifficultyMedium
	case complexity < 100:
		return schemas.DifficultyHard
	default:
		return schemas.DifficultyExpert
	}
}

// CountDiffLines counts added and removed lines in a unified diff, excluding
// the +++/--- file headers.
func CountDiffLines(diff string) int {
	count := 0
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			count++
		}
	}
	return count
}
