// File: internal/generator/normalize.go
package generator

import (
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/xkilldash9x/patchbench/api/schemas"
)

// We compile regexes at the package level for efficiency. Regular strings
// with \x60 stand in for backticks, which raw strings cannot contain.
var fencedBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*\n?(.*?)\\s*\x60\x60\x60")

// StripFences removes a single wrapping markdown code fence, if present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if m := fencedBlockRegex.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// EstimateRisk classifies a patch's blast radius from lines changed and files
// touched. More than 5 files or more than 100 lines is high; more than 2
// files or more than 20 lines is medium; exactly 5 files or exactly 100
// lines therefore lands on medium, not high.
func EstimateRisk(filesModified, linesChanged int) schemas.RiskLevel {
	switch {
	case filesModified > 5 || linesChanged > 100:
		return schemas.RiskHigh
	case filesModified > 2 || linesChanged > 20:
		return schemas.RiskMedium
	default:
		return schemas.RiskLow
	}
}

// Normalize fills in everything a raw generator candidate may be missing:
// identity, clamped confidence, patch text synthesized from whole-file
// contents, impact counts, and the risk level. originals holds the request's
// current file contents for diffing.
func Normalize(p *schemas.GeneratedPatch, originals map[string]string) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Type == "" {
		p.Type = schemas.PatchDirectFix
	}
	if p.Confidence < 0 {
		p.Confidence = 0
	}
	if p.Confidence > 1 {
		p.Confidence = 1
	}

	p.PatchText = StripFences(p.PatchText)

	if p.Impact.FilesModified == 0 {
		p.Impact.FilesModified = len(p.ModifiedFiles)
	}
	if p.Impact.LinesChanged == 0 {
		p.Impact.LinesChanged = countChangedLines(p.ModifiedFiles, originals)
	}
	if p.PatchText == "" && len(p.ModifiedFiles) > 0 {
		p.PatchText = synthesizePatchText(p.ModifiedFiles, originals)
	}
	p.Impact.Risk = EstimateRisk(p.Impact.FilesModified, p.Impact.LinesChanged)
}

// countChangedLines diffs each proposed file against its original and sums
// added plus removed lines.
func countChangedLines(modified, originals map[string]string) int {
	dmp := diffmatchpatch.New()
	total := 0
	for path, proposed := range modified {
		original := originals[path]
		src, dst, lines := dmp.DiffLinesToChars(original, proposed)
		diffs := dmp.DiffCharsToLines(dmp.DiffMain(src, dst, false), lines)
		for _, d := range diffs {
			if d.Type == diffmatchpatch.DiffEqual {
				continue
			}
			total += strings.Count(d.Text, "\n")
			if !strings.HasSuffix(d.Text, "\n") && d.Text != "" {
				total++
			}
		}
	}
	return total
}

// synthesizePatchText builds patch text for candidates that arrived as
// whole-file contents only. Files are emitted in sorted path order so the
// output is stable.
func synthesizePatchText(modified, originals map[string]string) string {
	paths := make([]string, 0, len(modified))
	for path := range modified {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	dmp := diffmatchpatch.New()
	var sb strings.Builder
	for _, path := range paths {
		patches := dmp.PatchMake(originals[path], modified[path])
		if len(patches) == 0 {
			continue
		}
		sb.WriteString("--- a/" + path + "\n")
		sb.WriteString("+++ b/" + path + "\n")
		sb.WriteString(dmp.PatchToText(patches))
	}
	return sb.String()
}
