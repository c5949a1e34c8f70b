package analysis

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/steveyegge/jury/internal/agent"
	"github.com/steveyegge/jury/internal/snapshot"
	"github.com/steveyegge/jury/internal/types"
)

// languageByExt maps source file extensions to a language label for
// the census. Extensions not listed are not counted as source.
var languageByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".php":   "php",
	".scala": "scala",
	".sh":    "shell",
	".lua":   "lua",
	".zig":   "zig",
}

var todoMarker = regexp.MustCompile(`\b(?:TODO|FIXME)\b`)

// StructureAnalyzer scores structural code quality: test presence and
// ratio, file size outliers, deferred-work markers, and Go module
// hygiene when a go.mod is present.
type StructureAnalyzer struct {
	// OutlierThreshold is the number of standard deviations above the
	// mean line count at which a file counts as oversized.
	OutlierThreshold float64
	// OversizedFloor is the minimum line count for an oversized file,
	// so small uniform repositories are not flagged on variance alone.
	OversizedFloor int
	// LowTestRatio is the test-to-source file ratio below which a
	// deduction applies even though tests exist.
	LowTestRatio float64
}

var _ agent.Analyzer = (*StructureAnalyzer)(nil)

// NewStructureAnalyzer creates a structure analyzer with the standard
// thresholds.
func NewStructureAnalyzer() *StructureAnalyzer {
	return &StructureAnalyzer{
		OutlierThreshold: 2.5,
		OversizedFloor:   400,
		LowTestRatio:     0.2,
	}
}

// Analyze builds a language census over the snapshot and scores the
// repository's structure.
func (a *StructureAnalyzer) Analyze(ctx context.Context, snap *snapshot.Snapshot) (*agent.Analysis, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is required")
	}
	if snap.Empty() {
		return nil, errEmptySnapshot(snap)
	}

	census := make(map[string]int)
	var sourceLines []int
	var sourcePaths []string
	sourceCount := 0
	testCount := 0
	todoCount := 0

	for _, f := range snap.Files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		lang, ok := languageByExt[extension(f.Path)]
		if !ok {
			continue
		}
		census[lang]++
		if isTestFile(f.Path) {
			testCount++
			continue
		}
		sourceCount++
		sourcePaths = append(sourcePaths, f.Path)
		if f.Data != nil {
			sourceLines = append(sourceLines, countLines(f.Data))
			todoCount += len(todoMarker.FindAllIndex(f.Data, -1))
		} else {
			sourceLines = append(sourceLines, 0)
		}
	}

	if sourceCount == 0 {
		return &agent.Analysis{
			RawScore:   50,
			Confidence: 0.3,
			Summary:    fmt.Sprintf("no recognized source files among %d files, structure not assessable", snap.FileCount()),
			Findings:   nil,
		}, nil
	}

	dist := lineDistribution(sourceLines)
	oversized := a.findOversized(sourcePaths, sourceLines, dist)
	goSummary, goPenalty := a.inspectGoModule(snap)

	raw := 100.0
	var findings []types.Finding

	if testCount == 0 {
		raw -= 30
		findings = append(findings, types.Finding{
			Kind:   types.FindingMissingTests,
			Count:  1,
			Detail: fmt.Sprintf("no test files among %d source files", sourceCount),
		})
	} else if ratio := float64(testCount) / float64(sourceCount); ratio < a.LowTestRatio {
		raw -= 10
	}

	if len(oversized) > 0 {
		penalty := 4 * float64(len(oversized))
		if penalty > 20 {
			penalty = 20
		}
		raw -= penalty
		findings = append(findings, types.Finding{
			Kind:   types.FindingOversizedFiles,
			Count:  len(oversized),
			Detail: fmt.Sprintf("files well above the %.0f-line mean: %s", dist.Mean, sampleList(oversized, 3)),
		})
	}

	if todoCount > 0 {
		penalty := float64(todoCount / 5)
		if penalty > 10 {
			penalty = 10
		}
		raw -= penalty
		findings = append(findings, types.Finding{
			Kind:   types.FindingTodoMarkers,
			Count:  todoCount,
			Detail: fmt.Sprintf("%d TODO/FIXME marker(s) in source", todoCount),
		})
	}
	raw -= goPenalty

	summary := fmt.Sprintf("%d source file(s) (%s), %d test file(s), mean length %.0f lines",
		sourceCount, topCounts(census, 3), testCount, dist.Mean)
	if goSummary != "" {
		summary += "; " + goSummary
	}

	return &agent.Analysis{
		RawScore:   clampScore(raw),
		Confidence: structureConfidence(sourceCount),
		Summary:    summary,
		Findings:   findings,
	}, nil
}

// findOversized returns source paths whose line count exceeds both the
// statistical threshold and the absolute floor, largest first.
func (a *StructureAnalyzer) findOversized(paths []string, lines []int, dist distribution) []string {
	threshold := dist.Mean + a.OutlierThreshold*dist.StdDev

	type entry struct {
		path  string
		lines int
	}
	var out []entry
	for i, p := range paths {
		if lines[i] > a.OversizedFloor && float64(lines[i]) > threshold {
			out = append(out, entry{p, lines[i]})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].lines != out[j].lines {
			return out[i].lines > out[j].lines
		}
		return out[i].path < out[j].path
	})

	names := make([]string, len(out))
	for i, e := range out {
		names[i] = fmt.Sprintf("%s (%d lines)", e.path, e.lines)
	}
	return names
}

// inspectGoModule parses go.mod when present. An unparseable manifest
// costs 5 points; a missing one costs nothing since not every
// repository is a Go module.
func (a *StructureAnalyzer) inspectGoModule(snap *snapshot.Snapshot) (summary string, penalty float64) {
	f, ok := snap.Lookup("go.mod")
	if !ok || f.Data == nil {
		return "", 0
	}

	mod, err := modfile.Parse("go.mod", f.Data, nil)
	if err != nil {
		return "go.mod present but unparseable", 5
	}

	name := "unnamed module"
	if mod.Module != nil && mod.Module.Mod.Path != "" {
		name = mod.Module.Mod.Path
	}
	direct := 0
	for _, r := range mod.Require {
		if !r.Indirect {
			direct++
		}
	}
	parts := []string{fmt.Sprintf("module %s with %d direct dependenc(ies)", name, direct)}
	if mod.Go != nil && mod.Go.Version != "" {
		parts = append(parts, "go "+mod.Go.Version)
	}
	return strings.Join(parts, ", "), 0
}

// isTestFile recognizes test files across the census languages.
func isTestFile(p string) bool {
	base := baseName(p)
	switch {
	case strings.HasSuffix(base, "_test.go"),
		strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"),
		strings.HasSuffix(base, "_test.py"):
		return true
	}
	for _, marker := range []string{".test.", ".spec."} {
		if strings.Contains(base, marker) {
			return true
		}
	}
	for _, seg := range strings.Split(strings.ToLower(p), "/") {
		if seg == "test" || seg == "tests" || seg == "spec" || seg == "__tests__" {
			return true
		}
	}
	return false
}

// structureConfidence scales with sample size: judgments over a handful
// of files carry less weight than judgments over a real codebase.
func structureConfidence(sourceCount int) float64 {
	scale := float64(sourceCount) / 25
	if scale > 1 {
		scale = 1
	}
	return round2(0.5 + 0.4*scale)
}
