// Package analysis holds the built-in analyzers behind the evaluating
// agents: secret exposure, structural quality, and documentation depth.
// Every analyzer is a pure function of the snapshot so that identical
// input always produces identical scores, findings, and confidence.
package analysis

import (
	"bytes"
	"fmt"
	"math"
	"path"
	"sort"
	"strings"

	"github.com/steveyegge/jury/internal/snapshot"
)

// errEmptySnapshot is returned by every analyzer handed a snapshot with
// no files. The caller substitutes a zero-score result for the agent.
func errEmptySnapshot(snap *snapshot.Snapshot) error {
	return fmt.Errorf("snapshot of %s contains no files to analyze", snap.Name)
}

// countLines counts newline-terminated lines, counting a trailing
// partial line as one.
func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// distribution summarizes a set of file line counts.
type distribution struct {
	Mean   float64
	StdDev float64
	Max    int
	Count  int
}

// lineDistribution computes the mean and standard deviation of the
// given line counts.
func lineDistribution(lines []int) distribution {
	if len(lines) == 0 {
		return distribution{}
	}

	sum := 0
	max := 0
	for _, l := range lines {
		sum += l
		if l > max {
			max = l
		}
	}
	mean := float64(sum) / float64(len(lines))

	variance := 0.0
	for _, l := range lines {
		diff := float64(l) - mean
		variance += diff * diff
	}

	return distribution{
		Mean:   mean,
		StdDev: math.Sqrt(variance / float64(len(lines))),
		Max:    max,
		Count:  len(lines),
	}
}

// clampScore bounds a computed raw score to [0, 100].
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// round2 rounds half away from zero to two decimal places.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// baseName returns the lowercased final path element.
func baseName(p string) string {
	return strings.ToLower(path.Base(p))
}

// extension returns the lowercased file extension including the dot.
func extension(p string) string {
	return strings.ToLower(path.Ext(p))
}

// topCounts renders a count map as "k1=v1, k2=v2" with keys sorted by
// count descending, ties broken alphabetically, truncated to limit.
func topCounts(counts map[string]int, limit int) string {
	type kv struct {
		key   string
		count int
	}
	pairs := make([]kv, 0, len(counts))
	for k, v := range counts {
		pairs = append(pairs, kv{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].key < pairs[j].key
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s=%d", p.key, p.count)
	}
	return strings.Join(parts, ", ")
}
