package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/jury/internal/agent"
	"github.com/steveyegge/jury/internal/snapshot"
	"github.com/steveyegge/jury/internal/types"
)

var (
	readmeNames = map[string]bool{
		"readme.md":       true,
		"readme":          true,
		"readme.rst":      true,
		"readme.txt":      true,
		"readme.markdown": true,
	}
	licenseNames = map[string]bool{
		"license":     true,
		"license.md":  true,
		"license.txt": true,
		"licence":     true,
		"licence.md":  true,
		"copying":     true,
	}
	docExts = map[string]bool{
		".md":   true,
		".rst":  true,
		".adoc": true,
	}

	setupHeading    = regexp.MustCompile(`(?im)^#{1,6}[^\n]*\b(?:install|installation|setup|getting started|quick ?start)\b`)
	usageHeading    = regexp.MustCompile(`(?im)^#{1,6}[^\n]*\b(?:usage|examples?|how to|api|commands?)\b`)
	securityHeading = regexp.MustCompile(`(?im)^#{1,6}[^\n]*\b(?:security|credentials?|secrets?|authentication)\b`)
)

// DocsAnalyzer scores documentation depth: README presence and
// substance, setup and usage guidance, security guidance, licensing,
// and how much documentation exists beyond the README.
type DocsAnalyzer struct {
	// MinReadmeLines is the line count below which a README counts as
	// thin.
	MinReadmeLines int
}

var _ agent.Analyzer = (*DocsAnalyzer)(nil)

// NewDocsAnalyzer creates a documentation analyzer with the standard
// thresholds.
func NewDocsAnalyzer() *DocsAnalyzer {
	return &DocsAnalyzer{MinReadmeLines: 30}
}

// Analyze inventories the snapshot's documentation and scores it.
func (a *DocsAnalyzer) Analyze(ctx context.Context, snap *snapshot.Snapshot) (*agent.Analysis, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is required")
	}
	if snap.Empty() {
		return nil, errEmptySnapshot(snap)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	inv := inventoryDocs(snap)

	raw := 100.0
	var findings []types.Finding

	switch {
	case !inv.hasReadme:
		raw -= 40
		findings = append(findings, types.Finding{
			Kind:   types.FindingMissingReadme,
			Count:  1,
			Detail: "no README at the repository root",
		})
	case inv.readmeLines < a.MinReadmeLines:
		raw -= 15
	}

	if !inv.hasSetup {
		raw -= 10
		findings = append(findings, types.Finding{
			Kind:   types.FindingUndocumentedSetup,
			Count:  1,
			Detail: "no installation or setup guidance found",
		})
	}
	if !inv.hasUsage {
		raw -= 10
	}
	if !inv.hasSecurity {
		raw -= 10
		findings = append(findings, types.Finding{
			Kind:   types.FindingMissingSecurityDocs,
			Count:  1,
			Detail: "no security guidance in README, SECURITY.md, or docs/",
		})
	}
	if !inv.hasLicense {
		raw -= 5
	}
	if inv.docFiles < 2 && !inv.hasDocsDir {
		raw -= 10
	}

	confidence := 0.8
	if inv.hasReadme {
		confidence = 0.95
	}

	return &agent.Analysis{
		RawScore:   clampScore(raw),
		Confidence: confidence,
		Summary:    inv.describe(),
		Findings:   findings,
	}, nil
}

// docInventory is everything the analyzer learned about the snapshot's
// documentation.
type docInventory struct {
	hasReadme   bool
	readmePath  string
	readmeLines int
	hasSetup    bool
	hasUsage    bool
	hasSecurity bool
	hasLicense  bool
	hasDocsDir  bool
	docFiles    int
}

func inventoryDocs(snap *snapshot.Snapshot) docInventory {
	var inv docInventory

	for _, f := range snap.Files {
		base := baseName(f.Path)
		atRoot := !strings.Contains(f.Path, "/")

		if docExts[extension(f.Path)] {
			inv.docFiles++
		}
		if strings.HasPrefix(f.Path, "docs/") {
			inv.hasDocsDir = true
		}
		if atRoot && licenseNames[base] {
			inv.hasLicense = true
		}
		if atRoot && base == "security.md" {
			inv.hasSecurity = true
		}
		if strings.HasPrefix(f.Path, "docs/") && strings.Contains(base, "security") {
			inv.hasSecurity = true
		}

		if atRoot && readmeNames[base] && !inv.hasReadme {
			inv.hasReadme = true
			inv.readmePath = f.Path
			if f.Data != nil {
				inv.readmeLines = countLines(f.Data)
				text := string(f.Data)
				inv.hasSetup = setupHeading.MatchString(text)
				inv.hasUsage = usageHeading.MatchString(text)
				if securityHeading.MatchString(text) {
					inv.hasSecurity = true
				}
			}
		}
	}

	return inv
}

func (inv docInventory) describe() string {
	if !inv.hasReadme {
		return fmt.Sprintf("no README found; %d other doc file(s)", inv.docFiles)
	}

	var sections []string
	if inv.hasSetup {
		sections = append(sections, "setup")
	}
	if inv.hasUsage {
		sections = append(sections, "usage")
	}
	if inv.hasSecurity {
		sections = append(sections, "security")
	}
	sectionDesc := "no recognized sections"
	if len(sections) > 0 {
		sectionDesc = strings.Join(sections, ", ") + " covered"
	}

	return fmt.Sprintf("%s is %d lines (%s); %d doc file(s) total",
		inv.readmePath, inv.readmeLines, sectionDesc, inv.docFiles)
}
