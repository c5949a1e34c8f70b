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

// secretPattern is one detector class: a name for reporting plus the
// expression that matches it.
type secretPattern struct {
	name string
	re   *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{"aws_access_key", regexp.MustCompile(`\b(?:AKIA|ASIA|ABIA|ACCA)[0-9A-Z]{16}\b`)},
	{"github_token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{"slack_token", regexp.MustCompile(`\bxox[baprs]-[0-9A-Za-z-]{10,}\b`)},
	{"private_key", regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`)},
	{"bearer_token", regexp.MustCompile(`(?i)\bbearer\s+[a-z0-9\-._~+/]{30,}=*`)},
	{"assigned_secret", regexp.MustCompile(`(?i)\b(?:api[_-]?key|apikey|secret|token|passwd|password)\b\s*[:=]\s*["'][^"'\s]{8,}["']`)},
	{"connection_string", regexp.MustCompile(`(?i)\b(?:postgres|postgresql|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s:@/]+:[^\s@/]+@`)},
}

// File names and extensions that suggest secret material regardless of
// contents.
var (
	sensitiveNames = map[string]bool{
		".env":             true,
		".netrc":           true,
		".pgpass":          true,
		"id_rsa":           true,
		"id_dsa":           true,
		"id_ecdsa":         true,
		"id_ed25519":       true,
		"credentials.json": true,
		"secrets.yaml":     true,
		"secrets.yml":      true,
	}
	sensitiveExts = map[string]bool{
		".pem":      true,
		".p12":      true,
		".pfx":      true,
		".jks":      true,
		".keystore": true,
	}
)

// SecretsAnalyzer scores a repository on secret and credential
// exposure. The raw score starts at 100 and drops per potential secret
// hit and per secret-looking file name.
type SecretsAnalyzer struct {
	// PenaltyPerHit is deducted per secret match.
	PenaltyPerHit float64
	// PenaltyPerSensitiveFile is deducted per secret-looking file name.
	PenaltyPerSensitiveFile float64
}

var _ agent.Analyzer = (*SecretsAnalyzer)(nil)

// NewSecretsAnalyzer creates a secrets analyzer with the standard
// penalties.
func NewSecretsAnalyzer() *SecretsAnalyzer {
	return &SecretsAnalyzer{
		PenaltyPerHit:           20,
		PenaltyPerSensitiveFile: 5,
	}
}

// Analyze scans every text file against the detector classes and every
// file name against the sensitive-name tables.
func (a *SecretsAnalyzer) Analyze(ctx context.Context, snap *snapshot.Snapshot) (*agent.Analysis, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is required")
	}
	if snap.Empty() {
		return nil, errEmptySnapshot(snap)
	}

	text := snap.TextFiles()
	hitsByPattern := make(map[string]int)
	totalHits := 0

	for _, f := range text {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for _, p := range secretPatterns {
			n := len(p.re.FindAllIndex(f.Data, -1))
			if n > 0 {
				hitsByPattern[p.name] += n
				totalHits += n
			}
		}
	}

	var sensitiveFiles []string
	for _, f := range snap.Files {
		base := baseName(f.Path)
		if sensitiveNames[base] || sensitiveExts[extension(f.Path)] {
			sensitiveFiles = append(sensitiveFiles, f.Path)
		}
	}

	raw := clampScore(100 - a.PenaltyPerHit*float64(totalHits) -
		a.PenaltyPerSensitiveFile*float64(len(sensitiveFiles)))

	findings := []types.Finding{secretHitsFinding(totalHits, hitsByPattern)}
	if len(sensitiveFiles) > 0 {
		findings = append(findings, types.Finding{
			Kind:   types.FindingSensitiveFiles,
			Count:  len(sensitiveFiles),
			Detail: fmt.Sprintf("secret-looking file name(s): %s", sampleList(sensitiveFiles, 5)),
		})
	}

	return &agent.Analysis{
		RawScore:   raw,
		Confidence: scanConfidence(len(text), snap.FileCount()),
		Summary: fmt.Sprintf("scanned %d of %d files for secret exposure: %d potential secret hit(s), %d sensitive file name(s)",
			len(text), snap.FileCount(), totalHits, len(sensitiveFiles)),
		Findings: findings,
	}, nil
}

func secretHitsFinding(total int, byPattern map[string]int) types.Finding {
	detail := "no matches"
	if total > 0 {
		detail = fmt.Sprintf("%d potential secret hits (%s)", total, topCounts(byPattern, 3))
	}
	return types.Finding{
		Kind:   types.FindingSecretHits,
		Count:  total,
		Detail: detail,
	}
}

// scanConfidence scales with the fraction of the repository that was
// actually readable as text: binaries and oversized files lower it.
func scanConfidence(scanned, total int) float64 {
	if total == 0 {
		return 0.5
	}
	coverage := float64(scanned) / float64(total)
	return round2(0.5 + 0.45*coverage)
}

func sampleList(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s, and %d more", strings.Join(items[:limit], ", "), len(items)-limit)
}
