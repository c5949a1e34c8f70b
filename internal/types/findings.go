package types

// Finding kinds shared between the analyzers that produce them and the
// adjustment rules that count them. Kinds are plain strings so new
// analyzers can introduce their own without touching this list.
const (
	// FindingSecretHits aggregates every potential credential match in
	// the repository (API keys, tokens, private keys, passwords).
	FindingSecretHits = "potential_secrets"

	// FindingSensitiveFiles counts files whose names alone suggest
	// secret material (.env, .pem, id_rsa).
	FindingSensitiveFiles = "sensitive_files"

	// FindingMissingTests is 1 when the repository has no test files.
	FindingMissingTests = "missing_tests"

	// FindingOversizedFiles counts source files over the size threshold.
	FindingOversizedFiles = "oversized_files"

	// FindingTodoMarkers counts TODO and FIXME markers in source.
	FindingTodoMarkers = "todo_markers"

	// FindingMissingReadme is 1 when the repository has no README.
	FindingMissingReadme = "missing_readme"

	// FindingMissingSecurityDocs is 1 when documentation carries no
	// security guidance section.
	FindingMissingSecurityDocs = "missing_security_docs"

	// FindingUndocumentedSetup is 1 when documentation never explains
	// installation or setup.
	FindingUndocumentedSetup = "undocumented_setup"
)

// CountFindings sums the counts of every finding with the given kind.
func CountFindings(findings []Finding, kind string) int {
	total := 0
	for _, f := range findings {
		if f.Kind == kind {
			total += f.Count
		}
	}
	return total
}
