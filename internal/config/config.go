// Package config assembles runtime configuration for the jury CLI.
// Defaults come first, environment variables override them, and
// command-line flags are layered on top by the caller. Library
// packages never read the environment themselves; they take the
// values this package hands them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/steveyegge/jury/internal/agent"
	"github.com/steveyegge/jury/internal/types"
)

// Store backends the CLI knows how to open.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreNone     = "none"
)

// PostgresConfig holds connection settings for the postgres backend.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN assembles the connection string pgxpool expects.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// Config is the resolved runtime configuration for an evaluation.
type Config struct {
	// StoreBackend selects where finalized runs are persisted:
	// "sqlite", "postgres", or "none".
	StoreBackend string

	// DBPath is the sqlite database file.
	DBPath string

	// RunsDir is the root directory report bundles are written under,
	// one subdirectory per run.
	RunsDir string

	// Postgres applies when StoreBackend is "postgres".
	Postgres PostgresConfig

	// Weights holds explicit integer weights for the weighted
	// calculation method. nil means equal weighting.
	Weights map[types.AgentID]int

	// Policy holds the penalty constants the adjustment rules use.
	Policy *agent.PolicyConfig

	// PriorityThreshold splits the timeline priority snapshot:
	// adjusted scores at or above it read High Priority.
	PriorityThreshold float64

	// AINotesModel is the Anthropic model used when AI notes are
	// requested. The API key comes from ANTHROPIC_API_KEY.
	AINotesModel string

	// MaxNoteTokens caps output tokens for a single note request.
	MaxNoteTokens int

	// MaxDailyCost caps estimated AI spend per day in USD.
	// 0 = unlimited.
	MaxDailyCost float64
}

// Default returns the built-in configuration. Paths land under
// ~/.jury, falling back to the working directory when the home
// directory cannot be resolved.
func Default() *Config {
	base := "."
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".jury")
	}
	return &Config{
		StoreBackend: StoreSQLite,
		DBPath:       filepath.Join(base, "jury.db"),
		RunsDir:      filepath.Join(base, "runs"),
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "jury",
			SSLMode: "disable",
		},
		Policy:            agent.DefaultPolicyConfig(),
		PriorityThreshold: 50,
		AINotesModel:      "claude-3-5-haiku-20241022",
		MaxNoteTokens:     512,
		MaxDailyCost:      1.00,
	}
}

// Load builds a Config from defaults plus JURY_* environment
// variables.
//
// Environment variables:
//   - JURY_STORE_BACKEND: sqlite, postgres, or none (default: sqlite)
//   - JURY_DB_PATH: sqlite database file (default: ~/.jury/jury.db)
//   - JURY_RUNS_DIR: report output root (default: ~/.jury/runs)
//   - JURY_POSTGRES_HOST / PORT / USER / PASSWORD / DBNAME / SSLMODE
//   - JURY_WEIGHTS: weights string, e.g. security=40,quality=30,documentation=30
//   - JURY_WEIGHTS_FILE: YAML weights file; JURY_WEIGHTS wins when both are set
//   - JURY_POLICY_FILE: YAML policy file overriding penalty defaults
//   - JURY_SECRET_PENALTY, JURY_SECRET_PENALTY_CAP,
//     JURY_DOCS_SECURITY_PENALTY, JURY_DOCS_TESTS_PENALTY: policy penalties
//     (these win over JURY_POLICY_FILE when both are set)
//   - JURY_PRIORITY_THRESHOLD: timeline priority cutoff (default: 50)
//   - JURY_AI_NOTES_MODEL, JURY_MAX_NOTE_TOKENS, JURY_MAX_DAILY_COST
//
// Returns an error when a variable is set to a value that cannot be
// parsed or when the assembled configuration is invalid.
func Load() (*Config, error) {
	cfg := Default()

	if err := parseEnvString("JURY_STORE_BACKEND", &cfg.StoreBackend); err != nil {
		return nil, err
	}
	if err := parseEnvString("JURY_DB_PATH", &cfg.DBPath); err != nil {
		return nil, err
	}
	if err := parseEnvString("JURY_RUNS_DIR", &cfg.RunsDir); err != nil {
		return nil, err
	}

	if err := parseEnvString("JURY_POSTGRES_HOST", &cfg.Postgres.Host); err != nil {
		return nil, err
	}
	if err := parseEnvInt("JURY_POSTGRES_PORT", &cfg.Postgres.Port); err != nil {
		return nil, err
	}
	if err := parseEnvString("JURY_POSTGRES_USER", &cfg.Postgres.User); err != nil {
		return nil, err
	}
	if err := parseEnvString("JURY_POSTGRES_PASSWORD", &cfg.Postgres.Password); err != nil {
		return nil, err
	}
	if err := parseEnvString("JURY_POSTGRES_DBNAME", &cfg.Postgres.DBName); err != nil {
		return nil, err
	}
	if err := parseEnvString("JURY_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode); err != nil {
		return nil, err
	}

	if file := os.Getenv("JURY_WEIGHTS_FILE"); file != "" {
		weights, err := LoadWeightsFile(file)
		if err != nil {
			return nil, fmt.Errorf("invalid value for JURY_WEIGHTS_FILE: %w", err)
		}
		cfg.Weights = weights
	}
	if spec := os.Getenv("JURY_WEIGHTS"); spec != "" {
		weights, err := ParseWeights(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid value for JURY_WEIGHTS: %w", err)
		}
		cfg.Weights = weights
	}

	if file := os.Getenv("JURY_POLICY_FILE"); file != "" {
		policy, err := LoadPolicyFile(file)
		if err != nil {
			return nil, fmt.Errorf("invalid value for JURY_POLICY_FILE: %w", err)
		}
		cfg.Policy = policy
	}
	if err := parseEnvFloat("JURY_SECRET_PENALTY", &cfg.Policy.SecretPenalty); err != nil {
		return nil, err
	}
	if err := parseEnvFloat("JURY_SECRET_PENALTY_CAP", &cfg.Policy.SecretPenaltyCap); err != nil {
		return nil, err
	}
	if err := parseEnvFloat("JURY_DOCS_SECURITY_PENALTY", &cfg.Policy.DocsSecurityGapPenalty); err != nil {
		return nil, err
	}
	if err := parseEnvFloat("JURY_DOCS_TESTS_PENALTY", &cfg.Policy.DocsMissingTestsPenalty); err != nil {
		return nil, err
	}

	if err := parseEnvFloat("JURY_PRIORITY_THRESHOLD", &cfg.PriorityThreshold); err != nil {
		return nil, err
	}

	if err := parseEnvString("JURY_AI_NOTES_MODEL", &cfg.AINotesModel); err != nil {
		return nil, err
	}
	if err := parseEnvInt("JURY_MAX_NOTE_TOKENS", &cfg.MaxNoteTokens); err != nil {
		return nil, err
	}
	if err := parseEnvFloat("JURY_MAX_DAILY_COST", &cfg.MaxDailyCost); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreSQLite, StorePostgres, StoreNone:
	default:
		return fmt.Errorf("unknown store backend %q (want sqlite, postgres, or none)", c.StoreBackend)
	}
	if c.StoreBackend == StoreSQLite && c.DBPath == "" {
		return fmt.Errorf("sqlite backend requires a database path")
	}
	if c.StoreBackend == StorePostgres {
		if c.Postgres.Host == "" {
			return fmt.Errorf("postgres backend requires a host")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			return fmt.Errorf("postgres port must be between 1 and 65535 (got %d)", c.Postgres.Port)
		}
		if c.Postgres.DBName == "" {
			return fmt.Errorf("postgres backend requires a database name")
		}
	}
	if c.RunsDir == "" {
		return fmt.Errorf("runs directory must not be empty")
	}
	if c.Weights != nil {
		if err := ValidateWeights(c.Weights); err != nil {
			return err
		}
	}
	if c.Policy != nil {
		if err := c.Policy.Validate(); err != nil {
			return err
		}
	}
	if c.PriorityThreshold < 0 || c.PriorityThreshold > 100 {
		return fmt.Errorf("priority threshold must be between 0 and 100 (got %.1f)", c.PriorityThreshold)
	}
	if c.MaxNoteTokens < 0 {
		return fmt.Errorf("max note tokens cannot be negative (got %d)", c.MaxNoteTokens)
	}
	if c.MaxDailyCost < 0 {
		return fmt.Errorf("max daily cost cannot be negative (got %.2f)", c.MaxDailyCost)
	}
	return nil
}

// ScoringMethod reports the calculation method the weights imply.
func (c *Config) ScoringMethod() types.CalculationMethod {
	if len(c.Weights) == 0 {
		return types.MethodEqualWeight
	}
	return types.MethodWeighted
}

// parseEnvInt parses an int from an environment variable.
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float64 from an environment variable.
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable.
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
