// Package config loads the typed Config struct described in spec.md §6
// from environment variables, following the teacher's pkg/config style:
// godotenv for local .env files, os.Getenv reads with documented
// defaults, and a Validator pass at load time (pkg/config/validator.go).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/nnmtech/verisynthos/pkg/job"
)

// Config is the process-wide configuration assembled at startup.
type Config struct {
	// SoftDeleteRetentionDays is the grace period before a soft-deleted
	// document is hard-deleted, per spec.md §6 (default 30).
	SoftDeleteRetentionDays int

	// QuotaLimitPerMinute is the token-bucket size for the ingestion
	// quota limiter (see ingest.NewQuotaLimiter), per spec.md §6
	// (default 1000).
	QuotaLimitPerMinute int

	// EnableHybridSearch is reported by GET /health as
	// hybrid_search_enabled (default true). pkg/retrieve does not read
	// it: search always fuses the vector and lexical arms, whatever its
	// value.
	EnableHybridSearch bool

	// MakerK, MakerMaxRounds and MakerMaxTokens are MAKER's voting
	// parameters, per spec.md §6 (defaults 3, 40, and a model-tier-
	// dependent token ceiling applied by callers — see MaxTokensFor).
	MakerK         int
	MakerMaxRounds int
	MakerMaxTokens int

	// WorkerURLs maps a job.Stage name to its registered worker façade
	// URL, one env var per worker per SPEC_FULL.md's supplemented agent
	// registry (WORKER_<STAGE>_URL, e.g. WORKER_RESEARCH_URL).
	WorkerURLs map[job.Stage]string

	// HTTPAddr is the address pkg/api's echo server listens on.
	HTTPAddr string
}

// premiumMaxTokens and standardMaxTokens are the two MAKER_MAX_TOKENS
// defaults spec.md §6 names ("auto: 1200 for premium models, 750
// otherwise").
const (
	premiumMaxTokens  = 1200
	standardMaxTokens = 750
)

// MaxTokensFor returns MakerMaxTokens if the operator set it explicitly,
// otherwise the spec's auto default keyed on whether modelName is a
// premium model (as judged by IsPremiumModel).
func (c Config) MaxTokensFor(modelName string) int {
	if c.MakerMaxTokens != 0 {
		return c.MakerMaxTokens
	}
	if IsPremiumModel(modelName) {
		return premiumMaxTokens
	}
	return standardMaxTokens
}

// premiumModelPrefixes names model identifiers treated as premium for
// MAKER_MAX_TOKENS auto-selection. Extend as new premium tiers appear.
var premiumModelPrefixes = []string{"gpt-4", "claude-3-opus", "claude-opus", "gemini-1.5-pro", "gemini-2"}

// IsPremiumModel reports whether modelName matches a known premium tier.
func IsPremiumModel(modelName string) bool {
	lower := strings.ToLower(modelName)
	for _, prefix := range premiumModelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// workerStages lists every job.Stage that needs a registered worker URL:
// each stage a built-in job DAG dispatches to. The monitor façade has no
// stage; the orchestrator calls it in-process.
var workerStages = []job.Stage{
	job.StageResearch,
	job.StageIngest,
	job.StageVerify,
	job.StageExport,
	job.StageRetrieve,
	job.StageTransform,
}

// Load reads configuration from the process environment, first loading
// envPath (if it exists) via godotenv so local development can use a
// .env file without exporting variables into the shell — the teacher's
// pattern in cmd/tarsy/main.go. A missing envPath is not an error.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", envPath, err)
		}
	}

	cfg := &Config{
		SoftDeleteRetentionDays: envInt("SOFT_DELETE_RETENTION_DAYS", 30),
		QuotaLimitPerMinute:     envInt("QUOTA_LIMIT_PER_MINUTE", 1000),
		EnableHybridSearch:      envBool("ENABLE_HYBRID_SEARCH", true),
		MakerK:                  envInt("MAKER_K", 3),
		MakerMaxRounds:          envInt("MAKER_MAX_ROUNDS", 40),
		MakerMaxTokens:          envInt("MAKER_MAX_TOKENS", 0),
		WorkerURLs:              make(map[job.Stage]string),
		HTTPAddr:                envString("HTTP_ADDR", ":8080"),
	}

	for _, stage := range workerStages {
		key := "WORKER_" + strings.ToUpper(string(stage)) + "_URL"
		if url := os.Getenv(key); url != "" {
			cfg.WorkerURLs[stage] = url
		}
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
