// Package config loads the process-wide configuration for the pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ModelNames holds the four LLM roles the pipeline distinguishes between,
// mirroring a named-config-per-role pattern.
type ModelNames struct {
	SchemaSelector string `json:"schema_selector"`
	SQLGenerator   string `json:"sql_generator"`
	SQLRefiner     string `json:"sql_refiner"`
	Evaluator      string `json:"evaluator"`
}

// TokenBudgets bounds how much context is spent on schema and examples.
type TokenBudgets struct {
	MaxSchemaTokens   int `json:"max_schema_tokens"`
	MaxExamplesTokens int `json:"max_examples_tokens"`
	TotalContextLimit int `json:"total_context_limit"`
}

// AgentDefaults are the knobs shared by every agent unless overridden.
type AgentDefaults struct {
	Temperature   float64 `json:"temperature"`
	MaxRetries    int     `json:"max_retries"`
	TopCandidates int     `json:"top_candidates"`
}

// DatabaseConfig is the connection info for the target relational store.
type DatabaseConfig struct {
	Driver   string `json:"driver"` // "mysql" | "postgres" | "sqlite"
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
	FilePath string `json:"file_path"` // sqlite only
	PoolSize int     `json:"pool_size"`
}

// Config is the single struct loaded once at startup, JSON-file based,
// with secrets overridable from the environment: file defaults composed
// with env fallbacks.
type Config struct {
	LLMAPIKey       string        `json:"llm_api_key"`
	LLMBaseURL      string        `json:"llm_base_url"`
	Models          ModelNames    `json:"models"`
	TokenBudgets    TokenBudgets  `json:"token_budgets"`
	AgentDefaults   AgentDefaults `json:"agent_defaults"`
	Database        DatabaseConfig `json:"database"`
	SchemaCachePath string        `json:"schema_cache_path"`
	IndexCachePath  string        `json:"index_cache_path"`
	DefaultRowCap   int           `json:"default_row_cap"`
}

// Default returns a Config with the same defaults the pipeline falls back
// to when a field is zero-valued after load.
func Default() Config {
	return Config{
		Models: ModelNames{
			SchemaSelector: "gpt-4o-mini",
			SQLGenerator:   "gpt-4o",
			SQLRefiner:     "gpt-4o",
			Evaluator:      "gpt-4o-mini",
		},
		TokenBudgets: TokenBudgets{
			MaxSchemaTokens:   3000,
			MaxExamplesTokens: 500,
			TotalContextLimit: 8000,
		},
		AgentDefaults: AgentDefaults{
			Temperature:   0.1,
			MaxRetries:    3,
			TopCandidates: 5,
		},
		Database: DatabaseConfig{
			PoolSize: 8,
		},
		SchemaCachePath: "cache/schema_cache.json",
		IndexCachePath:  "cache/preprocessor.bin",
		DefaultRowCap:   1000,
	}
}

// Load reads a JSON config file, falling back to Default() for unset
// fields, and applies LLM_API_KEY / DB_PASSWORD environment overrides:
// file values first, environment for secrets.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 8
	}
	if cfg.DefaultRowCap <= 0 {
		cfg.DefaultRowCap = 1000
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
}
