// Package config defines the application configuration and the static
// model registry. Configuration is loaded once in main and passed down;
// there is no package-level config state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied before the YAML file is read. Fields present in
// the file override them; fields absent keep the default.
const (
	DefaultPlannerModel     = "claude-sonnet-4-5"
	DefaultImplementerModel = "claude-sonnet-4-5"
	DefaultReviewerModel    = "claude-sonnet-4-5"

	DefaultPlannerTurns     = 10
	DefaultImplementerTurns = 15
	DefaultReviewerTurns    = 10

	DefaultMaxIterations = 5

	DefaultDatabasePath = "codepilot.db"
)

// Environment overrides applied after the file is read.
const (
	// EnvModel overrides the model for all three roles at once.
	EnvModel = "CODEPILOT_MODEL"
	// EnvDatabasePath overrides storage.database_path.
	EnvDatabasePath = "CODEPILOT_DB"
)

// AgentConfig selects the model and bounds for one role agent.
type AgentConfig struct {
	Model     string `yaml:"model"`
	MaxTurns  int    `yaml:"max_turns"`
	MaxTokens int    `yaml:"max_tokens"` // 0 means the client default
}

// AgentsConfig holds the per-role agent settings.
type AgentsConfig struct {
	Planner     AgentConfig `yaml:"planner"`
	Implementer AgentConfig `yaml:"implementer"`
	Reviewer    AgentConfig `yaml:"reviewer"`
}

// OrchestratorConfig bounds the task state machine.
type OrchestratorConfig struct {
	// MaxIterations caps the total number of state-handler passes per
	// run, not full plan/code/review cycles.
	MaxIterations int `yaml:"max_iterations"`
}

// EmbeddingsConfig selects the embedding backend for the vector index.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider"` // openai or ollama
	Model      string `yaml:"model"`    // empty means the backend default
	Dimensions int    `yaml:"dimensions"`
}

// RetrievalConfig tunes the hybrid search engine.
type RetrievalConfig struct {
	BM25Weight      float64          `yaml:"bm25_weight"`
	EmbeddingWeight float64          `yaml:"embedding_weight"`
	KConst          float64          `yaml:"k_const"`
	TopK            int              `yaml:"top_k"`
	Embeddings      EmbeddingsConfig `yaml:"embeddings"`
}

// StorageConfig locates the run store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// SandboxConfig controls isolated code execution.
type SandboxConfig struct {
	Interpreter string `yaml:"interpreter"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// WorkspaceConfig locates the working tree the agents operate on.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// Config is the root configuration object.
type Config struct {
	Agents       AgentsConfig       `yaml:"agents"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Storage      StorageConfig      `yaml:"storage"`
	Sandbox      SandboxConfig      `yaml:"sandbox"`
	Workspace    WorkspaceConfig    `yaml:"workspace"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Agents: AgentsConfig{
			Planner:     AgentConfig{Model: DefaultPlannerModel, MaxTurns: DefaultPlannerTurns},
			Implementer: AgentConfig{Model: DefaultImplementerModel, MaxTurns: DefaultImplementerTurns},
			Reviewer:    AgentConfig{Model: DefaultReviewerModel, MaxTurns: DefaultReviewerTurns},
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations: DefaultMaxIterations,
		},
		Retrieval: RetrievalConfig{
			BM25Weight:      0.5,
			EmbeddingWeight: 0.5,
			KConst:          60,
			TopK:            5,
			Embeddings: EmbeddingsConfig{
				Provider:   ProviderOpenAI,
				Dimensions: 384,
			},
		},
		Storage: StorageConfig{
			DatabasePath: DefaultDatabasePath,
		},
		Sandbox: SandboxConfig{
			Interpreter: "python3",
			TimeoutSecs: 30,
		},
		Workspace: WorkspaceConfig{
			Root: ".",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path loads defaults plus
// overrides only.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if model := os.Getenv(EnvModel); model != "" {
		cfg.Agents.Planner.Model = model
		cfg.Agents.Implementer.Model = model
		cfg.Agents.Reviewer.Model = model
	}
	if db := os.Getenv(EnvDatabasePath); db != "" {
		cfg.Storage.DatabasePath = db
	}
}

// Validate checks the configuration for values the rest of the system
// cannot work with. Called by Load; exposed for callers that build a
// Config in code.
func (c *Config) Validate() error {
	roles := []struct {
		name  string
		agent *AgentConfig
	}{
		{"planner", &c.Agents.Planner},
		{"implementer", &c.Agents.Implementer},
		{"reviewer", &c.Agents.Reviewer},
	}
	for _, r := range roles {
		if r.agent.Model == "" {
			return fmt.Errorf("agents.%s.model is required", r.name)
		}
		if _, err := GetModelProvider(r.agent.Model); err != nil {
			return fmt.Errorf("agents.%s: %w", r.name, err)
		}
		if r.agent.MaxTurns <= 0 {
			return fmt.Errorf("agents.%s.max_turns must be positive, got %d", r.name, r.agent.MaxTurns)
		}
		if r.agent.MaxTokens < 0 {
			return fmt.Errorf("agents.%s.max_tokens must not be negative, got %d", r.name, r.agent.MaxTokens)
		}
	}

	if c.Orchestrator.MaxIterations <= 0 {
		return fmt.Errorf("orchestrator.max_iterations must be positive, got %d", c.Orchestrator.MaxIterations)
	}

	rt := &c.Retrieval
	if rt.BM25Weight < 0 || rt.EmbeddingWeight < 0 {
		return fmt.Errorf("retrieval weights must not be negative (bm25=%v, embedding=%v)", rt.BM25Weight, rt.EmbeddingWeight)
	}
	if rt.BM25Weight == 0 && rt.EmbeddingWeight == 0 {
		return fmt.Errorf("at least one retrieval weight must be positive")
	}
	if rt.KConst <= 0 {
		return fmt.Errorf("retrieval.k_const must be positive, got %v", rt.KConst)
	}
	if rt.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", rt.TopK)
	}
	switch rt.Embeddings.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("retrieval.embeddings.provider must be %q or %q, got %q", ProviderOpenAI, ProviderOllama, rt.Embeddings.Provider)
	}
	if rt.Embeddings.Dimensions < 0 {
		return fmt.Errorf("retrieval.embeddings.dimensions must not be negative, got %d", rt.Embeddings.Dimensions)
	}

	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required")
	}

	if c.Sandbox.Interpreter == "" {
		return fmt.Errorf("sandbox.interpreter is required")
	}
	if c.Sandbox.TimeoutSecs <= 0 {
		return fmt.Errorf("sandbox.timeout_secs must be positive, got %d", c.Sandbox.TimeoutSecs)
	}

	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root is required")
	}

	return nil
}

// SandboxTimeout returns the sandbox timeout as a duration.
func (c *Config) SandboxTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSecs) * time.Second
}
