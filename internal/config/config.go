package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config is the resolved configuration for a run. It is loaded once in
// cmd and threaded through construction; packages never read config
// files themselves.
type Config struct {
	General  General               `toml:"general"`
	API      API                   `toml:"api"`
	Models   map[string]Model      `toml:"models"`
	Prompts  Prompts               `toml:"prompts"`
	PushData map[string]PushTarget `toml:"push_data"`
	Tools    Tools                 `toml:"tools"`
	Research Research              `toml:"research"`
	Tracing  Tracing               `toml:"tracing"`
}

type General struct {
	// DB path resolution: $<DBPathEnvVar> wins, then DBPath, then
	// <config dir>/history.db.
	DBPath       string `toml:"db_path"`
	DBPathEnvVar string `toml:"db_path_env_var"`

	MaxTurns              int    `toml:"max_turns"`
	DefaultModel          string `toml:"default_model"`
	SummarizationModel    string `toml:"summarization_model"`
	QuerySummaryMaxChars  int    `toml:"query_summary_max_chars"`
	AnswerSummaryMaxChars int    `toml:"answer_summary_max_chars"`

	// Session compaction triggers at ContextSize * threshold%.
	SessionCompactionThreshold int    `toml:"session_compaction_threshold"`
	SessionCompactionStrategy  string `toml:"session_compaction_strategy"` // "summaries" or "llm_summary"
	SessionNameMaxTokens       int    `toml:"session_name_max_tokens"`
}

type API struct {
	SearxURL           string `toml:"searx_url"`
	UserAgent          string `toml:"user_agent"`
	RequestTimeoutSecs int    `toml:"request_timeout_secs"`
	FetchTimeoutSecs   int    `toml:"fetch_timeout_secs"`
}

// Model is one entry under [models.<alias>].
type Model struct {
	Alias       string `toml:"-"` // filled from the map key at load
	ID          string `toml:"id"`
	BaseURL     string `toml:"base_url"`
	APIKey      string `toml:"api_key"`
	APIKeyEnv   string `toml:"api_key_env"`
	ContextSize int    `toml:"context_size"`
	MaxChars    int    `toml:"max_chars"`
}

// ResolveAPIKey returns the literal key if set, else the value of the
// named environment variable. A named-but-unset variable is an error so
// misconfiguration fails before the first request.
func (m Model) ResolveAPIKey() (string, error) {
	if m.APIKey != "" {
		return m.APIKey, nil
	}
	if m.APIKeyEnv == "" {
		return "", nil
	}
	key := os.Getenv(m.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("environment variable %s is not set", m.APIKeyEnv)
	}
	return key, nil
}

type Prompts struct {
	SystemPrefix     string `toml:"system_prefix"`
	ForceSearch      string `toml:"force_search"`
	SystemSuffix     string `toml:"system_suffix"`
	DeepResearch     string `toml:"deep_research"`
	DeepDive         string `toml:"deep_dive"`
	SummarizeAnswer  string `toml:"summarize_answer"`
	SummarizeQuery   string `toml:"summarize_query"`
	SummarizeSession string `toml:"summarize_session"`

	// User prompt shortcuts, expanded when the query starts with /alias.
	User map[string]string `toml:"user"`
}

// PushTarget is one entry under [push_data.<name>], exposed to the
// model as a tool that POSTs or GETs templated fields.
type PushTarget struct {
	Enabled     bool                   `toml:"enabled"`
	Description string                 `toml:"description"`
	URL         string                 `toml:"url"`
	Method      string                 `toml:"method"`
	Headers     map[string]string      `toml:"headers"`
	Fields      map[string]string      `toml:"fields"`
	Parameters  map[string]interface{} `toml:"parameters"`
}

type Tools struct {
	Custom map[string]CustomTool `toml:"custom"`
}

// CustomTool is one entry under [tools.custom.<name>]: a shell command
// the model can invoke; stdout, stderr, and the exit code come back in
// the tool result.
type CustomTool struct {
	Description string                 `toml:"description"`
	Command     string                 `toml:"command"`
	Args        []string               `toml:"args"`
	TimeoutSecs int                    `toml:"timeout_secs"`
	Parameters  map[string]interface{} `toml:"parameters"`
}

type Research struct {
	EmbeddingURL         string `toml:"embedding_url"`
	EmbeddingModel       string `toml:"embedding_model"`
	EmbeddingTimeoutSecs int    `toml:"embedding_timeout_secs"`
	EmbeddingBatchSize   int    `toml:"embedding_batch_size"`

	MaxLinksPerURL   int `toml:"max_links_per_url"`
	MaxRelevantLinks int `toml:"max_relevant_links"`
	MemoryMaxResults int `toml:"memory_max_results"`

	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`

	SummaryWorkers     int     `toml:"summary_workers"`
	SummaryCallsPerMin float64 `toml:"summary_calls_per_min"`

	SourceAdapters map[string]SourceAdapter `toml:"source_adapters"`
}

// SourceAdapter maps a URI-like prefix to custom tools that handle
// discovery and reading for that family of targets.
type SourceAdapter struct {
	Prefix       string `toml:"prefix"`
	DiscoverTool string `toml:"discover_tool"`
	ReadTool     string `toml:"read_tool"`
	Enabled      bool   `toml:"enabled"`
}

type Tracing struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	ServiceName string `toml:"service_name"`
}

// Dir returns the configuration directory, ~/.config/asky.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".asky")
	}
	return filepath.Join(home, ".config", "asky")
}

// ResolveDBPath applies the db path resolution chain.
func (c *Config) ResolveDBPath() string {
	if c.General.DBPathEnvVar != "" {
		if p := os.Getenv(c.General.DBPathEnvVar); p != "" {
			return p
		}
	}
	if c.General.DBPath != "" {
		return expandHome(c.General.DBPath)
	}
	return filepath.Join(Dir(), "history.db")
}

func expandHome(p string) string {
	if len(p) >= 2 && p[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// Model returns the configured model for alias.
func (c *Config) Model(alias string) (Model, error) {
	m, ok := c.Models[alias]
	if !ok {
		return Model{}, fmt.Errorf("unknown model alias %q", alias)
	}
	return m, nil
}

// SummarizationModelConfig resolves the model used for summaries,
// falling back to the default model when none is configured.
func (c *Config) SummarizationModelConfig() (Model, error) {
	alias := c.General.SummarizationModel
	if alias == "" {
		alias = c.General.DefaultModel
	}
	return c.Model(alias)
}

// Validate checks the cross-field constraints that would otherwise
// surface as confusing runtime failures.
func (c *Config) Validate() error {
	if _, ok := c.Models[c.General.DefaultModel]; !ok {
		return fmt.Errorf("default_model %q has no [models.%s] section", c.General.DefaultModel, c.General.DefaultModel)
	}
	if sm := c.General.SummarizationModel; sm != "" {
		if _, ok := c.Models[sm]; !ok {
			return fmt.Errorf("summarization_model %q has no [models.%s] section", sm, sm)
		}
	}
	switch c.General.SessionCompactionStrategy {
	case "summaries", "llm_summary":
	default:
		return fmt.Errorf("session_compaction_strategy must be \"summaries\" or \"llm_summary\", got %q", c.General.SessionCompactionStrategy)
	}
	if c.General.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive, got %d", c.General.MaxTurns)
	}
	for name, a := range c.Research.SourceAdapters {
		if a.Enabled && a.Prefix == "" {
			return fmt.Errorf("source adapter %q is enabled but has no prefix", name)
		}
	}
	return nil
}
