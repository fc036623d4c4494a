package model

import "time"

// ----------------------------------------------------
// ================ Config ================
// LLMConfig selects and tunes the chat model behind the oracle
type LLMConfig struct {
	Provider    string        `envconfig:"PROVIDER" default:"openai"`
	Model       string        `envconfig:"MODEL" default:"openai/gpt-4o-mini"`
	APIKey      string        `envconfig:"API_KEY"`
	BaseURL     string        `envconfig:"BASE_URL"`
	MaxTokens   int           `envconfig:"MAX_TOKENS" default:"600"`
	Temperature float64       `envconfig:"TEMPERATURE" default:"0.3"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"30s"`
}

// Endpoint is BaseURL, or the provider's usual endpoint when it is unset.
// An empty result leaves the choice to the provider client.
func (c LLMConfig) Endpoint() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	switch c.Provider {
	case "", "openai":
		return "https://openrouter.ai/api/v1"
	case "ollama":
		return "http://localhost:11434"
	}
	return ""
}

// LogConfig configures the global zerolog logger
type LogConfig struct {
	Level      string `envconfig:"LEVEL" default:"info"`
	Format     string `envconfig:"FORMAT" default:"console"`
	Output     string `envconfig:"OUTPUT" default:"file"`
	FilePath   string `envconfig:"FILE_PATH" default:"logs/travel_agent.log"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"rfc3339"`
}

// StoreConfig configures the per-user persistence partitions
type StoreConfig struct {
	BaseDir    string `envconfig:"BASE_DIR" default:"travel_memory"`
	Embedder   string `envconfig:"EMBEDDER" default:"local"`
	EmbedModel string `envconfig:"EMBED_MODEL" default:"nomic-embed-text"`
	OllamaURL  string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	Compress   bool   `envconfig:"COMPRESS" default:"false"`
}

// RedisConfig configures session snapshots. An empty URL keeps snapshots in memory.
type RedisConfig struct {
	URL         string        `envconfig:"URL"`
	SnapshotTTL time.Duration `envconfig:"SNAPSHOT_TTL" default:"24h"`
}
