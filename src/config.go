package src

import (
	_ "embed"
	"fmt"
	"os"

	"travel_agent/src/model"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var defaultDialogueYAML []byte

type Config struct {
	LogConfig      model.LogConfig      `envconfig:"LOG"`
	LLMConfig      model.LLMConfig      `envconfig:"LLM"`
	StoreConfig    model.StoreConfig    `envconfig:"STORE"`
	RedisConfig    model.RedisConfig    `envconfig:"REDIS"`
	DialoguePath   string               `envconfig:"DIALOGUE_CONFIG"`
	DialogueConfig model.DialogueConfig `ignored:"true"`
}

// LoadConfig reads the environment and the dialogue yaml. path overrides
// DIALOGUE_CONFIG; with neither set the embedded defaults are used.
func LoadConfig(path string) (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}
	if path != "" {
		config.DialoguePath = path
	}

	dialogue, err := LoadDialogueConfig(config.DialoguePath)
	if err != nil {
		return nil, err
	}
	config.DialogueConfig = *dialogue

	switch config.LLMConfig.Provider {
	case "openai", "ollama", "deepseek", "ark":
	default:
		return nil, &model.ValidationError{Field: "LLM_PROVIDER", Value: config.LLMConfig.Provider, Reason: "expected openai, ollama, deepseek or ark"}
	}
	return &config, nil
}

// LoadDialogueConfig parses the embedded defaults, then overlays the file at path if given
func LoadDialogueConfig(path string) (*model.DialogueConfig, error) {
	var dc model.DialogueConfig
	if err := yaml.Unmarshal(defaultDialogueYAML, &dc); err != nil {
		return nil, fmt.Errorf("error parsing embedded dialogue config: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading dialogue config: %w", err)
		}
		if err := yaml.Unmarshal(data, &dc); err != nil {
			return nil, fmt.Errorf("error parsing dialogue config %s: %w", path, err)
		}
	}
	if err := validateDialogue(&dc); err != nil {
		return nil, err
	}
	return &dc, nil
}

func validateDialogue(dc *model.DialogueConfig) error {
	if len(dc.RequiredCategories) == 0 {
		return &model.ValidationError{Field: "required_categories", Reason: "must not be empty"}
	}
	if dc.TurnLimit <= 0 {
		return &model.ValidationError{Field: "turn_limit", Value: fmt.Sprint(dc.TurnLimit), Reason: "must be positive"}
	}
	if dc.MinDistinctValues <= 0 {
		dc.MinDistinctValues = 2
	}
	if dc.DefaultConfidence <= 0 || dc.DefaultConfidence > 1 {
		dc.DefaultConfidence = 0.7
	}
	if dc.MaxReprompts <= 0 {
		dc.MaxReprompts = 3
	}
	if dc.RecommendationSentences <= 0 {
		dc.RecommendationSentences = 2
	}
	if dc.MemoryK <= 0 {
		dc.MemoryK = 3
	}
	if dc.WindowMessages <= 0 {
		dc.WindowMessages = 6
	}
	if dc.TripsToCollect < 0 {
		dc.TripsToCollect = 0
	}
	return nil
}
