package conf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PromptsConfig contains prompt and model settings loaded from YAML
type PromptsConfig struct {
	SystemPrompt string        `yaml:"system_prompt"`
	History      HistoryConfig `yaml:"history"`
	Model        ModelConfig   `yaml:"model"`
}

// HistoryConfig contains history loading settings
type HistoryConfig struct {
	MaxTurns int `yaml:"max_turns"`
}

// ModelConfig contains completion request parameters
type ModelConfig struct {
	Name        string  `yaml:"name"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// LoadPromptsConfig loads prompts configuration from YAML file
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/slack-relay/prompts.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	var readErr error
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
		readErr = err
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read prompts config: %w", readErr)
		}
		slog.Info("no prompts.yaml found, using defaults", slog.String("component", "config"))
		return DefaultPromptsConfig(), nil
	}

	slog.Info("loading prompts", slog.String("component", "config"), slog.String("path", loadedPath))
	return ParsePromptsConfig(data)
}

// ParsePromptsConfig parses YAML and fills in defaults for missing values
func ParsePromptsConfig(data []byte) (*PromptsConfig, error) {
	config := PromptsConfig{Model: ModelConfig{Temperature: -1}}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse prompts.yaml: %w", err)
	}

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()

	if c.SystemPrompt == "" {
		c.SystemPrompt = defaults.SystemPrompt
	}
	if c.History.MaxTurns <= 0 {
		c.History.MaxTurns = defaults.History.MaxTurns
	}
	if c.Model.Name == "" {
		c.Model.Name = defaults.Model.Name
	}
	if c.Model.MaxTokens <= 0 {
		c.Model.MaxTokens = defaults.Model.MaxTokens
	}
	// -1 marks an absent temperature; 0 is a valid setting
	if c.Model.Temperature < 0 {
		c.Model.Temperature = defaults.Model.Temperature
	}
}

// DefaultPromptsConfig returns the default prompts configuration
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		SystemPrompt: "Eres un asistente útil que responde preguntas de manera amable y profesional.",
		History: HistoryConfig{
			MaxTurns: 10,
		},
		Model: ModelConfig{
			Name:        "gpt-4",
			MaxTokens:   1000,
			Temperature: 0.7,
		},
	}
}
