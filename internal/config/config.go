package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for a paflow run.
type Config struct {
	DSN       string
	LogFormat string // "text" or "json"

	// adjudicate inputs
	DocumentPath string
	EvidencePath string
	EvidenceType string // "lab" or "xray"

	// seed inputs
	ProviderFile string
	Replace      bool

	// model + LLM settings, overridable from the YAML file
	ModelPath           string        `yaml:"model_path"`
	ORTLibraryPath      string        `yaml:"ort_library_path"`
	GeminiAPIKey        string        `yaml:"-"`
	GeminiModel         string        `yaml:"gemini_model"`
	LLMTimeout          time.Duration `yaml:"-"`
	ConfidenceThreshold float32       `yaml:"confidence_threshold"`
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	ModelPath           string  `yaml:"model_path"`
	ORTLibraryPath      string  `yaml:"ort_library_path"`
	GeminiModel         string  `yaml:"gemini_model"`
	LLMTimeoutSeconds   int     `yaml:"llm_timeout_seconds"`
	ConfidenceThreshold float32 `yaml:"confidence_threshold"`
}

// LoadFromFile reads a YAML config file and merges its non-zero values into
// Config. Flags already set on the Config take precedence.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if c.ModelPath == "" {
		c.ModelPath = yc.ModelPath
	}
	if c.ORTLibraryPath == "" {
		c.ORTLibraryPath = yc.ORTLibraryPath
	}
	if c.GeminiModel == "" {
		c.GeminiModel = yc.GeminiModel
	}
	if c.LLMTimeout == 0 && yc.LLMTimeoutSeconds > 0 {
		c.LLMTimeout = time.Duration(yc.LLMTimeoutSeconds) * time.Second
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = yc.ConfidenceThreshold
	}
	return nil
}

// ValidateDSN checks that a database connection string is configured.
func (c *Config) ValidateDSN() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}

// ValidateAdjudicate checks everything an adjudication run needs.
func (c *Config) ValidateAdjudicate() error {
	if err := c.ValidateDSN(); err != nil {
		return err
	}
	if c.DocumentPath == "" {
		return fmt.Errorf("--file is required")
	}
	if _, err := os.Stat(c.DocumentPath); err != nil {
		return fmt.Errorf("document not accessible: %w", err)
	}
	if c.EvidencePath == "" {
		return fmt.Errorf("--evidence is required")
	}
	if _, err := os.Stat(c.EvidencePath); err != nil {
		return fmt.Errorf("evidence not accessible: %w", err)
	}
	switch c.EvidenceType {
	case "lab", "xray":
	default:
		return fmt.Errorf("--evidence-type must be lab or xray, got %q", c.EvidenceType)
	}
	if c.EvidenceType == "xray" && c.ModelPath == "" {
		return fmt.Errorf("model_path is required for x-ray evidence")
	}
	if c.EvidenceType == "lab" && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required for lab evidence")
	}
	return nil
}

// ValidateSeed checks everything a provider reference load needs.
func (c *Config) ValidateSeed() error {
	if err := c.ValidateDSN(); err != nil {
		return err
	}
	if c.ProviderFile == "" {
		return fmt.Errorf("--providers is required")
	}
	if _, err := os.Stat(c.ProviderFile); err != nil {
		return fmt.Errorf("provider file not accessible: %w", err)
	}
	return nil
}
