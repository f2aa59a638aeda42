// Package config holds all deskbot configuration as an explicit value.
// There is no process-wide singleton: components receive their config
// slice through constructors so unit tests can build any state directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all deskbot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Completion service configuration
	LLM LLMConfig `yaml:"llm"`

	// Conversation memory configuration
	Conversation ConversationConfig `yaml:"conversation"`

	// Context budgeting configuration
	Budget BudgetConfig `yaml:"budget"`

	// Escalation rule configuration
	Escalation EscalationConfig `yaml:"escalation"`

	// Entity extraction configuration
	Extraction ExtractionConfig `yaml:"extraction"`

	// Knowledge base configuration
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// Business identity used in prompts and escalation responses
	Business BusinessConfig `yaml:"business"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the external completion service client.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`  // Response length cap
	Temperature float64 `yaml:"temperature"` // Generation randomness
}

// ConversationConfig configures per-user conversation memory.
type ConversationConfig struct {
	// MaxContextMessages caps the per-user turn log; oldest turns drop first.
	MaxContextMessages int `yaml:"max_context_messages"`

	// MaxMessageLength caps sanitized inbound message length.
	MaxMessageLength int `yaml:"max_message_length"`
}

// BudgetConfig configures the context budgeter.
// Costs are proxy units (wordCount * 1.3), not exact token counts.
type BudgetConfig struct {
	// MaxInput is the total input budget for one completion request.
	MaxInput float64 `yaml:"max_input"`

	// ResponseReserve is held back from MaxInput for the expected response.
	ResponseReserve float64 `yaml:"response_reserve"`
}

// EscalationConfig configures the escalation decision engine.
// All four rules are tunable without code changes.
type EscalationConfig struct {
	Keywords            []string `yaml:"keywords"`
	FrustrationPatterns []string `yaml:"frustration_patterns"`
	LengthThreshold     int      `yaml:"length_threshold"`
	RecentWindow        int      `yaml:"recent_window"`
	RepeatCount         int      `yaml:"repeat_count"`
	ProneIntents        []string `yaml:"prone_intents"`
}

// ExtractionConfig configures entity extraction.
type ExtractionConfig struct {
	// ProductTerms are the product mention keywords to scan for.
	ProductTerms []string `yaml:"product_terms"`
}

// KnowledgeConfig configures the knowledge base.
type KnowledgeConfig struct {
	// Path to the knowledge base JSON file. Empty uses embedded defaults.
	Path string `yaml:"path"`
}

// BusinessConfig holds the business identity surfaced in responses.
type BusinessConfig struct {
	CompanyName  string `yaml:"company_name"`
	SupportHours string `yaml:"support_hours"`
	SupportEmail string `yaml:"support_email"`
	SupportPhone string `yaml:"support_phone"`
}

// MetricsConfig configures metrics aggregation and the archive store.
type MetricsConfig struct {
	// RetentionDays bounds sample age on explicit Prune calls.
	RetentionDays int `yaml:"retention_days"`

	// ArchivePath is the SQLite archive database. Empty disables archival.
	ArchivePath string `yaml:"archive_path"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Name:    "deskbot",
		Version: "1.0.0",
		LLM: LLMConfig{
			Model:       "gpt-3.5-turbo",
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     "30s",
			MaxTokens:   500,
			Temperature: 0.7,
		},
		Conversation: ConversationConfig{
			MaxContextMessages: 10,
			MaxMessageLength:   1000,
		},
		Budget: BudgetConfig{
			MaxInput:        4000,
			ResponseReserve: 500,
		},
		Escalation: EscalationConfig{
			Keywords: []string{"speak to human", "manager", "complaint", "frustrated", "angry"},
			FrustrationPatterns: []string{
				`\b(frustrated|angry|mad|upset|annoyed)\b`,
				`\b(terrible|awful|horrible|worst)\b`,
				`\b(unacceptable|ridiculous|stupid)\b`,
				`\b(cancel|refund|money back)\b.*\b(now|immediately)\b`,
			},
			LengthThreshold: 10,
			RecentWindow:    6,
			RepeatCount:     3,
			ProneIntents:    []string{"complaint", "billing", "returns"},
		},
		Extraction: ExtractionConfig{
			ProductTerms: []string{"laptop", "phone", "tablet", "headphones", "keyboard", "mouse", "monitor", "watch"},
		},
		Business: BusinessConfig{
			CompanyName:  "Your Company",
			SupportHours: "9 AM - 6 PM EST, Monday-Friday",
			SupportEmail: "support@yourcompany.com",
			SupportPhone: "1-800-123-4567",
		},
		Metrics: MetricsConfig{
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, layered over defaults,
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
			}
			// Missing file falls through to defaults + env
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides applies DESKBOT_* environment variables on top of
// the loaded values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DESKBOT_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("DESKBOT_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("DESKBOT_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("DESKBOT_MAX_CONTEXT_MESSAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Conversation.MaxContextMessages = n
		}
	}
	if v := os.Getenv("DESKBOT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Metrics.RetentionDays = n
		}
	}
	if v := os.Getenv("DESKBOT_ARCHIVE_PATH"); v != "" {
		c.Metrics.ArchivePath = v
	}
	if v := os.Getenv("DESKBOT_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
}

// Validate checks invariants that would otherwise surface as runtime faults.
func (c *Config) Validate() error {
	if c.Conversation.MaxContextMessages <= 0 {
		return fmt.Errorf("conversation.max_context_messages must be positive, got %d", c.Conversation.MaxContextMessages)
	}
	if c.Budget.MaxInput <= 0 {
		return fmt.Errorf("budget.max_input must be positive, got %v", c.Budget.MaxInput)
	}
	if c.Budget.ResponseReserve < 0 || c.Budget.ResponseReserve >= c.Budget.MaxInput {
		return fmt.Errorf("budget.response_reserve must be in [0, max_input), got %v", c.Budget.ResponseReserve)
	}
	if c.Escalation.LengthThreshold <= 0 {
		return fmt.Errorf("escalation.length_threshold must be positive, got %d", c.Escalation.LengthThreshold)
	}
	if c.Metrics.RetentionDays <= 0 {
		return fmt.Errorf("metrics.retention_days must be positive, got %d", c.Metrics.RetentionDays)
	}
	if _, err := c.LLMTimeout(); err != nil {
		return err
	}
	return nil
}

// LLMTimeout parses the configured completion timeout.
func (c *Config) LLMTimeout() (time.Duration, error) {
	if c.LLM.Timeout == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid llm.timeout %q: %w", c.LLM.Timeout, err)
	}
	return d, nil
}
