package toolweave

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration options for the toolweave runtime. It is
// loaded once, before the engine is constructed, and treated as read-only
// afterwards.
type Config struct {
	// Maximum number of model/tool rounds per workflow.
	MaxToolRounds int `yaml:"max_tool_rounds"`

	// Per-tool-call execution timeout.
	ToolTimeout time.Duration `yaml:"tool_timeout"`

	// Enable/disable the result cache.
	EnableCaching bool `yaml:"enable_caching"`

	// Run a round's tool calls concurrently when it has more than one.
	EnableParallelExecution bool `yaml:"enable_parallel_execution"`

	// Attempts per tool call before the call is recorded as failed.
	ErrorRetryAttempts int `yaml:"error_retry_attempts"`

	// Run the classification/recovery protocol after attempt exhaustion.
	EnableAdvancedErrorRecovery bool `yaml:"enable_advanced_error_recovery"`

	// Recovery attempts per failure before giving up on it.
	MaxRecoveryAttempts int `yaml:"max_recovery_attempts"`

	// Wall-clock budget for a single recovery action.
	ErrorRecoveryTimeout time.Duration `yaml:"error_recovery_timeout"`

	// Offer fallback tools when a tool is missing or keeps failing.
	FallbackToolSuggestions bool `yaml:"fallback_tool_suggestions"`

	// Surface a structured run summary through the feedback sink.
	DebugMode bool `yaml:"debug_mode"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxToolRounds:               5,
		ToolTimeout:                 30 * time.Second,
		EnableCaching:               true,
		EnableParallelExecution:     true,
		ErrorRetryAttempts:          3,
		EnableAdvancedErrorRecovery: true,
		MaxRecoveryAttempts:         2,
		ErrorRecoveryTimeout:        10 * time.Second,
		FallbackToolSuggestions:     true,
		DebugMode:                   false,
	}
}

// configFile mirrors Config with scalar durations so YAML files can express
// timeouts in milliseconds, matching the host configuration surface.
type configFile struct {
	MaxToolRounds               *int  `yaml:"maxToolRounds"`
	ToolTimeoutMs               *int  `yaml:"toolTimeout"`
	EnableCaching               *bool `yaml:"enableCaching"`
	EnableParallelExecution     *bool `yaml:"enableParallelExecution"`
	ErrorRetryAttempts          *int  `yaml:"errorRetryAttempts"`
	EnableAdvancedErrorRecovery *bool `yaml:"enableAdvancedErrorRecovery"`
	MaxRecoveryAttempts         *int  `yaml:"maxRecoveryAttempts"`
	ErrorRecoveryTimeoutMs      *int  `yaml:"errorRecoveryTimeout"`
	FallbackToolSuggestions     *bool `yaml:"fallbackToolSuggestions"`
	DebugMode                   *bool `yaml:"debugMode"`
}

// LoadConfig parses a YAML configuration file, overlaying it onto the
// defaults. Absent keys keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return cfg, NewConfigurationError(fmt.Sprintf("failed to open config file '%s'", path), err)
	}
	defer f.Close()

	var raw configFile
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&raw); err != nil {
		return cfg, NewConfigurationError(fmt.Sprintf("failed to parse config file '%s'", path), err)
	}

	if raw.MaxToolRounds != nil {
		cfg.MaxToolRounds = *raw.MaxToolRounds
	}
	if raw.ToolTimeoutMs != nil {
		cfg.ToolTimeout = time.Duration(*raw.ToolTimeoutMs) * time.Millisecond
	}
	if raw.EnableCaching != nil {
		cfg.EnableCaching = *raw.EnableCaching
	}
	if raw.EnableParallelExecution != nil {
		cfg.EnableParallelExecution = *raw.EnableParallelExecution
	}
	if raw.ErrorRetryAttempts != nil {
		cfg.ErrorRetryAttempts = *raw.ErrorRetryAttempts
	}
	if raw.EnableAdvancedErrorRecovery != nil {
		cfg.EnableAdvancedErrorRecovery = *raw.EnableAdvancedErrorRecovery
	}
	if raw.MaxRecoveryAttempts != nil {
		cfg.MaxRecoveryAttempts = *raw.MaxRecoveryAttempts
	}
	if raw.ErrorRecoveryTimeoutMs != nil {
		cfg.ErrorRecoveryTimeout = time.Duration(*raw.ErrorRecoveryTimeoutMs) * time.Millisecond
	}
	if raw.FallbackToolSuggestions != nil {
		cfg.FallbackToolSuggestions = *raw.FallbackToolSuggestions
	}
	if raw.DebugMode != nil {
		cfg.DebugMode = *raw.DebugMode
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MaxToolRounds < 1 {
		return NewConfigurationError("maxToolRounds must be at least 1", nil)
	}
	if c.ErrorRetryAttempts < 1 {
		return NewConfigurationError("errorRetryAttempts must be at least 1", nil)
	}
	if c.ToolTimeout <= 0 {
		return NewConfigurationError("toolTimeout must be positive", nil)
	}
	return nil
}
