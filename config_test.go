package toolweave

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxToolRounds != 5 {
		t.Errorf("expected 5 max rounds, got %d", cfg.MaxToolRounds)
	}
	if cfg.ToolTimeout != 30*time.Second {
		t.Errorf("expected 30s tool timeout, got %v", cfg.ToolTimeout)
	}
	if !cfg.EnableCaching || !cfg.EnableParallelExecution || !cfg.EnableAdvancedErrorRecovery || !cfg.FallbackToolSuggestions {
		t.Errorf("expected caching, parallel execution, recovery, and fallback suggestions enabled by default")
	}
	if cfg.ErrorRetryAttempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.ErrorRetryAttempts)
	}
	if cfg.MaxRecoveryAttempts != 2 {
		t.Errorf("expected 2 recovery attempts, got %d", cfg.MaxRecoveryAttempts)
	}
	if cfg.ErrorRecoveryTimeout != 10*time.Second {
		t.Errorf("expected 10s recovery timeout, got %v", cfg.ErrorRecoveryTimeout)
	}
	if cfg.DebugMode {
		t.Errorf("expected debug mode off by default")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_OverlaysOntoDefaults(t *testing.T) {
	path := writeConfigFile(t, `
maxToolRounds: 8
toolTimeout: 5000
enableParallelExecution: false
debugMode: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.MaxToolRounds != 8 {
		t.Errorf("expected 8 max rounds, got %d", cfg.MaxToolRounds)
	}
	if cfg.ToolTimeout != 5*time.Second {
		t.Errorf("expected 5s tool timeout, got %v", cfg.ToolTimeout)
	}
	if cfg.EnableParallelExecution {
		t.Errorf("expected parallel execution disabled")
	}
	if !cfg.DebugMode {
		t.Errorf("expected debug mode enabled")
	}
	// Absent keys keep their defaults.
	if cfg.ErrorRetryAttempts != 3 {
		t.Errorf("expected default retry attempts, got %d", cfg.ErrorRetryAttempts)
	}
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	path := writeConfigFile(t, "maxToolRounds: 0\n")

	if _, err := LoadConfig(path); err == nil {
		t.Errorf("expected validation error for zero rounds")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestToolWeaveError_Formatting(t *testing.T) {
	err := NewToolTimeoutError("dispatch", "slow", nil)
	if got := err.Error(); got != "[dispatch:TOOL_TIMEOUT] tool 'slow' timed out" {
		t.Errorf("unexpected error string: %q", got)
	}
	if !IsToolWeaveError(err) {
		t.Errorf("expected IsToolWeaveError to be true")
	}
}
