package prompt

import (
	"strings"
	"testing"
)

func TestTemplateRegistry_RoundContext(t *testing.T) {
	registry, err := NewTemplateRegistry()
	if err != nil {
		t.Fatalf("NewTemplateRegistry failed: %v", err)
	}

	text, err := registry.Render(TemplateRoundContext, map[string]interface{}{
		"RoundNumber": 2,
		"ResultCount": 3,
		"ErrorCount":  1,
		"ToolsUsed":   []string{"read_file", "search"},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(text, "round 2") {
		t.Errorf("expected round number in output: %s", text)
	}
	if !strings.Contains(text, "read_file, search") {
		t.Errorf("expected tool list in output: %s", text)
	}
}

func TestTemplateRegistry_RecoveryNotice(t *testing.T) {
	registry, err := NewTemplateRegistry()
	if err != nil {
		t.Fatalf("NewTemplateRegistry failed: %v", err)
	}

	text, err := registry.Render(TemplateRecoveryNotice, map[string]interface{}{
		"ToolName":    "web_fetch",
		"ErrorType":   "TIMEOUT",
		"Details":     "The tool did not complete in time.",
		"Suggestions": []string{"Retry the request.", "Raise the timeout."},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(text, "web_fetch") || !strings.Contains(text, "TIMEOUT") {
		t.Errorf("expected tool name and error type in output: %s", text)
	}
}

func TestTemplateRegistry_UnknownTemplate(t *testing.T) {
	registry, err := NewTemplateRegistry()
	if err != nil {
		t.Fatalf("NewTemplateRegistry failed: %v", err)
	}

	if _, err := registry.Render("does_not_exist", nil); err == nil {
		t.Errorf("expected error for unknown template")
	}
}

func TestTemplateRegistry_DefineOverride(t *testing.T) {
	registry, err := NewTemplateRegistry()
	if err != nil {
		t.Fatalf("NewTemplateRegistry failed: %v", err)
	}

	if err := registry.Define(TemplateDegradationNotice, "Skipping {{.ToolName}}."); err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	text, err := registry.Render(TemplateDegradationNotice, map[string]interface{}{"ToolName": "x"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if text != "Skipping x." {
		t.Errorf("expected override to apply, got %q", text)
	}
}
