package prompt

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Built-in template IDs.
const (
	TemplateRoundContext      = "round_context"
	TemplateRecoveryNotice    = "recovery_notice"
	TemplateDegradationNotice = "degradation_notice"
)

var builtinTemplates = map[string]string{
	TemplateRoundContext: "Continuing round {{.RoundNumber}}. So far {{.ResultCount}} tool result(s) and " +
		"{{.ErrorCount}} error(s) have accumulated{{if .ToolsUsed}} using: {{join .ToolsUsed \", \"}}{{end}}. " +
		"Use the results above to decide whether more tool calls are needed or the task can be answered.",
	TemplateRecoveryNotice: "Tool '{{.ToolName}}' failed ({{.ErrorType}}): {{.Details}}" +
		"{{if .Suggestions}} Suggested next steps: {{join .Suggestions \" \"}}{{end}}",
	TemplateDegradationNotice: "Tool '{{.ToolName}}' is unavailable; continuing without it. " +
		"The answer may be incomplete where it depended on this tool.",
}

// TemplateRegistry renders named text templates. It ships with the built-in
// workflow templates and accepts overrides or additions at runtime.
type TemplateRegistry struct {
	mutex     sync.RWMutex
	templates map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

// NewTemplateRegistry creates a registry pre-loaded with the built-in
// templates.
func NewTemplateRegistry() (*TemplateRegistry, error) {
	r := &TemplateRegistry{templates: make(map[string]*template.Template)}
	for id, text := range builtinTemplates {
		if err := r.Define(id, text); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Define parses and registers a template, replacing any previous definition
// under the same ID.
func (r *TemplateRegistry) Define(id, text string) error {
	parsed, err := template.New(id).Funcs(templateFuncs).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template '%s': %w", id, err)
	}
	r.mutex.Lock()
	r.templates[id] = parsed
	r.mutex.Unlock()
	return nil
}

// Render executes the named template with the given variables.
func (r *TemplateRegistry) Render(templateID string, vars map[string]interface{}) (string, error) {
	r.mutex.RLock()
	parsed, found := r.templates[templateID]
	r.mutex.RUnlock()
	if !found {
		return "", fmt.Errorf("template '%s' not found", templateID)
	}

	var buf strings.Builder
	if err := parsed.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render template '%s': %w", templateID, err)
	}
	return buf.String(), nil
}
