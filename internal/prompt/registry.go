// Package prompt supplies the rendering collaborators for the workflow
// runtime: a static text/template registry for round-context and recovery
// notices, and a Genkit-backed prompt registry for model-facing prompts.
package prompt

import (
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Registry manages the loading and execution of Genkit prompts.
type Registry struct {
	genkitInstance *genkit.Genkit
}

// NewRegistry creates a prompt registry backed by an initialized Genkit
// instance. Prompts are loaded from the instance's prompt directory.
func NewRegistry(g *genkit.Genkit) *Registry {
	return &Registry{genkitInstance: g}
}

// GetPrompt retrieves a loaded prompt by its name using Genkit's lookup.
func (r *Registry) GetPrompt(name string) (*ai.Prompt, error) {
	p := genkit.LookupPrompt(r.genkitInstance, name)
	if p == nil {
		return nil, fmt.Errorf("prompt '%s' not found", name)
	}
	return p, nil
}

// DefinePrompt allows defining prompts programmatically via the registry.
func (r *Registry) DefinePrompt(name string, opts ...ai.PromptOption) (*ai.Prompt, error) {
	p, err := genkit.DefinePrompt(r.genkitInstance, name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to define prompt '%s': %w", name, err)
	}
	return p, nil
}

// DefinePartial allows defining partials programmatically via the registry.
func (r *Registry) DefinePartial(name, template string) error {
	if err := genkit.DefinePartial(r.genkitInstance, name, template); err != nil {
		return fmt.Errorf("failed to define partial '%s': %w", name, err)
	}
	return nil
}

// DefineHelper allows defining custom Handlebars helpers via the registry.
func (r *Registry) DefineHelper(name string, helperFunc interface{}) error {
	if err := genkit.DefineHelper(r.genkitInstance, name, helperFunc); err != nil {
		return fmt.Errorf("failed to define helper '%s': %w", name, err)
	}
	return nil
}
