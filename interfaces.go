package toolweave

import (
	"context"
	"time"
)

// ModelHost sends a conversation to a language model and streams back the
// response parts. Implementations wrap a concrete provider (see
// internal/adapters for the genkit-backed one).
type ModelHost interface {
	Send(ctx context.Context, messages []Message, opts ModelOptions) (ModelStream, error)
}

// ModelStream iterates the parts of one streamed model response. Next
// returns io.EOF after the final part.
type ModelStream interface {
	Next() (Part, error)
}

// Tool represents an executable action the model may request.
type Tool interface {
	// Execute performs the tool's action with the model-provided input.
	Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)

	// Schema returns a description or definition of the tool.
	// Standard keys should include:
	// - "description": string description of what the tool does
	// - "parameters": map of parameter names to their descriptions
	// - "returns": description of the tool's return value
	// - "category": optional category for grouping related tools
	Schema() map[string]interface{}

	// Validate checks if the provided input is valid for this tool.
	// Returns nil if valid, error otherwise.
	Validate(input map[string]interface{}) error

	// Name returns the tool's name.
	Name() string
}

// FeedbackSink is a one-way, append-only channel for human-readable progress
// text (tool-usage and result-preview notices).
type FeedbackSink interface {
	Notify(ctx context.Context, text string)
}

// Renderer supplies round-context and recovery narrative strings from named
// templates. The core depends only on this capability; the template source
// (static templates, genkit prompts) is an implementation detail.
type Renderer interface {
	Render(templateID string, vars map[string]interface{}) (string, error)
}

// Cache stores prior tool results keyed by (tool name, canonicalized input).
type Cache interface {
	// Get returns the cached result for the pair, or an error when the entry
	// is absent or expired.
	Get(ctx context.Context, toolName string, input map[string]interface{}) (*ToolResult, error)

	// Put inserts a result, evicting the oldest entry first when the cache
	// is at capacity.
	Put(ctx context.Context, toolName string, input map[string]interface{}, result *ToolResult) error

	// Clear drops every entry.
	Clear()

	// Stats returns a snapshot of the cache's current state.
	Stats() CacheStats
}

// RecoveryEngine classifies tool failures and drives the recovery protocol.
type RecoveryEngine interface {
	// Classify derives (and memoizes) the classification for a failure.
	Classify(toolErr ToolError, rctx RecoveryContext) ErrorClassification

	// GenerateAction builds the concrete recovery plan for a classification.
	GenerateAction(class ErrorClassification, rctx RecoveryContext) RecoveryAction

	// ExecuteAction performs the action's side effect (waiting, selecting a
	// substitute tool, halting) and records the outcome in the per-tool
	// history.
	ExecuteAction(ctx context.Context, action RecoveryAction, rctx RecoveryContext) RecoveryResult

	// ShouldContinueWorkflow reports whether the workflow may proceed after
	// this failure.
	ShouldContinueWorkflow(toolErr ToolError, rctx RecoveryContext, totalErrors int) bool

	// Suggestions returns human-readable remediation hints for an error type.
	Suggestions(errType ErrorType) []string
}

// Discovery profiles the available tools and answers compatibility and
// task-relevance queries.
type Discovery interface {
	// Refresh runs a discovery pass over the given tools, replacing all
	// previously computed capabilities and the compatibility matrix.
	// Registration order is preserved via the names slice.
	Refresh(names []string, tools map[string]Tool)

	// Capability returns the profile computed for a tool in the last pass.
	Capability(name string) (ToolCapability, bool)

	// CompatibleTools returns the names considered substitutable or
	// complementary for the given tool.
	CompatibleTools(name string) []string

	// FallbackCandidates returns up to max tools similar enough to serve as
	// substitutes, in registration order.
	FallbackCandidates(toolName string, max int) []string

	// ToolsForTask ranks tools by relevance to a free-text task description.
	ToolsForTask(text string) []ToolMatch
}

// ContinuationSignal decides, from a round's response text, whether the
// model appears to want more tool rounds. The default implementation scans
// for a fixed set of phrases; it is deliberately approximate and isolated
// here so it can be replaced by an explicit host signal later.
type ContinuationSignal interface {
	MoreWorkSignaled(responseText string) bool
}

// Clock abstracts time for the cache and recovery history so tests can
// advance it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
