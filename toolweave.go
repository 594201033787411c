// Package toolweave provides the core runtime for model-driven tool-calling
// workflows: a bounded round loop that sends a conversation to a language
// model host, executes the tool calls it streams back, recovers from tool
// failures, and folds the results into the conversation until the model
// produces a final answer.
package toolweave

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/toolweave-genkit/internal/eventbus"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
)

// ToolWeave is the main entry point into the toolweave runtime. It
// encapsulates all components required for executing tool-calling workflows.
type ToolWeave struct {
	// Core components
	cache     Cache
	recovery  RecoveryEngine
	discovery Discovery
	renderer  Renderer
	signal    ContinuationSignal
	eventBus  eventbus.EventBus

	// Available tools, plus their registration order
	tools     map[string]Tool
	toolOrder []string

	// Configuration
	config Config

	// Async processing
	asyncWorkflows      map[string]*WorkflowContext
	asyncWorkflowsMutex sync.RWMutex
}

// Option is a function that configures a ToolWeave instance.
type Option func(*ToolWeave)

// WithConfig sets the configuration for the runtime.
func WithConfig(config Config) Option {
	return func(t *ToolWeave) {
		t.config = config
	}
}

// WithCache sets the result cache component.
func WithCache(cache Cache) Option {
	return func(t *ToolWeave) {
		t.cache = cache
	}
}

// WithRecovery sets the error recovery engine.
func WithRecovery(recovery RecoveryEngine) Option {
	return func(t *ToolWeave) {
		t.recovery = recovery
	}
}

// WithDiscovery sets the tool discovery component.
func WithDiscovery(discovery Discovery) Option {
	return func(t *ToolWeave) {
		t.discovery = discovery
	}
}

// WithRenderer sets the prompt/context renderer.
func WithRenderer(renderer Renderer) Option {
	return func(t *ToolWeave) {
		t.renderer = renderer
	}
}

// WithContinuationSignal replaces the default phrase-based continuation
// predicate.
func WithContinuationSignal(signal ContinuationSignal) Option {
	return func(t *ToolWeave) {
		t.signal = signal
	}
}

// WithTools adds tools to the runtime.
func WithTools(tools map[string]Tool) Option {
	return func(t *ToolWeave) {
		if t.tools == nil {
			t.tools = make(map[string]Tool)
		}
		for name, tool := range tools {
			if _, exists := t.tools[name]; !exists {
				t.toolOrder = append(t.toolOrder, name)
			}
			t.tools[name] = tool
		}
	}
}

// New creates a new ToolWeave instance with the provided options.
func New(ctx context.Context, g *genkit.Genkit, options ...Option) (*ToolWeave, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}

	tw := &ToolWeave{
		config:         DefaultConfig(),
		tools:          make(map[string]Tool),
		signal:         PhraseSignal{},
		asyncWorkflows: make(map[string]*WorkflowContext),
	}

	for _, option := range options {
		option(tw)
	}

	// Validate required components
	if tw.cache == nil && tw.config.EnableCaching {
		return nil, fmt.Errorf("cache is required when caching is enabled")
	}
	if tw.recovery == nil && tw.config.EnableAdvancedErrorRecovery {
		return nil, fmt.Errorf("recovery engine is required when advanced error recovery is enabled")
	}
	if tw.discovery == nil {
		return nil, fmt.Errorf("discovery is required")
	}
	if len(tw.tools) == 0 {
		return nil, fmt.Errorf("at least one tool is required")
	}

	// Initialize event bus if not provided
	if tw.eventBus == nil {
		tw.eventBus = eventbus.NewChannelEventBus()
		log.Printf("Initialized default channel-based event bus")
	}

	return tw, nil
}

// RegisterTool adds a new tool to the ToolWeave runtime.
func (t *ToolWeave) RegisterTool(name string, tool Tool) error {
	if _, exists := t.tools[name]; exists {
		return fmt.Errorf("tool with name '%s' already exists", name)
	}

	t.tools[name] = tool
	t.toolOrder = append(t.toolOrder, name)
	return nil
}

// GetToolSchemas returns a map of tool names to their full schemas,
// suitable for the model request's tool option.
func (t *ToolWeave) GetToolSchemas() map[string]map[string]interface{} {
	schemas := make(map[string]map[string]interface{})
	for name, tool := range t.tools {
		schemas[name] = tool.Schema()
	}
	return schemas
}

// GetToolByName returns a tool by its name, or an error if not found.
func (t *ToolWeave) GetToolByName(name string) (Tool, error) {
	if tool, exists := t.tools[name]; exists {
		return tool, nil
	}
	return nil, fmt.Errorf("tool with name '%s' not found", name)
}

// ListTools returns the registered tool names in registration order.
func (t *ToolWeave) ListTools() []string {
	return append([]string(nil), t.toolOrder...)
}

// EventBus returns the engine's event bus for subscribing to progress events.
func (t *ToolWeave) EventBus() eventbus.EventBus {
	return t.eventBus
}

// components assembles the structure handed to the workflow state machine.
func (t *ToolWeave) components() EngineComponents {
	tools := make(map[string]Tool, len(t.tools))
	for name, tool := range t.tools {
		tools[name] = tool
	}
	return EngineComponents{
		Cache:     t.cache,
		Recovery:  t.recovery,
		Discovery: t.discovery,
		Renderer:  t.renderer,
		Tools:     tools,
		ToolOrder: append([]string(nil), t.toolOrder...),
		Config:    t.config,
		Signal:    t.signal,
		GetSchemas: func() map[string]map[string]interface{} {
			return t.GetToolSchemas()
		},
	}
}

// ExecuteWorkflow runs one complete tool-calling workflow over the given
// conversation. It never panics outward and never returns an error: tool and
// model failures are folded into the returned WorkflowResult, and an
// unexpected internal failure yields whatever partial result accumulated.
func (t *ToolWeave) ExecuteWorkflow(ctx context.Context, host ModelHost, messages []Message, sink FeedbackSink, userIntent string) (result *WorkflowResult) {
	wc := NewWorkflowContext(host, messages, sink, userIntent)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Workflow execution panicked: %v", r)
			wc.SetError(NewInternalError(string(wc.CurrentState), fmt.Sprintf("unexpected failure: %v", r), nil), string(wc.CurrentState))
			result = wc.Result()
		}
	}()

	sm := CreateWorkflowStateMachine(t.components(), t.eventBus)
	result = sm.Execute(ctx, wc)

	t.publishCompletion(ctx, wc, result)
	if t.config.DebugMode && sink != nil {
		sink.Notify(ctx, t.debugSummary(result))
	}
	return result
}

// publishCompletion emits the terminal workflow event.
func (t *ToolWeave) publishCompletion(ctx context.Context, wc *WorkflowContext, result *WorkflowResult) {
	if t.eventBus == nil {
		return
	}
	eventType := eventbus.EventWorkflowCompleted
	metadata := map[string]interface{}{
		"rounds":      result.Metadata.TotalRounds,
		"tool_calls":  result.Metadata.TotalToolCalls,
		"errors":      len(result.Errors),
		"duration_ms": result.Metadata.ExecutionTime.Milliseconds(),
		"stop_reason": string(result.Metadata.StopReason),
	}
	switch wc.CurrentState {
	case StateError:
		eventType = eventbus.EventWorkflowFailed
		if wc.LastError != nil {
			metadata["error"] = wc.LastError.Error()
		}
	case StateCancelled:
		eventType = eventbus.EventWorkflowCancelled
	}
	t.eventBus.Publish(ctx, eventbus.NewEvent(eventType, result.Summary, "ToolWeave.ExecuteWorkflow", metadata))
}

// debugSummary renders the structured run report surfaced in debug mode.
func (t *ToolWeave) debugSummary(result *WorkflowResult) string {
	cacheLine := ""
	if t.cache != nil {
		stats := t.cache.Stats()
		cacheLine = fmt.Sprintf(", cache size %d (hits %d / misses %d)", stats.Size, stats.Hits, stats.Misses)
	}
	return fmt.Sprintf("Debug: %d round(s), %d tool call(s), %d cache hit(s), %d error(s), took %v%s",
		result.Metadata.TotalRounds,
		result.Metadata.TotalToolCalls,
		result.Metadata.CacheHits,
		len(result.Errors),
		result.Metadata.ExecutionTime.Round(time.Millisecond),
		cacheLine)
}

// ExecuteWorkflowAsync starts a workflow in the background and returns a
// unique execution ID for status polling, result retrieval, or cancellation.
func (t *ToolWeave) ExecuteWorkflowAsync(ctx context.Context, host ModelHost, messages []Message, sink FeedbackSink, userIntent string) (string, error) {
	executionID := uuid.New().String()

	wc := NewWorkflowContext(host, messages, sink, userIntent)

	t.asyncWorkflowsMutex.Lock()
	t.asyncWorkflows[executionID] = wc
	t.asyncWorkflowsMutex.Unlock()

	asyncCtx, cancel := context.WithCancel(context.Background())
	wc.StateData["cancel"] = cancel

	if t.eventBus != nil {
		t.eventBus.Publish(ctx, eventbus.NewEvent(
			eventbus.EventWorkflowAsyncStarted,
			userIntent,
			"ToolWeave.ExecuteWorkflowAsync",
			map[string]interface{}{
				"timestamp":    time.Now().Format(time.RFC3339),
				"execution_id": executionID,
			},
		))
	}

	go func() {
		defer cancel()

		sm := CreateWorkflowStateMachine(t.components(), t.eventBus)
		result := sm.Execute(asyncCtx, wc)

		if t.eventBus != nil {
			eventType := eventbus.EventWorkflowAsyncSuccess
			metadata := map[string]interface{}{
				"execution_id": executionID,
				"duration_ms":  wc.GetTotalDuration().Milliseconds(),
				"rounds":       result.Metadata.TotalRounds,
			}
			if wc.LastError != nil {
				eventType = eventbus.EventWorkflowAsyncFailure
				metadata["error"] = wc.LastError.Error()
				metadata["error_stage"] = wc.ErrorStage
			}
			// Use background context since the original context might be done
			t.eventBus.Publish(context.Background(), eventbus.NewEvent(eventType, userIntent, "ToolWeave.ExecuteWorkflowAsync", metadata))
		}
	}()

	return executionID, nil
}
