package recovery

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	toolweave "github.com/ZanzyTHEbar/toolweave-genkit"
)

const (
	// maxHistoryPerTool bounds the recovery history kept per tool.
	maxHistoryPerTool = 10

	// failureWindow is how far back failed recovery attempts count against a
	// tool when deciding whether the workflow may continue.
	failureWindow = 5 * time.Minute

	// maxFallbackCandidates caps how many substitute tools an action carries.
	maxFallbackCandidates = 3
)

// Engine is the default RecoveryEngine implementation. Classification is
// memoized per (tool, message) pair and recovery outcomes are recorded in a
// bounded per-tool history used for throttling.
type Engine struct {
	discovery toolweave.Discovery
	renderer  toolweave.Renderer
	clock     toolweave.Clock

	toolTimeout        time.Duration
	maxToolRounds      int
	errorRetryAttempts int
	fallbackEnabled    bool

	classCache map[string]toolweave.ErrorClassification
	classMutex sync.Mutex

	history      map[string][]toolweave.RecoveryResult
	historyMutex sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRenderer sets the template renderer used for recovery notices.
func WithRenderer(renderer toolweave.Renderer) EngineOption {
	return func(e *Engine) {
		e.renderer = renderer
	}
}

// WithClock overrides the engine's time source.
func WithClock(clock toolweave.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// NewEngine creates a recovery engine. Discovery supplies fallback
// candidates; the config fields mirror the workflow configuration.
func NewEngine(discovery toolweave.Discovery, cfg toolweave.Config, options ...EngineOption) *Engine {
	e := &Engine{
		discovery:          discovery,
		clock:              toolweave.SystemClock{},
		toolTimeout:        cfg.ToolTimeout,
		maxToolRounds:      cfg.MaxToolRounds,
		errorRetryAttempts: cfg.ErrorRetryAttempts,
		fallbackEnabled:    cfg.FallbackToolSuggestions,
		classCache:         make(map[string]toolweave.ErrorClassification),
		history:            make(map[string][]toolweave.RecoveryResult),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Classify derives the classification for a failure, memoized by
// (tool name, lowercased message) so repeated classification of the same
// failure is stable and cheap.
func (e *Engine) Classify(toolErr toolweave.ToolError, rctx toolweave.RecoveryContext) toolweave.ErrorClassification {
	key := toolErr.ToolName + "|" + strings.ToLower(toolErr.Message)

	e.classMutex.Lock()
	defer e.classMutex.Unlock()

	if class, found := e.classCache[key]; found {
		return class
	}

	class := classifyMessage(toolErr.Message)
	e.classCache[key] = class
	return class
}

// GenerateAction builds the concrete recovery plan for a classification.
func (e *Engine) GenerateAction(class toolweave.ErrorClassification, rctx toolweave.RecoveryContext) toolweave.RecoveryAction {
	action := toolweave.RecoveryAction{Strategy: class.SuggestedStrategy}

	switch class.SuggestedStrategy {
	case toolweave.StrategyRetry:
		if class.SuggestedDelay > 0 {
			action.Delay = class.SuggestedDelay
		} else {
			action.Delay = time.Duration(1<<uint(rctx.RetryCount)) * time.Second
		}
		action.RetryTimeout = e.toolTimeout * 3 / 2
		action.Message = fmt.Sprintf("Retrying '%s' after %v.", rctx.ToolName, action.Delay)

	case toolweave.StrategyFallbackTool:
		if e.fallbackEnabled && e.discovery != nil {
			action.FallbackTools = e.discovery.FallbackCandidates(rctx.ToolName, maxFallbackCandidates)
		}
		if len(action.FallbackTools) == 0 {
			action.Message = fmt.Sprintf("No substitute found for '%s'.", rctx.ToolName)
		} else {
			action.Message = fmt.Sprintf("Substituting '%s' for '%s'.", action.FallbackTools[0], rctx.ToolName)
		}

	case toolweave.StrategyParameterCorrection:
		action.RequiresValidation = true
		action.Message = fmt.Sprintf("Parameters for '%s' need correction before retrying.", rctx.ToolName)

	case toolweave.StrategyGracefulDegradation:
		action.Message = fmt.Sprintf("Continuing without '%s'.", rctx.ToolName)

	case toolweave.StrategyUserIntervention:
		action.Message = e.interventionMessage(class, rctx)

	case toolweave.StrategyAbort:
		action.Message = fmt.Sprintf("Workflow aborted after failure of '%s'.", rctx.ToolName)
	}

	return action
}

// interventionMessage builds the escalation notice, preferring the templated
// form when a renderer is available.
func (e *Engine) interventionMessage(class toolweave.ErrorClassification, rctx toolweave.RecoveryContext) string {
	suggestions := e.Suggestions(class.Type)
	if e.renderer != nil {
		text, err := e.renderer.Render("recovery_notice", map[string]interface{}{
			"ToolName":    rctx.ToolName,
			"ErrorType":   string(class.Type),
			"Details":     class.Details,
			"Suggestions": suggestions,
		})
		if err == nil {
			return text
		}
		log.Printf("Recovery notice rendering failed (tool: %s): %v", rctx.ToolName, err)
	}
	return fmt.Sprintf("Tool '%s' needs attention (%s): %s", rctx.ToolName, class.Type, strings.Join(suggestions, " "))
}

// ExecuteAction performs the action's side effect and records the outcome in
// the per-tool history. For FALLBACK_TOOL the result carries the selected
// substitute; executing it is the caller's job.
func (e *Engine) ExecuteAction(ctx context.Context, action toolweave.RecoveryAction, rctx toolweave.RecoveryContext) toolweave.RecoveryResult {
	result := toolweave.RecoveryResult{
		Strategy:  action.Strategy,
		Message:   action.Message,
		Timestamp: e.clock.Now(),
	}

	switch action.Strategy {
	case toolweave.StrategyRetry:
		select {
		case <-ctx.Done():
			result.Success = false
			result.Continue = false
			result.Message = fmt.Sprintf("Recovery wait for '%s' cancelled.", rctx.ToolName)
		case <-time.After(action.Delay):
			result.Success = true
			result.Continue = true
		}

	case toolweave.StrategyFallbackTool:
		if len(action.FallbackTools) > 0 {
			result.SubstituteTool = action.FallbackTools[0]
		} else {
			result.Success = false
		}
		result.Continue = true

	case toolweave.StrategyParameterCorrection:
		// Assume the next round's corrected arguments; validation happens
		// when the tool is invoked again.
		result.Success = true
		result.Continue = true

	case toolweave.StrategyGracefulDegradation:
		result.Success = true
		result.Continue = true

	case toolweave.StrategyUserIntervention:
		result.Success = false
		result.Continue = false

	case toolweave.StrategyAbort:
		result.Success = false
		result.Continue = false

	default:
		result.Success = false
		result.Continue = true
		result.Message = fmt.Sprintf("No recovery handler for strategy '%s'.", action.Strategy)
	}

	e.appendHistory(rctx.ToolName, result)
	return result
}

// appendHistory records a recovery outcome, keeping only the most recent
// entries per tool.
func (e *Engine) appendHistory(toolName string, result toolweave.RecoveryResult) {
	e.historyMutex.Lock()
	defer e.historyMutex.Unlock()

	entries := append(e.history[toolName], result)
	if len(entries) > maxHistoryPerTool {
		entries = entries[len(entries)-maxHistoryPerTool:]
	}
	e.history[toolName] = entries
}

// ShouldContinueWorkflow reports whether the workflow may proceed after this
// failure.
func (e *Engine) ShouldContinueWorkflow(toolErr toolweave.ToolError, rctx toolweave.RecoveryContext, totalErrors int) bool {
	class := e.Classify(toolErr, rctx)

	if class.Severity == toolweave.SeverityCritical {
		return false
	}
	if totalErrors > e.maxToolRounds {
		return false
	}
	if !class.Recoverable {
		return false
	}
	if e.recentFailures(toolErr.ToolName) > e.errorRetryAttempts {
		return false
	}
	return true
}

// recentFailures counts failed recovery attempts for a tool inside the
// failure window.
func (e *Engine) recentFailures(toolName string) int {
	e.historyMutex.Lock()
	defer e.historyMutex.Unlock()

	cutoff := e.clock.Now().Add(-failureWindow)
	count := 0
	for _, entry := range e.history[toolName] {
		if !entry.Success && entry.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

// Suggestions returns human-readable remediation hints for an error type.
func (e *Engine) Suggestions(errType toolweave.ErrorType) []string {
	if suggestions, found := suggestionsByType[errType]; found {
		return append([]string(nil), suggestions...)
	}
	return append([]string(nil), suggestionsByType[toolweave.ErrorUnknown]...)
}
