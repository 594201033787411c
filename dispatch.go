package toolweave

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/toolweave-genkit/internal/eventbus"
	"github.com/sourcegraph/conc/pool"
)

// roundDispatcher executes the tool calls of a single round against the
// cache, the tool registry, and the recovery engine.
type roundDispatcher struct {
	comp EngineComponents
	bus  eventbus.EventBus
}

func newRoundDispatcher(comp EngineComponents, bus eventbus.EventBus) *roundDispatcher {
	return &roundDispatcher{comp: comp, bus: bus}
}

// callOutcome is the settled result of one dispatched tool call.
type callOutcome struct {
	call     ToolCall
	result   *ToolResult
	toolErr  *ToolError
	cacheHit bool
	halt     bool
}

// DispatchRound runs every tool call of the round and merges the settled
// outcomes into the workflow context. All calls settle (success or recorded
// failure) before anything is merged; a failing call never cancels its
// siblings.
func (d *roundDispatcher) DispatchRound(ctx context.Context, wc *WorkflowContext, round Round) {
	calls := round.ToolCalls
	outcomes := make([]callOutcome, len(calls))

	if d.comp.Config.EnableParallelExecution && len(calls) > 1 {
		workers := pool.New().WithMaxGoroutines(len(calls))
		for i := range calls {
			i := i
			workers.Go(func() {
				outcomes[i] = d.executeCall(ctx, wc, calls[i], len(wc.Errors))
			})
		}
		workers.Wait()
	} else {
		// Strict input order; a failure does not prevent later calls.
		for i := range calls {
			outcomes[i] = d.executeCall(ctx, wc, calls[i], len(wc.Errors)+countFailures(outcomes[:i]))
		}
	}

	for _, outcome := range outcomes {
		wc.TotalToolCalls++
		wc.RecordToolUse(outcome.call.ToolName)
		if outcome.cacheHit {
			wc.CacheHits++
		}
		if outcome.result != nil {
			wc.Results[outcome.call.CallID] = *outcome.result
		}
		if outcome.toolErr != nil {
			wc.Errors = append(wc.Errors, *outcome.toolErr)
		}
		if outcome.halt {
			wc.Halted = true
		}
	}
}

// backoffDelay is the wait before the attempt after the given one: 2s after
// the first failure, 4s after the second, doubling from there.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func countFailures(outcomes []callOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.toolErr != nil {
			n++
		}
	}
	return n
}

// executeCall runs one tool call through the cache / attempt-loop / recovery
// chain and returns its settled outcome.
func (d *roundDispatcher) executeCall(ctx context.Context, wc *WorkflowContext, call ToolCall, errorsSoFar int) callOutcome {
	cfg := d.comp.Config

	if cfg.EnableCaching && d.comp.Cache != nil {
		if cached, err := d.comp.Cache.Get(ctx, call.ToolName, call.Input); err == nil {
			hit := *cached
			hit.CallID = call.CallID
			hit.Cached = true
			d.notify(ctx, wc, fmt.Sprintf("Tool '%s' result (cached): %s", call.ToolName, previewPayload(hit.Payload, 100)))
			d.publish(ctx, eventbus.EventToolCallCacheHit, call.ToolName, map[string]interface{}{"call_id": call.CallID})
			return callOutcome{call: call, result: &hit, cacheHit: true}
		}
	}

	d.publish(ctx, eventbus.EventToolCallStarted, call.ToolName, map[string]interface{}{"call_id": call.CallID})

	tool, exists := d.comp.Tools[call.ToolName]
	if !exists {
		notFound := NewToolNotFoundError("dispatch", call.ToolName)
		return d.settleFailure(ctx, wc, call, notFound.Error(), 0, errorsSoFar)
	}

	var lastErr error
	start := time.Now()
	for attempt := 1; attempt <= cfg.ErrorRetryAttempts; attempt++ {
		payload, err := d.executeOnce(ctx, tool, call, cfg.ToolTimeout)
		if err == nil {
			result := &ToolResult{
				CallID:   call.CallID,
				ToolName: call.ToolName,
				Payload:  payload,
				Duration: time.Since(start),
			}
			if cfg.EnableCaching && d.comp.Cache != nil {
				if cacheErr := d.comp.Cache.Put(ctx, call.ToolName, call.Input, result); cacheErr != nil {
					d.publish(ctx, eventbus.EventSystemWarning, call.ToolName, map[string]interface{}{"error": cacheErr.Error()})
				}
			}
			d.notify(ctx, wc, fmt.Sprintf("Tool '%s' result: %s", call.ToolName, previewPayload(payload, 100)))
			d.publish(ctx, eventbus.EventToolCallSuccess, call.ToolName, map[string]interface{}{
				"call_id":  call.CallID,
				"attempts": attempt,
			})
			return callOutcome{call: call, result: result}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt == cfg.ErrorRetryAttempts {
			break
		}

		// Exponential backoff before the next attempt, unless a recovery
		// classification suggests its own delay (rate limits do).
		delay := backoffDelay(attempt)
		if cfg.EnableAdvancedErrorRecovery && d.comp.Recovery != nil {
			class := d.comp.Recovery.Classify(ToolError{
				ToolName:   call.ToolName,
				CallID:     call.CallID,
				Message:    err.Error(),
				Timestamp:  time.Now(),
				RetryCount: attempt,
			}, d.recoveryContext(call, attempt))
			if class.SuggestedDelay > 0 {
				delay = class.SuggestedDelay
			}
		}
		d.publish(ctx, eventbus.EventToolCallRetry, call.ToolName, map[string]interface{}{
			"call_id": call.CallID,
			"attempt": attempt,
			"delay":   delay.String(),
		})
		select {
		case <-ctx.Done():
			return d.settleFailure(ctx, wc, call, ctx.Err().Error(), attempt, errorsSoFar)
		case <-time.After(delay):
		}
	}

	message := "tool execution failed"
	if lastErr != nil {
		message = lastErr.Error()
	}
	return d.settleFailure(ctx, wc, call, message, cfg.ErrorRetryAttempts, errorsSoFar)
}

// executeOnce races a single tool execution against the per-call timeout. A
// tool that ignores context cancellation still counts as timed out; its
// goroutine is abandoned with a buffered channel so it cannot leak a send.
func (d *roundDispatcher) executeOnce(ctx context.Context, tool Tool, call ToolCall, timeout time.Duration) (map[string]interface{}, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type execResult struct {
		payload map[string]interface{}
		err     error
	}
	done := make(chan execResult, 1)
	go func() {
		payload, err := tool.Execute(execCtx, call.Input)
		done <- execResult{payload: payload, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if res.payload == nil {
			return nil, NewInternalError("dispatch", "tool execution returned a nil result map", nil)
		}
		return res.payload, nil
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewToolTimeoutError("dispatch", call.ToolName, execCtx.Err())
	}
}

// settleFailure records the exhausted call as a ToolError and, when advanced
// recovery is enabled, runs the classification/recovery chain, possibly
// producing a substitute-tool result or a workflow halt.
func (d *roundDispatcher) settleFailure(ctx context.Context, wc *WorkflowContext, call ToolCall, message string, retryCount, errorsSoFar int) callOutcome {
	cfg := d.comp.Config
	toolErr := ToolError{
		ToolName:   call.ToolName,
		CallID:     call.CallID,
		Message:    message,
		Timestamp:  time.Now(),
		RetryCount: retryCount,
	}

	d.publish(ctx, eventbus.EventToolCallFailure, call.ToolName, map[string]interface{}{
		"call_id": call.CallID,
		"error":   message,
		"retries": retryCount,
	})

	if !cfg.EnableAdvancedErrorRecovery || d.comp.Recovery == nil {
		return callOutcome{call: call, toolErr: &toolErr}
	}

	rctx := d.recoveryContext(call, retryCount)
	class := d.comp.Recovery.Classify(toolErr, rctx)
	toolErr.ErrorType = class.Type
	toolErr.Severity = class.Severity

	action := d.comp.Recovery.GenerateAction(class, rctx)
	d.publish(ctx, eventbus.EventRecoveryStarted, call.ToolName, map[string]interface{}{
		"call_id":  call.CallID,
		"strategy": string(action.Strategy),
	})

	recoveryCtx := ctx
	if cfg.ErrorRecoveryTimeout > 0 {
		var cancel context.CancelFunc
		recoveryCtx, cancel = context.WithTimeout(ctx, cfg.ErrorRecoveryTimeout)
		defer cancel()
	}
	recovered := d.comp.Recovery.ExecuteAction(recoveryCtx, action, rctx)

	outcome := callOutcome{call: call, toolErr: &toolErr}

	if recovered.SubstituteTool != "" {
		if substitute, ok := d.comp.Tools[recovered.SubstituteTool]; ok {
			if payload, err := d.executeOnce(ctx, substitute, call, cfg.ToolTimeout); err == nil {
				outcome.result = &ToolResult{
					CallID:   call.CallID,
					ToolName: recovered.SubstituteTool,
					Payload:  payload,
				}
				d.notify(ctx, wc, fmt.Sprintf("Recovered '%s' using fallback tool '%s': %s",
					call.ToolName, recovered.SubstituteTool, previewPayload(payload, 100)))
				d.publish(ctx, eventbus.EventRecoverySuccess, call.ToolName, map[string]interface{}{
					"call_id":    call.CallID,
					"substitute": recovered.SubstituteTool,
				})
				recovered.Success = true
			}
		}
	}

	if !recovered.Success {
		d.publish(ctx, eventbus.EventRecoveryFailure, call.ToolName, map[string]interface{}{
			"call_id":  call.CallID,
			"strategy": string(action.Strategy),
			"message":  recovered.Message,
		})
	}
	if recovered.Message != "" {
		d.notify(ctx, wc, recovered.Message)
	}

	if !recovered.Continue {
		outcome.halt = true
		return outcome
	}
	if !d.comp.Recovery.ShouldContinueWorkflow(toolErr, rctx, errorsSoFar+1) {
		outcome.halt = true
	}
	return outcome
}

func (d *roundDispatcher) recoveryContext(call ToolCall, retryCount int) RecoveryContext {
	return RecoveryContext{
		ToolName:       call.ToolName,
		CallID:         call.CallID,
		Input:          call.Input,
		AvailableTools: d.comp.ToolOrder,
		RetryCount:     retryCount,
	}
}

func (d *roundDispatcher) notify(ctx context.Context, wc *WorkflowContext, text string) {
	if wc.Sink != nil {
		wc.Sink.Notify(ctx, text)
	}
}

func (d *roundDispatcher) publish(ctx context.Context, eventType eventbus.EventType, toolName string, metadata map[string]interface{}) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(ctx, eventbus.NewEvent(eventType, toolName, "roundDispatcher", metadata))
}
