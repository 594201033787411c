package toolweave

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/toolweave-genkit/internal/eventbus"
)

// AsyncWorkflowStatus represents the status information for an async workflow.
type AsyncWorkflowStatus struct {
	ExecutionID  string        `json:"execution_id"`
	UserIntent   string        `json:"user_intent"`
	CurrentState WorkflowState `json:"current_state"`
	StartTime    time.Time     `json:"start_time"`
	Duration     time.Duration `json:"duration"`
	Rounds       int           `json:"rounds"`
	IsComplete   bool          `json:"is_complete"`
	HasError     bool          `json:"has_error"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ErrorStage   string        `json:"error_stage,omitempty"`
}

// GetAsyncStatus retrieves the current status of an async workflow.
func (t *ToolWeave) GetAsyncStatus(executionID string) (*AsyncWorkflowStatus, error) {
	t.asyncWorkflowsMutex.RLock()
	defer t.asyncWorkflowsMutex.RUnlock()

	wc, exists := t.asyncWorkflows[executionID]
	if !exists {
		return nil, fmt.Errorf("workflow with ID '%s' not found", executionID)
	}

	status := &AsyncWorkflowStatus{
		ExecutionID:  executionID,
		UserIntent:   wc.UserIntent,
		CurrentState: wc.CurrentState,
		StartTime:    wc.StartTime,
		Duration:     wc.GetTotalDuration(),
		Rounds:       wc.RoundNumber(),
		IsComplete:   wc.IsTerminal(),
		HasError:     wc.CurrentState == StateError,
	}

	if wc.LastError != nil {
		status.ErrorMessage = wc.LastError.Error()
		status.ErrorStage = wc.ErrorStage
	}

	return status, nil
}

// GetAsyncResult retrieves the result of a completed async workflow.
// Returns an error if the workflow is not complete or failed outright.
func (t *ToolWeave) GetAsyncResult(executionID string) (*WorkflowResult, error) {
	t.asyncWorkflowsMutex.RLock()
	defer t.asyncWorkflowsMutex.RUnlock()

	wc, exists := t.asyncWorkflows[executionID]
	if !exists {
		return nil, fmt.Errorf("workflow with ID '%s' not found", executionID)
	}

	if !wc.IsTerminal() {
		return nil, fmt.Errorf("workflow is still in progress (current state: %s)", wc.CurrentState)
	}
	if wc.CurrentState == StateError {
		return nil, fmt.Errorf("workflow failed during stage '%s': %w", wc.ErrorStage, wc.LastError)
	}

	return wc.Result(), nil
}

// CancelAsyncWorkflow cancels an ongoing async workflow.
// Returns true if the workflow was successfully cancelled, false if it was
// already complete.
func (t *ToolWeave) CancelAsyncWorkflow(executionID string) (bool, error) {
	t.asyncWorkflowsMutex.Lock()
	defer t.asyncWorkflowsMutex.Unlock()

	wc, exists := t.asyncWorkflows[executionID]
	if !exists {
		return false, fmt.Errorf("workflow with ID '%s' not found", executionID)
	}

	if wc.IsTerminal() {
		return false, nil
	}

	cancelFn, ok := wc.StateData["cancel"].(context.CancelFunc)
	if !ok {
		return false, fmt.Errorf("cannot cancel workflow: cancel function not found")
	}
	cancelFn()
	wc.SetCancelled(fmt.Errorf("workflow cancelled by user"), "cancelled")

	if t.eventBus != nil {
		cancelEvent := eventbus.NewEvent(
			eventbus.EventWorkflowAsyncCancelled,
			wc.UserIntent,
			"ToolWeave.CancelAsyncWorkflow",
			map[string]interface{}{
				"execution_id": executionID,
				"duration_ms":  wc.GetTotalDuration().Milliseconds(),
			},
		)
		t.eventBus.Publish(context.Background(), cancelEvent)
	}

	return true, nil
}

// ListAsyncWorkflows returns a map of all async workflow IDs to their current states.
func (t *ToolWeave) ListAsyncWorkflows() map[string]string {
	t.asyncWorkflowsMutex.RLock()
	defer t.asyncWorkflowsMutex.RUnlock()

	result := make(map[string]string)
	for id, wc := range t.asyncWorkflows {
		result[id] = string(wc.CurrentState)
	}

	return result
}

// CleanupCompletedWorkflows removes terminal workflows older than the given
// duration, bounding memory held by the async registry.
func (t *ToolWeave) CleanupCompletedWorkflows(olderThan time.Duration) int {
	t.asyncWorkflowsMutex.Lock()
	defer t.asyncWorkflowsMutex.Unlock()

	now := time.Now()
	count := 0

	for id, wc := range t.asyncWorkflows {
		if wc.IsTerminal() && now.Sub(wc.StateStartTimes[wc.CurrentState]) > olderThan {
			delete(t.asyncWorkflows, id)
			count++
		}
	}

	return count
}
