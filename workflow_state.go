package toolweave

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/toolweave-genkit/internal/eventbus"
)

// WorkflowState represents the current state of a workflow execution.
type WorkflowState string

const (
	// StateInit is the initial state of the workflow
	StateInit WorkflowState = "init"
	// StateRound represents one model-request/tool-dispatch cycle
	StateRound WorkflowState = "round"
	// StateComplete represents the completed state
	StateComplete WorkflowState = "complete"
	// StateError represents an error state
	StateError WorkflowState = "error"
	// StateCancelled represents the cancelled state
	StateCancelled WorkflowState = "cancelled"
	// StateUnknown is used when the status of an async workflow cannot be determined.
	StateUnknown WorkflowState = "unknown"
)

// WorkflowContext contains the accumulated state of one workflow execution.
type WorkflowContext struct {
	// Input parameters
	Messages   []Message
	UserIntent string
	Host       ModelHost
	Sink       FeedbackSink

	// Accumulated results
	Rounds         []Round
	Results        map[string]ToolResult
	Errors         []ToolError
	CacheHits      int
	TotalToolCalls int
	ToolsUsed      []string // unique tool names, in first-use order

	// Termination
	StopReason StopReason
	Halted     bool // set by dispatch when recovery demands a halt

	// Error handling
	LastError  error
	ErrorStage string

	// State management
	CurrentState WorkflowState
	StateData    map[string]interface{}

	// Timestamp tracking
	StartTime       time.Time
	EndTime         time.Time
	StateStartTimes map[WorkflowState]time.Time
}

// NewWorkflowContext creates a workflow context for the given conversation.
func NewWorkflowContext(host ModelHost, messages []Message, sink FeedbackSink, userIntent string) *WorkflowContext {
	return &WorkflowContext{
		Messages:        append([]Message(nil), messages...),
		UserIntent:      userIntent,
		Host:            host,
		Sink:            sink,
		Results:         make(map[string]ToolResult),
		CurrentState:    StateInit,
		StateData:       make(map[string]interface{}),
		StartTime:       time.Now(),
		StateStartTimes: make(map[WorkflowState]time.Time),
	}
}

// RoundNumber returns the number of rounds recorded so far.
func (wc *WorkflowContext) RoundNumber() int {
	return len(wc.Rounds)
}

// RecordToolUse appends the tool name to the unique-use list on first use.
func (wc *WorkflowContext) RecordToolUse(name string) {
	for _, used := range wc.ToolsUsed {
		if used == name {
			return
		}
	}
	wc.ToolsUsed = append(wc.ToolsUsed, name)
}

// IsTerminal checks if the current state is a terminal state.
func (wc *WorkflowContext) IsTerminal() bool {
	return wc.CurrentState == StateComplete || wc.CurrentState == StateError || wc.CurrentState == StateCancelled
}

// SetError sets the last error and error stage, transitioning to StateError.
func (wc *WorkflowContext) SetError(err error, stage string) {
	wc.LastError = err
	wc.ErrorStage = stage
	wc.CurrentState = StateError
	wc.StateStartTimes[StateError] = time.Now()
}

// SetCancelled sets the state to Cancelled and records the cancellation error.
func (wc *WorkflowContext) SetCancelled(err error, stage string) {
	wc.LastError = err
	wc.ErrorStage = stage
	wc.StopReason = StopCancelled
	wc.CurrentState = StateCancelled
	wc.StateStartTimes[StateCancelled] = time.Now()
}

// Complete marks the workflow as complete and sets the end time.
func (wc *WorkflowContext) Complete(reason StopReason) {
	if wc.StopReason == "" {
		wc.StopReason = reason
	}
	wc.CurrentState = StateComplete
	wc.EndTime = time.Now()
	wc.StateStartTimes[StateComplete] = wc.EndTime
}

// GetTotalDuration returns the total duration of the workflow so far.
func (wc *WorkflowContext) GetTotalDuration() time.Duration {
	if !wc.EndTime.IsZero() {
		return wc.EndTime.Sub(wc.StartTime)
	}
	return time.Since(wc.StartTime)
}

// Result assembles the terminal WorkflowResult from the accumulated state.
func (wc *WorkflowContext) Result() *WorkflowResult {
	if wc.EndTime.IsZero() {
		wc.EndTime = time.Now()
	}
	res := &WorkflowResult{
		Rounds:  wc.Rounds,
		Results: wc.Results,
		Errors:  wc.Errors,
		Summary: wc.summary(),
		Metadata: WorkflowMetadata{
			TotalRounds:    len(wc.Rounds),
			TotalToolCalls: wc.TotalToolCalls,
			CacheHits:      wc.CacheHits,
			ExecutionTime:  wc.EndTime.Sub(wc.StartTime),
			StopReason:     wc.StopReason,
			Success:        wc.LastError == nil && wc.CurrentState == StateComplete,
		},
	}
	if res.Results == nil {
		res.Results = make(map[string]ToolResult)
	}
	return res
}

// summary renders the human-readable run report: round count, tool-call
// count, then the unique tools used.
func (wc *WorkflowContext) summary() string {
	if wc.LastError != nil && wc.CurrentState == StateError {
		return fmt.Sprintf("Workflow failed during %s after %d round(s): %v", wc.ErrorStage, len(wc.Rounds), wc.LastError)
	}
	tools := "none"
	if len(wc.ToolsUsed) > 0 {
		tools = ""
		for i, name := range wc.ToolsUsed {
			if i > 0 {
				tools += ", "
			}
			tools += name
		}
	}
	return fmt.Sprintf("Completed %d round(s) with %d tool call(s) using tools: %s", len(wc.Rounds), wc.TotalToolCalls, tools)
}

// WorkflowTransition defines a transition function for the workflow state machine.
type WorkflowTransition func(ctx context.Context, eventBus eventbus.EventBus, wc *WorkflowContext) (WorkflowState, error)

// WorkflowStateMachine drives a workflow through its states.
type WorkflowStateMachine struct {
	transitions map[WorkflowState]WorkflowTransition
	eventBus    eventbus.EventBus
}

// NewWorkflowStateMachine creates a state machine with no transitions registered.
func NewWorkflowStateMachine(eventBus eventbus.EventBus) *WorkflowStateMachine {
	return &WorkflowStateMachine{
		transitions: make(map[WorkflowState]WorkflowTransition),
		eventBus:    eventBus,
	}
}

// RegisterTransition registers a state transition function.
func (sm *WorkflowStateMachine) RegisterTransition(state WorkflowState, transition WorkflowTransition) {
	sm.transitions[state] = transition
}

// Execute runs the state machine until a terminal state is reached. Unlike
// a plain pipeline it never propagates tool or model errors outward; they
// are folded into the context and reflected in the assembled result.
func (sm *WorkflowStateMachine) Execute(ctx context.Context, wc *WorkflowContext) *WorkflowResult {
	for !wc.IsTerminal() {
		// Cooperative cancellation: checked before every transition, which
		// covers the pre-model-request checkpoint each round.
		select {
		case <-ctx.Done():
			wc.SetCancelled(ctx.Err(), string(wc.CurrentState))
			return wc.Result()
		default:
		}

		transition, exists := sm.transitions[wc.CurrentState]
		if !exists {
			wc.SetError(NewInternalError(string(wc.CurrentState), "no transition defined for state", nil), string(wc.CurrentState))
			return wc.Result()
		}

		nextState, err := transition(ctx, sm.eventBus, wc)
		if err != nil {
			stage := string(wc.CurrentState)
			if err == context.Canceled || err == context.DeadlineExceeded {
				wc.SetCancelled(err, stage)
			} else if !wc.IsTerminal() {
				wc.SetError(err, stage)
			}
			continue
		}

		if !wc.IsTerminal() {
			wc.CurrentState = nextState
			wc.StateStartTimes[nextState] = time.Now()
		}
	}
	return wc.Result()
}
