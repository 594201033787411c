package toolweave

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/ZanzyTHEbar/toolweave-genkit/internal/eventbus"
	"github.com/google/uuid"
)

// EngineComponents holds references to the core components needed by the
// workflow state machine.
type EngineComponents struct {
	Cache     Cache
	Recovery  RecoveryEngine
	Discovery Discovery
	Renderer  Renderer
	Tools     map[string]Tool
	ToolOrder []string // registration order, used wherever ordering matters
	Config    Config
	Signal    ContinuationSignal

	// Function to retrieve tool schemas for the model request
	GetSchemas func() map[string]map[string]interface{}
}

// CreateWorkflowStateMachine builds the state machine driving one workflow:
// INIT, then ROUND repeated until a stop condition fires.
func CreateWorkflowStateMachine(components EngineComponents, eventBus eventbus.EventBus) *WorkflowStateMachine {
	sm := NewWorkflowStateMachine(eventBus)

	sm.RegisterTransition(StateInit, createInitTransition(components))
	sm.RegisterTransition(StateRound, createRoundTransition(components))

	return sm
}

// createInitTransition handles the initialization state: a discovery pass
// over the registered tools and the workflow-started notice.
func createInitTransition(components EngineComponents) WorkflowTransition {
	return func(ctx context.Context, eb eventbus.EventBus, wc *WorkflowContext) (WorkflowState, error) {
		if eb != nil {
			startEvent := eventbus.NewEvent(
				eventbus.EventWorkflowStarted,
				wc.UserIntent,
				"WorkflowStateMachine.Init",
				map[string]interface{}{
					"timestamp":     time.Now().Format(time.RFC3339),
					"message_count": len(wc.Messages),
					"tool_count":    len(components.Tools),
				},
			)
			eb.Publish(ctx, startEvent)
		}

		if components.Discovery != nil {
			components.Discovery.Refresh(components.ToolOrder, components.Tools)
		}

		return StateRound, nil
	}
}

// createRoundTransition handles one full round: optional context message,
// model request, stream consumption, tool dispatch, merge, continuation.
func createRoundTransition(components EngineComponents) WorkflowTransition {
	return func(ctx context.Context, eb eventbus.EventBus, wc *WorkflowContext) (WorkflowState, error) {
		roundNumber := wc.RoundNumber() + 1

		// Rounds after the first carry a synthesized context message
		// summarizing what the tools have produced so far.
		if roundNumber > 1 && components.Renderer != nil {
			contextText, err := components.Renderer.Render("round_context", map[string]interface{}{
				"RoundNumber": roundNumber,
				"ResultCount": len(wc.Results),
				"ErrorCount":  len(wc.Errors),
				"ToolsUsed":   wc.ToolsUsed,
			})
			if err != nil {
				log.Printf("Round context rendering failed (round: %d): %v", roundNumber, err)
			} else {
				wc.Messages = append([]Message{{Role: RoleSystem, Content: contextText}}, wc.Messages...)
			}
		}

		if eb != nil {
			eb.Publish(ctx, eventbus.NewEvent(
				eventbus.EventRoundStarted,
				roundNumber,
				"WorkflowStateMachine.Round",
				map[string]interface{}{"round": roundNumber},
			))
		}

		opts := ModelOptions{
			Justification: wc.UserIntent,
		}
		if components.GetSchemas != nil {
			opts.Tools = components.GetSchemas()
		}

		stream, err := wc.Host.Send(ctx, wc.Messages, opts)
		if err != nil {
			wc.Errors = append(wc.Errors, ToolError{
				ToolName:  "model",
				Message:   err.Error(),
				Timestamp: time.Now(),
			})
			return StateError, NewModelHostError("round", err)
		}

		round := Round{
			ID:        uuid.New().String(),
			Number:    roundNumber,
			Timestamp: time.Now(),
		}

		// Consume the streamed parts: accumulate text, collect tool calls,
		// and surface a progress notice per tool-call part as it arrives.
		for {
			part, err := stream.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				wc.Errors = append(wc.Errors, ToolError{
					ToolName:  "model",
					Message:   err.Error(),
					Timestamp: time.Now(),
				})
				break
			}
			switch part.Kind {
			case PartText:
				round.ResponseText += part.Text
			case PartToolCall:
				if part.ToolCall == nil {
					continue
				}
				call := *part.ToolCall
				if call.CallID == "" {
					call.CallID = uuid.New().String()
				}
				round.ToolCalls = append(round.ToolCalls, call)
				if wc.Sink != nil {
					wc.Sink.Notify(ctx, fmt.Sprintf("Calling tool '%s'...", call.ToolName))
				}
			}
		}

		wc.Rounds = append(wc.Rounds, round)

		if len(round.ToolCalls) == 0 {
			wc.Complete(StopNoToolCalls)
			return StateComplete, nil
		}

		dispatcher := newRoundDispatcher(components, eb)
		dispatcher.DispatchRound(ctx, wc, round)

		// Fold the round's outcomes back into the conversation so the next
		// model request sees them.
		for _, call := range round.ToolCalls {
			if res, ok := wc.Results[call.CallID]; ok {
				wc.Messages = append(wc.Messages, Message{
					Role:    RoleTool,
					Content: fmt.Sprintf("Tool %s returned: %s", call.ToolName, previewPayload(res.Payload, 200)),
				})
			} else {
				wc.Messages = append(wc.Messages, Message{
					Role:    RoleTool,
					Content: fmt.Sprintf("Tool %s failed: %s", call.ToolName, lastErrorFor(wc.Errors, call.CallID)),
				})
			}
		}

		if eb != nil {
			eb.Publish(ctx, eventbus.NewEvent(
				eventbus.EventRoundCompleted,
				roundNumber,
				"WorkflowStateMachine.Round",
				map[string]interface{}{
					"round":      roundNumber,
					"tool_calls": len(round.ToolCalls),
					"errors":     len(wc.Errors),
				},
			))
		}

		if wc.Halted {
			wc.Complete(StopErrorBudget)
			return StateComplete, nil
		}

		cont, reason := shouldContinue(components.Signal, roundNumber, components.Config.MaxToolRounds, len(wc.Errors), round.ResponseText)
		if !cont {
			wc.Complete(reason)
			return StateComplete, nil
		}
		return StateRound, nil
	}
}

// previewPayload renders a payload as text truncated to max characters.
func previewPayload(payload interface{}, max int) string {
	text := fmt.Sprintf("%v", payload)
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}

// lastErrorFor finds the most recent error message recorded for a call ID.
func lastErrorFor(errors []ToolError, callID string) string {
	for i := len(errors) - 1; i >= 0; i-- {
		if errors[i].CallID == callID {
			return errors[i].Message
		}
	}
	return "unknown error"
}
