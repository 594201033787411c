// Package adapters bridges external systems (Genkit models, plain Go
// functions, logging) to the interfaces the workflow runtime consumes.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	toolweave "github.com/ZanzyTHEbar/toolweave-genkit"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
)

// GenkitModelHost implements toolweave.ModelHost on top of a Genkit model.
// Tool schemas are surfaced to the model and tool requests are returned to
// the caller rather than executed by Genkit, so the workflow runtime keeps
// control of dispatch, caching, and recovery.
type GenkitModelHost struct {
	g         *genkit.Genkit
	modelName string
}

// NewGenkitModelHost creates a model host. An empty modelName uses the
// Genkit instance's default model.
func NewGenkitModelHost(g *genkit.Genkit, modelName string) *GenkitModelHost {
	return &GenkitModelHost{g: g, modelName: modelName}
}

// Send implements toolweave.ModelHost.
func (h *GenkitModelHost) Send(ctx context.Context, messages []toolweave.Message, opts toolweave.ModelOptions) (toolweave.ModelStream, error) {
	converted := make([]*ai.Message, 0, len(messages)+1)
	if len(opts.Tools) > 0 {
		converted = append(converted, ai.NewSystemTextMessage(describeTools(opts.Tools)))
	}
	for _, message := range messages {
		converted = append(converted, convertMessage(message))
	}

	genOpts := []ai.GenerateOption{
		ai.WithMessages(converted...),
		ai.WithReturnToolRequests(true),
	}
	if h.modelName != "" {
		genOpts = append(genOpts, ai.WithModelName(h.modelName))
	}

	resp, err := genkit.Generate(ctx, h.g, genOpts...)
	if err != nil {
		return nil, fmt.Errorf("model generation failed: %w", err)
	}
	if resp == nil || resp.Message == nil {
		return &partStream{}, nil
	}

	return &partStream{parts: convertResponse(resp)}, nil
}

// describeTools renders the tool schemas as a system notice so the model
// knows what it may call.
func describeTools(tools map[string]map[string]interface{}) string {
	encoded, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", tools))
	}
	return "You may call the following tools. Their schemas:\n" + string(encoded)
}

func convertMessage(message toolweave.Message) *ai.Message {
	switch message.Role {
	case toolweave.RoleSystem:
		return ai.NewSystemTextMessage(message.Content)
	case toolweave.RoleAssistant:
		return ai.NewModelTextMessage(message.Content)
	case toolweave.RoleTool:
		return &ai.Message{
			Role:    ai.RoleTool,
			Content: []*ai.Part{ai.NewTextPart(message.Content)},
		}
	default:
		return ai.NewUserTextMessage(message.Content)
	}
}

// convertResponse flattens the model response into workflow parts.
func convertResponse(resp *ai.ModelResponse) []toolweave.Part {
	var parts []toolweave.Part
	for _, part := range resp.Message.Content {
		switch {
		case part.IsToolRequest():
			request := part.ToolRequest
			callID := request.Ref
			if callID == "" {
				callID = uuid.New().String()
			}
			parts = append(parts, toolweave.NewToolCallPart(toolweave.ToolCall{
				CallID:   callID,
				ToolName: request.Name,
				Input:    toInputMap(request.Input),
			}))
		case part.Text != "":
			parts = append(parts, toolweave.NewTextPart(part.Text))
		}
	}
	return parts
}

func toInputMap(input interface{}) map[string]interface{} {
	if m, ok := input.(map[string]interface{}); ok {
		return m
	}
	if input == nil {
		return map[string]interface{}{}
	}
	// Round-trip through JSON for typed structs.
	encoded, err := json.Marshal(input)
	if err != nil {
		return map[string]interface{}{"value": fmt.Sprintf("%v", input)}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(encoded, &m); err != nil {
		return map[string]interface{}{"value": string(encoded)}
	}
	return m
}

// partStream replays an already-complete list of parts as a stream.
type partStream struct {
	parts []toolweave.Part
	index int
}

// Next implements toolweave.ModelStream.
func (s *partStream) Next() (toolweave.Part, error) {
	if s.index >= len(s.parts) {
		return toolweave.Part{}, io.EOF
	}
	part := s.parts[s.index]
	s.index++
	return part, nil
}
