package adapters

import (
	"io"
	"strings"
	"testing"

	toolweave "github.com/ZanzyTHEbar/toolweave-genkit"
)

func TestPartStream_ReplaysThenEOF(t *testing.T) {
	stream := &partStream{parts: []toolweave.Part{
		toolweave.NewTextPart("hello"),
		toolweave.NewToolCallPart(toolweave.ToolCall{CallID: "c1", ToolName: "search"}),
	}}

	first, err := stream.Next()
	if err != nil || first.Kind != toolweave.PartText || first.Text != "hello" {
		t.Fatalf("unexpected first part: %+v, %v", first, err)
	}
	second, err := stream.Next()
	if err != nil || second.Kind != toolweave.PartToolCall || second.ToolCall.ToolName != "search" {
		t.Fatalf("unexpected second part: %+v, %v", second, err)
	}
	if _, err := stream.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after last part, got %v", err)
	}
}

func TestToInputMap(t *testing.T) {
	direct := map[string]interface{}{"a": 1}
	if got := toInputMap(direct); got["a"] != 1 {
		t.Errorf("expected map passthrough, got %v", got)
	}
	if got := toInputMap(nil); len(got) != 0 {
		t.Errorf("expected empty map for nil, got %v", got)
	}
	type typed struct {
		Query string `json:"query"`
	}
	if got := toInputMap(typed{Query: "apples"}); got["query"] != "apples" {
		t.Errorf("expected struct conversion, got %v", got)
	}
}

func TestDescribeTools_IncludesSchemas(t *testing.T) {
	text := describeTools(map[string]map[string]interface{}{
		"search": {"description": "Performs a web search."},
	})
	if !strings.Contains(text, "search") || !strings.Contains(text, "Performs a web search.") {
		t.Errorf("expected schema content in description: %s", text)
	}
}
