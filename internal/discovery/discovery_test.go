package discovery

import (
	"context"
	"testing"

	toolweave "github.com/ZanzyTHEbar/toolweave-genkit"
)

type stubTool struct {
	name   string
	schema map[string]interface{}
}

func (s *stubTool) Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}
func (s *stubTool) Schema() map[string]interface{}              { return s.schema }
func (s *stubTool) Validate(input map[string]interface{}) error { return nil }
func (s *stubTool) Name() string                                { return s.name }

func newStubTool(name, description string, params ...string) *stubTool {
	parameters := make(map[string]interface{}, len(params))
	for _, p := range params {
		parameters[p] = "string"
	}
	return &stubTool{
		name: name,
		schema: map[string]interface{}{
			"description": description,
			"parameters":  parameters,
			"returns":     "result map",
		},
	}
}

func refreshed(t *testing.T, stubs ...*stubTool) *Registry {
	t.Helper()
	names := make([]string, 0, len(stubs))
	tools := make(map[string]toolweave.Tool, len(stubs))
	for _, s := range stubs {
		names = append(names, s.name)
		tools[s.name] = s
	}
	registry := NewRegistry()
	registry.Refresh(names, tools)
	return registry
}

func TestRefresh_CategoryInference(t *testing.T) {
	registry := refreshed(t,
		newStubTool("read_file", "Reads a file from the workspace", "path"),
		newStubTool("web_fetch", "Fetch a URL over HTTP", "url"),
		newStubTool("git_status", "Shows git repository status"),
		newStubTool("misc", "Does something unclassifiable"),
	)

	cases := map[string]toolweave.ToolCategory{
		"read_file":  toolweave.CategoryFileOperations,
		"web_fetch":  toolweave.CategoryNetworkAPI,
		"git_status": toolweave.CategoryVersionControl,
		"misc":       toolweave.CategoryUtility,
	}
	for name, want := range cases {
		capability, found := registry.Capability(name)
		if !found {
			t.Fatalf("capability for %s not found", name)
		}
		if capability.Category != want {
			t.Errorf("%s: expected category %s, got %s", name, want, capability.Category)
		}
	}
}

func TestRefresh_CategoryPriorityOrder(t *testing.T) {
	// Both "file" and "search" match; file-operations has higher priority.
	registry := refreshed(t, newStubTool("tool", "search within a file", "q"))

	capability, _ := registry.Capability("tool")
	if capability.Category != toolweave.CategoryFileOperations {
		t.Errorf("expected file-operations to win by priority, got %s", capability.Category)
	}
}

func TestRefresh_ComplexityBuckets(t *testing.T) {
	registry := refreshed(t,
		newStubTool("low", "x", "a", "b"),
		newStubTool("medium", "x", "a", "b", "c", "d", "e"),
		newStubTool("high", "x", "a", "b", "c", "d", "e", "f"),
	)

	cases := map[string]toolweave.ToolComplexity{
		"low":    toolweave.ComplexityLow,
		"medium": toolweave.ComplexityMedium,
		"high":   toolweave.ComplexityHigh,
	}
	for name, want := range cases {
		capability, _ := registry.Capability(name)
		if capability.Complexity != want {
			t.Errorf("%s: expected complexity %s, got %s", name, want, capability.Complexity)
		}
	}
}

func TestRefresh_PerformanceAndReliability(t *testing.T) {
	registry := refreshed(t, newStubTool("web_fetch", "Fetch a URL over HTTP", "url"))

	capability, _ := registry.Capability("web_fetch")
	if capability.Performance.Speed != "slow" {
		t.Errorf("expected network tools to profile as slow, got %s", capability.Performance.Speed)
	}
	if capability.Reliability.ErrorRate != 0.15 {
		t.Errorf("expected error rate 0.15, got %v", capability.Reliability.ErrorRate)
	}
}

func TestRefresh_DependencyAndCapabilityTags(t *testing.T) {
	registry := refreshed(t, newStubTool("git_log", "Read git commit history from the repository"))

	capability, _ := registry.Capability("git_log")
	if !contains(capability.Dependencies, "git") {
		t.Errorf("expected git dependency tag, got %v", capability.Dependencies)
	}
	if !contains(capability.Capabilities, "read") {
		t.Errorf("expected read capability tag, got %v", capability.Capabilities)
	}
}

func TestCompatibleTools(t *testing.T) {
	registry := refreshed(t,
		newStubTool("read_file", "Reads a file", "path"),
		newStubTool("write_file", "Writes a file", "path", "content"),
		newStubTool("lint_code", "Analyze source for lint problems", "target"),
		newStubTool("web_fetch", "Fetch a URL over HTTP", "url"),
	)

	compatible := registry.CompatibleTools("read_file")
	if !contains(compatible, "write_file") {
		t.Errorf("expected same-category tool to be compatible: %v", compatible)
	}
	if !contains(compatible, "lint_code") {
		t.Errorf("expected complementary-category tool to be compatible: %v", compatible)
	}
	if contains(compatible, "web_fetch") {
		t.Errorf("expected unrelated category to be incompatible: %v", compatible)
	}
}

func TestFallbackCandidates_NameSimilarity(t *testing.T) {
	registry := refreshed(t,
		newStubTool("read_file", "Reads a file", "path"),
		newStubTool("read_files", "Reads several files", "paths"),
		newStubTool("web_fetch", "Download a remote URL over the network", "url"),
	)

	candidates := registry.FallbackCandidates("read_file", 3)
	if !contains(candidates, "read_files") {
		t.Errorf("expected near-identical name as candidate: %v", candidates)
	}
	if contains(candidates, "web_fetch") {
		t.Errorf("expected dissimilar tool excluded: %v", candidates)
	}
}

func TestFallbackCandidates_RegistrationOrderAndCap(t *testing.T) {
	registry := refreshed(t,
		newStubTool("tool_a", "shared description of the operation"),
		newStubTool("tool_b", "shared description of the operation"),
		newStubTool("tool_c", "shared description of the operation"),
		newStubTool("tool_d", "shared description of the operation"),
		newStubTool("tool_e", "shared description of the operation"),
	)

	candidates := registry.FallbackCandidates("tool_c", 3)
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	// Registration order, not score order, and never the tool itself.
	want := []string{"tool_a", "tool_b", "tool_d"}
	for i, name := range want {
		if candidates[i] != name {
			t.Errorf("position %d: expected %s, got %s", i, name, candidates[i])
		}
	}
}

func TestToolsForTask_RanksAndFilters(t *testing.T) {
	registry := refreshed(t,
		newStubTool("read_file", "Reads a file from the workspace", "path"),
		newStubTool("web_fetch", "Fetch a URL over HTTP", "url"),
	)

	matches := registry.ToolsForTask("read the config file from the workspace")
	if len(matches) == 0 {
		t.Fatalf("expected at least one match")
	}
	if matches[0].Name != "read_file" {
		t.Errorf("expected read_file ranked first, got %s", matches[0].Name)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("expected descending score order")
		}
	}
	for _, match := range matches {
		if match.Score <= minTaskScore {
			t.Errorf("expected weak matches filtered, got %s at %v", match.Name, match.Score)
		}
		if match.Reasoning == "" {
			t.Errorf("expected a reasoning string for %s", match.Name)
		}
	}
}

func TestStringSimilarity(t *testing.T) {
	if got := stringSimilarity("read_file", "read_file"); got != 1.0 {
		t.Errorf("identical strings: expected 1.0, got %v", got)
	}
	if got := stringSimilarity("read_file", "read_files"); got <= 0.5 {
		t.Errorf("near-identical strings: expected > 0.5, got %v", got)
	}
	if got := stringSimilarity("read_file", "zzz"); got > 0.3 {
		t.Errorf("dissimilar strings: expected low similarity, got %v", got)
	}
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
