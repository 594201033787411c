package recovery

import (
	"context"
	"testing"
	"time"

	toolweave "github.com/ZanzyTHEbar/toolweave-genkit"
)

type fakeDiscovery struct {
	fallbacks []string
}

func (f *fakeDiscovery) Refresh(names []string, tools map[string]toolweave.Tool) {}
func (f *fakeDiscovery) Capability(name string) (toolweave.ToolCapability, bool) {
	return toolweave.ToolCapability{}, false
}
func (f *fakeDiscovery) CompatibleTools(name string) []string { return nil }
func (f *fakeDiscovery) FallbackCandidates(toolName string, max int) []string {
	if len(f.fallbacks) > max {
		return f.fallbacks[:max]
	}
	return f.fallbacks
}
func (f *fakeDiscovery) ToolsForTask(text string) []toolweave.ToolMatch { return nil }

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func testConfig() toolweave.Config {
	cfg := toolweave.DefaultConfig()
	cfg.ToolTimeout = 30 * time.Second
	cfg.MaxToolRounds = 5
	cfg.ErrorRetryAttempts = 3
	return cfg
}

func TestClassify_TimeoutMessage(t *testing.T) {
	engine := NewEngine(&fakeDiscovery{}, testConfig())

	for _, toolName := range []string{"read_file", "search", "anything"} {
		class := engine.Classify(toolweave.ToolError{
			ToolName: toolName,
			Message:  "Request timed out after 30s",
		}, toolweave.RecoveryContext{ToolName: toolName})

		if class.Type != toolweave.ErrorTimeout {
			t.Errorf("tool %s: expected TIMEOUT, got %s", toolName, class.Type)
		}
		if class.SuggestedStrategy != toolweave.StrategyRetry {
			t.Errorf("tool %s: expected RETRY, got %s", toolName, class.SuggestedStrategy)
		}
		if class.Confidence != 0.8 {
			t.Errorf("tool %s: expected confidence 0.8, got %v", toolName, class.Confidence)
		}
	}
}

func TestClassify_FirstMatchWinsInOrder(t *testing.T) {
	engine := NewEngine(&fakeDiscovery{}, testConfig())

	// "tool unavailable" matches the TOOL_NOT_FOUND rule before anything else.
	class := engine.Classify(toolweave.ToolError{
		ToolName: "x",
		Message:  "tool unavailable: connection failed",
	}, toolweave.RecoveryContext{})
	if class.Type != toolweave.ErrorToolNotFound {
		t.Errorf("expected TOOL_NOT_FOUND, got %s", class.Type)
	}
}

func TestClassify_MemoizedAndStable(t *testing.T) {
	engine := NewEngine(&fakeDiscovery{}, testConfig())
	toolErr := toolweave.ToolError{ToolName: "search", Message: "RATE LIMIT exceeded"}

	first := engine.Classify(toolErr, toolweave.RecoveryContext{})
	second := engine.Classify(toolErr, toolweave.RecoveryContext{})

	if first != second {
		t.Errorf("expected identical classifications across calls")
	}
	if first.Type != toolweave.ErrorRateLimit {
		t.Errorf("expected RATE_LIMIT, got %s", first.Type)
	}
	if first.SuggestedDelay != 5000*time.Millisecond {
		t.Errorf("expected 5000ms suggested delay, got %v", first.SuggestedDelay)
	}
}

func TestClassify_UnknownDefault(t *testing.T) {
	engine := NewEngine(&fakeDiscovery{}, testConfig())

	class := engine.Classify(toolweave.ToolError{
		ToolName: "x",
		Message:  "something completely unexpected",
	}, toolweave.RecoveryContext{})

	if class.Type != toolweave.ErrorUnknown {
		t.Errorf("expected UNKNOWN, got %s", class.Type)
	}
	if class.Recoverable {
		t.Errorf("expected unknown errors to be non-recoverable")
	}
	if class.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5, got %v", class.Confidence)
	}
}

func TestGenerateAction_RetryDelays(t *testing.T) {
	engine := NewEngine(&fakeDiscovery{}, testConfig())
	class := toolweave.ErrorClassification{
		Type:              toolweave.ErrorTimeout,
		SuggestedStrategy: toolweave.StrategyRetry,
		Recoverable:       true,
	}

	action := engine.GenerateAction(class, toolweave.RecoveryContext{ToolName: "t", RetryCount: 2})
	if action.Delay != 4*time.Second {
		t.Errorf("expected 4s delay for retry count 2, got %v", action.Delay)
	}
	if action.RetryTimeout != 45*time.Second {
		t.Errorf("expected retry timeout 45s, got %v", action.RetryTimeout)
	}
}

func TestGenerateAction_RetryUsesSuggestedDelay(t *testing.T) {
	engine := NewEngine(&fakeDiscovery{}, testConfig())
	class := toolweave.ErrorClassification{
		Type:              toolweave.ErrorRateLimit,
		SuggestedStrategy: toolweave.StrategyRetry,
		SuggestedDelay:    5000 * time.Millisecond,
	}

	action := engine.GenerateAction(class, toolweave.RecoveryContext{ToolName: "t", RetryCount: 1})
	if action.Delay != 5000*time.Millisecond {
		t.Errorf("expected suggested delay to win, got %v", action.Delay)
	}
}

func TestGenerateAction_FallbackCandidates(t *testing.T) {
	discovery := &fakeDiscovery{fallbacks: []string{"read_text", "read_binary"}}
	engine := NewEngine(discovery, testConfig())
	class := toolweave.ErrorClassification{
		Type:              toolweave.ErrorToolNotFound,
		SuggestedStrategy: toolweave.StrategyFallbackTool,
	}

	action := engine.GenerateAction(class, toolweave.RecoveryContext{ToolName: "read_file"})
	if len(action.FallbackTools) != 2 {
		t.Fatalf("expected 2 fallback tools, got %d", len(action.FallbackTools))
	}
	if action.FallbackTools[0] != "read_text" {
		t.Errorf("expected read_text first, got %s", action.FallbackTools[0])
	}
}

func TestExecuteAction_FallbackSelectsFirst(t *testing.T) {
	engine := NewEngine(&fakeDiscovery{}, testConfig())
	action := toolweave.RecoveryAction{
		Strategy:      toolweave.StrategyFallbackTool,
		FallbackTools: []string{"read_text", "read_binary"},
	}

	result := engine.ExecuteAction(context.Background(), action, toolweave.RecoveryContext{ToolName: "read_file"})
	if result.SubstituteTool != "read_text" {
		t.Errorf("expected read_text substitute, got %s", result.SubstituteTool)
	}
	if !result.Continue {
		t.Errorf("expected fallback to allow continuation")
	}
}

func TestExecuteAction_InterventionHalts(t *testing.T) {
	engine := NewEngine(&fakeDiscovery{}, testConfig())

	for _, strategy := range []toolweave.RecoveryStrategy{toolweave.StrategyUserIntervention, toolweave.StrategyAbort} {
		result := engine.ExecuteAction(context.Background(), toolweave.RecoveryAction{Strategy: strategy}, toolweave.RecoveryContext{ToolName: "t"})
		if result.Continue {
			t.Errorf("strategy %s: expected halt", strategy)
		}
	}
}

func TestExecuteAction_HistoryBounded(t *testing.T) {
	engine := NewEngine(&fakeDiscovery{}, testConfig())
	action := toolweave.RecoveryAction{Strategy: toolweave.StrategyGracefulDegradation}

	for i := 0; i < 15; i++ {
		engine.ExecuteAction(context.Background(), action, toolweave.RecoveryContext{ToolName: "t"})
	}

	engine.historyMutex.Lock()
	defer engine.historyMutex.Unlock()
	if len(engine.history["t"]) != maxHistoryPerTool {
		t.Errorf("expected history bounded to %d, got %d", maxHistoryPerTool, len(engine.history["t"]))
	}
}

func TestShouldContinueWorkflow(t *testing.T) {
	engine := NewEngine(&fakeDiscovery{}, testConfig())
	rctx := toolweave.RecoveryContext{ToolName: "t"}

	timeoutErr := toolweave.ToolError{ToolName: "t", Message: "operation timed out"}
	if !engine.ShouldContinueWorkflow(timeoutErr, rctx, 1) {
		t.Errorf("expected continuation after a recoverable failure")
	}

	// Error total above the round cap stops the workflow.
	if engine.ShouldContinueWorkflow(timeoutErr, rctx, 6) {
		t.Errorf("expected stop when total errors exceed the round cap")
	}

	// Non-recoverable classifications stop the workflow.
	deniedErr := toolweave.ToolError{ToolName: "t", Message: "permission denied"}
	if engine.ShouldContinueWorkflow(deniedErr, rctx, 1) {
		t.Errorf("expected stop for a non-recoverable failure")
	}
}

func TestShouldContinueWorkflow_ThrottlesRepeatedFailures(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	engine := NewEngine(&fakeDiscovery{}, testConfig(), WithClock(clock))
	rctx := toolweave.RecoveryContext{ToolName: "t"}
	timeoutErr := toolweave.ToolError{ToolName: "t", Message: "operation timed out"}

	// Four failed recoveries inside the window exceed errorRetryAttempts=3.
	for i := 0; i < 4; i++ {
		engine.appendHistory("t", toolweave.RecoveryResult{Success: false, Timestamp: clock.now})
	}
	if engine.ShouldContinueWorkflow(timeoutErr, rctx, 1) {
		t.Errorf("expected throttling after repeated failed recoveries")
	}

	// Failures outside the window no longer count.
	clock.now = clock.now.Add(6 * time.Minute)
	if !engine.ShouldContinueWorkflow(timeoutErr, rctx, 1) {
		t.Errorf("expected continuation once old failures age out")
	}
}

func TestSuggestions_KnownAndUnknownTypes(t *testing.T) {
	engine := NewEngine(&fakeDiscovery{}, testConfig())

	if len(engine.Suggestions(toolweave.ErrorTimeout)) == 0 {
		t.Errorf("expected suggestions for TIMEOUT")
	}
	if len(engine.Suggestions(toolweave.ErrorType("nonsense"))) == 0 {
		t.Errorf("expected fallback suggestions for unknown type")
	}
}
