package toolweave

import (
	"time"
)

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is a single entry in the conversation sent to the model host.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// PartKind discriminates the parts of a streamed model response.
type PartKind string

const (
	PartText     PartKind = "text"
	PartToolCall PartKind = "tool_call"
)

// Part is one element of a streamed model response: either free text or a
// request to invoke a tool.
type Part struct {
	Kind     PartKind
	Text     string
	ToolCall *ToolCall
}

// NewTextPart creates a text part.
func NewTextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// NewToolCallPart creates a tool-call part.
func NewToolCallPart(call ToolCall) Part {
	c := call
	return Part{Kind: PartToolCall, ToolCall: &c}
}

// ToolCall is a model-requested invocation of a named tool. It is created
// from the model host's streamed output and never mutated afterwards.
type ToolCall struct {
	CallID   string                 `json:"call_id"`
	ToolName string                 `json:"tool_name"`
	Input    map[string]interface{} `json:"input"`
}

// ToolResult is the outcome of a successful tool execution or cache hit.
type ToolResult struct {
	CallID   string        `json:"call_id"`
	ToolName string        `json:"tool_name"`
	Payload  interface{}   `json:"payload"`
	Cached   bool          `json:"cached,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// ToolError records a tool or round failure. Entries are append-only on the
// workflow's error list and never mutated after creation.
type ToolError struct {
	ToolName   string    `json:"tool_name"`
	CallID     string    `json:"call_id,omitempty"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
	ErrorType  ErrorType `json:"error_type,omitempty"`
	Severity   Severity  `json:"severity,omitempty"`
}

// Round captures one request/response cycle with the model host plus the
// tool calls it triggered.
type Round struct {
	ID           string    `json:"id"`
	Number       int       `json:"number"`
	ResponseText string    `json:"response_text"`
	ToolCalls    []ToolCall `json:"tool_calls"`
	Timestamp    time.Time `json:"timestamp"`
}

// StopReason explains why a workflow terminated.
type StopReason string

const (
	StopMaxRounds     StopReason = "maxRoundsReached"
	StopNoToolCalls   StopReason = "noToolCallsProduced"
	StopErrorBudget   StopReason = "errorBudgetExceeded"
	StopCancelled     StopReason = "cancelled"
)

// WorkflowMetadata summarizes a completed (or partially completed) workflow.
type WorkflowMetadata struct {
	TotalRounds    int           `json:"total_rounds"`
	TotalToolCalls int           `json:"total_tool_calls"`
	CacheHits      int           `json:"cache_hits"`
	ExecutionTime  time.Duration `json:"execution_time"`
	StopReason     StopReason    `json:"stop_reason"`
	Success        bool          `json:"success"`
}

// WorkflowResult is the terminal artifact of one orchestrator invocation.
type WorkflowResult struct {
	Rounds   []Round               `json:"rounds"`
	Results  map[string]ToolResult `json:"results"` // keyed by call ID
	Errors   []ToolError           `json:"errors"`
	Summary  string                `json:"summary"`
	Metadata WorkflowMetadata      `json:"metadata"`
}

// ModelOptions carries the per-request options handed to the model host.
type ModelOptions struct {
	// Tools maps tool names to their full schema maps, as produced by
	// Tool.Schema.
	Tools map[string]map[string]interface{}

	// Justification is a short human-readable reason for the request,
	// surfaced by some hosts in their consent UI.
	Justification string
}

// ErrorType is the classified kind of a tool failure.
type ErrorType string

const (
	ErrorToolNotFound      ErrorType = "TOOL_NOT_FOUND"
	ErrorPermissionDenied  ErrorType = "PERMISSION_DENIED"
	ErrorTimeout           ErrorType = "TIMEOUT"
	ErrorInvalidParameters ErrorType = "INVALID_PARAMETERS"
	ErrorNetwork           ErrorType = "NETWORK_ERROR"
	ErrorRateLimit         ErrorType = "RATE_LIMIT"
	ErrorModel             ErrorType = "MODEL_ERROR"
	ErrorUnknown           ErrorType = "UNKNOWN"
)

// Severity grades how serious a classified failure is. Critical is reserved
// for future classifier rules; no current rule emits it.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RecoveryStrategy is the action family chosen for a classified failure.
type RecoveryStrategy string

const (
	StrategyRetry                RecoveryStrategy = "RETRY"
	StrategyFallbackTool         RecoveryStrategy = "FALLBACK_TOOL"
	StrategyParameterCorrection  RecoveryStrategy = "PARAMETER_CORRECTION"
	StrategyGracefulDegradation  RecoveryStrategy = "GRACEFUL_DEGRADATION"
	StrategyUserIntervention     RecoveryStrategy = "USER_INTERVENTION"
	StrategyAbort                RecoveryStrategy = "ABORT"
)

// ErrorClassification is the derived judgement about a tool failure.
// Classifications are memoized by (tool name, lowercased message) and
// immutable once computed.
type ErrorClassification struct {
	Type              ErrorType
	Severity          Severity
	Recoverable       bool
	SuggestedStrategy RecoveryStrategy
	Confidence        float64
	Details           string
	// SuggestedDelay, when non-zero, overrides the dispatcher's exponential
	// backoff before the next attempt (rate-limit classifications set it).
	SuggestedDelay time.Duration
}

// RecoveryContext carries the situational data the recovery engine needs
// alongside a failure.
type RecoveryContext struct {
	ToolName       string
	CallID         string
	Input          map[string]interface{}
	AvailableTools []string
	RetryCount     int
	UserIntent     string
}

// RecoveryAction is the concrete plan generated for a classification. It is
// ephemeral: produced and consumed within one recovery attempt.
type RecoveryAction struct {
	Strategy           RecoveryStrategy
	Delay              time.Duration
	RetryTimeout       time.Duration
	FallbackTools      []string
	Message            string
	RequiresValidation bool
}

// RecoveryResult is the outcome of executing a RecoveryAction. A timestamped
// copy is appended to the engine's bounded per-tool history.
type RecoveryResult struct {
	Strategy       RecoveryStrategy
	Success        bool
	Continue       bool
	SubstituteTool string
	Message        string
	Timestamp      time.Time
}

// ToolCategory is the inferred functional grouping of a tool.
type ToolCategory string

const (
	CategoryFileOperations ToolCategory = "file-operations"
	CategoryCodeAnalysis   ToolCategory = "code-analysis"
	CategorySearchQuery    ToolCategory = "search-query"
	CategoryDevelopment    ToolCategory = "development"
	CategoryDocumentation  ToolCategory = "documentation"
	CategoryVersionControl ToolCategory = "version-control"
	CategoryNetworkAPI     ToolCategory = "network-api"
	CategoryDataProcessing ToolCategory = "data-processing"
	CategoryUtility        ToolCategory = "utility"
)

// ToolComplexity estimates how involved a tool's input contract is.
type ToolComplexity string

const (
	ComplexityLow    ToolComplexity = "low"
	ComplexityMedium ToolComplexity = "medium"
	ComplexityHigh   ToolComplexity = "high"
)

// PerformanceProfile is a heuristic estimate of a tool's runtime behavior.
type PerformanceProfile struct {
	Speed         string // "fast", "medium", "slow"
	ResourceUsage string // "low", "medium", "high"
}

// ReliabilityProfile is a heuristic estimate of how often a tool fails.
type ReliabilityProfile struct {
	ErrorRate float64 // expected fraction of failing invocations
	Rating    string  // "high", "medium", "low"
}

// ToolCapability is the discovery pass's profile of one tool. It is computed
// once per pass and read-only until the next pass replaces it.
type ToolCapability struct {
	Name         string
	Description  string
	Category     ToolCategory
	InputTypes   []string
	OutputTypes  []string
	Complexity   ToolComplexity
	Performance  PerformanceProfile
	Reliability  ReliabilityProfile
	Dependencies []string
	Capabilities []string
	Tags         []string
}

// ToolMatch is one entry of a task-relevance ranking.
type ToolMatch struct {
	Name      string
	Score     float64
	Reasoning string
}

// CacheStats is a snapshot of the result cache's observable state.
type CacheStats struct {
	Size             int
	OldestInsertedAt time.Time
	Hits             uint64
	Misses           uint64
}
