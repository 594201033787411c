// Package recovery implements failure classification and the recovery
// protocol for tool calls: retry with backoff, fallback-tool substitution,
// parameter correction, graceful degradation, and escalation.
package recovery

import (
	"strings"
	"time"

	toolweave "github.com/ZanzyTHEbar/toolweave-genkit"
)

// classifierRule pairs a keyword predicate with the classification it yields.
// Rules are evaluated in order; the first match wins.
type classifierRule struct {
	keywords       []string
	classification toolweave.ErrorClassification
}

// rateLimitDelay is the suggested wait before retrying a throttled call. It
// overrides the dispatcher's exponential backoff.
const rateLimitDelay = 5000 * time.Millisecond

// classifierRules is the fixed, ordered rule table. Keyword matching is
// case-insensitive substring matching against the error message.
var classifierRules = []classifierRule{
	{
		keywords: []string{"tool not found", "unknown tool", "tool does not exist", "no such tool", "tool unavailable", "not available"},
		classification: toolweave.ErrorClassification{
			Type:              toolweave.ErrorToolNotFound,
			Severity:          toolweave.SeverityMedium,
			Recoverable:       true,
			SuggestedStrategy: toolweave.StrategyFallbackTool,
			Confidence:        0.9,
			Details:           "The requested tool is not registered or is unavailable.",
		},
	},
	{
		keywords: []string{"permission denied", "access denied", "unauthorized", "forbidden", "eacces", "eperm"},
		classification: toolweave.ErrorClassification{
			Type:              toolweave.ErrorPermissionDenied,
			Severity:          toolweave.SeverityHigh,
			Recoverable:       false,
			SuggestedStrategy: toolweave.StrategyUserIntervention,
			Confidence:        0.85,
			Details:           "The tool was denied access to a required resource.",
		},
	},
	{
		keywords: []string{"timeout", "timed out", "deadline exceeded", "time limit", "took too long"},
		classification: toolweave.ErrorClassification{
			Type:              toolweave.ErrorTimeout,
			Severity:          toolweave.SeverityMedium,
			Recoverable:       true,
			SuggestedStrategy: toolweave.StrategyRetry,
			Confidence:        0.8,
			Details:           "The tool did not complete within its allotted time.",
		},
	},
	{
		keywords: []string{"invalid parameter", "invalid argument", "bad request", "schema validation", "missing required", "parameter error"},
		classification: toolweave.ErrorClassification{
			Type:              toolweave.ErrorInvalidParameters,
			Severity:          toolweave.SeverityLow,
			Recoverable:       true,
			SuggestedStrategy: toolweave.StrategyParameterCorrection,
			Confidence:        0.7,
			Details:           "The tool rejected its input arguments.",
		},
	},
	{
		keywords: []string{"network error", "connection failed", "host unreachable", "dns", "enotfound", "econnrefused"},
		classification: toolweave.ErrorClassification{
			Type:              toolweave.ErrorNetwork,
			Severity:          toolweave.SeverityMedium,
			Recoverable:       true,
			SuggestedStrategy: toolweave.StrategyRetry,
			Confidence:        0.75,
			Details:           "A network operation required by the tool failed.",
		},
	},
	{
		keywords: []string{"rate limit", "too many requests", "quota exceeded", "throttled", "rate exceeded"},
		classification: toolweave.ErrorClassification{
			Type:              toolweave.ErrorRateLimit,
			Severity:          toolweave.SeverityLow,
			Recoverable:       true,
			SuggestedStrategy: toolweave.StrategyRetry,
			Confidence:        0.9,
			Details:           "The tool's backing service is throttling requests.",
			SuggestedDelay:    rateLimitDelay,
		},
	},
	{
		keywords: []string{"model error", "language model", "ai service", "openai error", "copilot error", "model unavailable"},
		classification: toolweave.ErrorClassification{
			Type:              toolweave.ErrorModel,
			Severity:          toolweave.SeverityHigh,
			Recoverable:       true,
			SuggestedStrategy: toolweave.StrategyGracefulDegradation,
			Confidence:        0.8,
			Details:           "The language model service reported a failure.",
		},
	},
}

// unknownClassification is the default when no rule matches.
var unknownClassification = toolweave.ErrorClassification{
	Type:              toolweave.ErrorUnknown,
	Severity:          toolweave.SeverityMedium,
	Recoverable:       false,
	SuggestedStrategy: toolweave.StrategyGracefulDegradation,
	Confidence:        0.5,
	Details:           "The failure did not match any known error pattern.",
}

// classifyMessage evaluates the rule table against a lower-cased message.
func classifyMessage(message string) toolweave.ErrorClassification {
	lowered := strings.ToLower(message)
	for _, rule := range classifierRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.classification
			}
		}
	}
	return unknownClassification
}

// suggestionsByType maps each error type to remediation hints surfaced to the
// user alongside recovery notices.
var suggestionsByType = map[toolweave.ErrorType][]string{
	toolweave.ErrorToolNotFound: {
		"Check that the tool name is spelled correctly.",
		"List the registered tools to see what is available.",
		"A similar tool may be substituted automatically.",
	},
	toolweave.ErrorPermissionDenied: {
		"Verify the credentials or access rights of the current session.",
		"Check file or resource permissions for the target of the operation.",
	},
	toolweave.ErrorTimeout: {
		"The operation may succeed on retry if the delay was transient.",
		"Consider raising the tool timeout for slow operations.",
		"Break large requests into smaller ones.",
	},
	toolweave.ErrorInvalidParameters: {
		"Review the tool's schema for required parameters.",
		"Check parameter types and value ranges.",
	},
	toolweave.ErrorNetwork: {
		"Check network connectivity to the tool's backing service.",
		"Verify hostnames and ports in the tool configuration.",
		"The operation may succeed on retry.",
	},
	toolweave.ErrorRateLimit: {
		"Wait before retrying; the service is throttling requests.",
		"Reduce the frequency of calls to this tool.",
	},
	toolweave.ErrorModel: {
		"The model service may be temporarily degraded; try again later.",
		"The workflow can continue without this tool.",
	},
	toolweave.ErrorUnknown: {
		"Inspect the raw error message for clues.",
		"Enable debug mode for a detailed workflow summary.",
	},
}
