// Package discovery profiles registered tools: it infers categories,
// complexity, performance and reliability estimates, dependency and
// capability tags, and builds the compatibility structure used for
// fallback-tool selection and task-relevance ranking.
package discovery

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	toolweave "github.com/ZanzyTHEbar/toolweave-genkit"
)

// categoryRule maps keyword groups to a category. Rules are evaluated in
// fixed priority order; the first group with a match wins.
type categoryRule struct {
	category toolweave.ToolCategory
	keywords []string
}

var categoryRules = []categoryRule{
	{toolweave.CategoryFileOperations, []string{"file", "read", "write", "directory", "folder", "path"}},
	{toolweave.CategoryCodeAnalysis, []string{"analyze", "analysis", "lint", "parse", "symbol", "ast", "inspect"}},
	{toolweave.CategorySearchQuery, []string{"search", "find", "query", "lookup", "grep", "match"}},
	{toolweave.CategoryDevelopment, []string{"build", "compile", "test", "debug", "run", "execute"}},
	{toolweave.CategoryDocumentation, []string{"doc", "documentation", "readme", "comment", "describe"}},
	{toolweave.CategoryVersionControl, []string{"git", "commit", "branch", "diff", "merge", "repository"}},
	{toolweave.CategoryNetworkAPI, []string{"http", "api", "request", "fetch", "url", "network", "web"}},
	{toolweave.CategoryDataProcessing, []string{"data", "json", "csv", "transform", "convert", "format"}},
}

// complementaryPairs lists category pairs considered substitutable or
// complementary for fallback purposes, beyond same-category matches.
var complementaryPairs = [][2]toolweave.ToolCategory{
	{toolweave.CategoryFileOperations, toolweave.CategoryCodeAnalysis},
	{toolweave.CategorySearchQuery, toolweave.CategoryFileOperations},
	{toolweave.CategoryCodeAnalysis, toolweave.CategoryDevelopment},
	{toolweave.CategoryVersionControl, toolweave.CategoryDevelopment},
	{toolweave.CategoryNetworkAPI, toolweave.CategoryDataProcessing},
}

var dependencyKeywords = map[string][]string{
	"git":       {"git", "commit", "branch", "repository"},
	"node":      {"node", "npm", "javascript", "typescript"},
	"python":    {"python", "pip", "conda"},
	"network":   {"http", "url", "api", "fetch", "request", "web"},
	"workspace": {"file", "directory", "workspace", "project", "folder"},
}

var capabilityKeywords = map[string][]string{
	"read":      {"read", "get", "fetch", "load", "view"},
	"write":     {"write", "create", "save", "update", "set"},
	"analyze":   {"analyze", "analysis", "inspect", "lint", "evaluate"},
	"search":    {"search", "find", "query", "lookup", "grep"},
	"transform": {"transform", "convert", "format", "parse"},
	"validate":  {"validate", "check", "verify", "test"},
	"execute":   {"execute", "run", "invoke", "launch"},
	"monitor":   {"monitor", "watch", "observe", "track"},
}

// capabilityOrder fixes the tag emission order, keeping profiles stable
// across passes.
var capabilityOrder = []string{"read", "write", "analyze", "search", "transform", "validate", "execute", "monitor"}

var dependencyOrder = []string{"git", "node", "python", "network", "workspace"}

// minTaskScore filters task-relevance matches below this threshold.
const minTaskScore = 0.3

// Registry is the default Discovery implementation. A discovery pass
// (Refresh) replaces all computed state wholesale; queries between passes see
// a consistent snapshot.
type Registry struct {
	mutex         sync.RWMutex
	order         []string
	capabilities  map[string]toolweave.ToolCapability
	compatibility map[string][]string
}

// NewRegistry creates an empty discovery registry.
func NewRegistry() *Registry {
	return &Registry{
		capabilities:  make(map[string]toolweave.ToolCapability),
		compatibility: make(map[string][]string),
	}
}

// Refresh runs a discovery pass over the given tools, replacing all
// previously computed capabilities and the compatibility matrix. The names
// slice fixes registration order for everything that is order-sensitive.
func (r *Registry) Refresh(names []string, tools map[string]toolweave.Tool) {
	capabilities := make(map[string]toolweave.ToolCapability, len(names))
	order := make([]string, 0, len(names))

	for _, name := range names {
		tool, exists := tools[name]
		if !exists {
			continue
		}
		order = append(order, name)
		capabilities[name] = profileTool(name, tool)
	}

	compatibility := buildCompatibilityMatrix(order, capabilities)

	r.mutex.Lock()
	r.order = order
	r.capabilities = capabilities
	r.compatibility = compatibility
	r.mutex.Unlock()
}

// profileTool computes the capability profile for one tool from its name and
// schema.
func profileTool(name string, tool toolweave.Tool) toolweave.ToolCapability {
	schema := tool.Schema()
	description, _ := schema["description"].(string)
	text := strings.ToLower(name + " " + description)

	category := inferCategory(text)
	inputCount := countInputProperties(schema)

	capability := toolweave.ToolCapability{
		Name:         name,
		Description:  description,
		Category:     category,
		InputTypes:   inputPropertyNames(schema),
		OutputTypes:  outputTypes(schema),
		Complexity:   inferComplexity(inputCount),
		Performance:  inferPerformance(category),
		Reliability:  inferReliability(category),
		Dependencies: matchTags(text, dependencyOrder, dependencyKeywords),
		Capabilities: matchTags(text, capabilityOrder, capabilityKeywords),
	}
	capability.Tags = append(append([]string{}, string(category)), capability.Capabilities...)
	return capability
}

func inferCategory(text string) toolweave.ToolCategory {
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(text, keyword) {
				return rule.category
			}
		}
	}
	return toolweave.CategoryUtility
}

func inferComplexity(inputCount int) toolweave.ToolComplexity {
	switch {
	case inputCount <= 2:
		return toolweave.ComplexityLow
	case inputCount <= 5:
		return toolweave.ComplexityMedium
	default:
		return toolweave.ComplexityHigh
	}
}

func inferPerformance(category toolweave.ToolCategory) toolweave.PerformanceProfile {
	switch category {
	case toolweave.CategoryNetworkAPI:
		return toolweave.PerformanceProfile{Speed: "slow", ResourceUsage: "medium"}
	case toolweave.CategoryFileOperations:
		return toolweave.PerformanceProfile{Speed: "medium", ResourceUsage: "low"}
	case toolweave.CategoryCodeAnalysis, toolweave.CategoryDataProcessing:
		return toolweave.PerformanceProfile{Speed: "medium", ResourceUsage: "high"}
	default:
		return toolweave.PerformanceProfile{Speed: "fast", ResourceUsage: "low"}
	}
}

func inferReliability(category toolweave.ToolCategory) toolweave.ReliabilityProfile {
	switch category {
	case toolweave.CategoryNetworkAPI:
		return toolweave.ReliabilityProfile{ErrorRate: 0.15, Rating: "medium"}
	case toolweave.CategoryFileOperations:
		return toolweave.ReliabilityProfile{ErrorRate: 0.05, Rating: "high"}
	default:
		return toolweave.ReliabilityProfile{ErrorRate: 0.02, Rating: "high"}
	}
}

// countInputProperties returns the number of declared input parameters.
func countInputProperties(schema map[string]interface{}) int {
	params, ok := schema["parameters"].(map[string]interface{})
	if !ok {
		return 0
	}
	// Either a flat parameter map or a JSON-schema style "properties" block.
	if props, ok := params["properties"].(map[string]interface{}); ok {
		return len(props)
	}
	return len(params)
}

func inputPropertyNames(schema map[string]interface{}) []string {
	params, ok := schema["parameters"].(map[string]interface{})
	if !ok {
		return nil
	}
	source := params
	if props, ok := params["properties"].(map[string]interface{}); ok {
		source = props
	}
	names := make([]string, 0, len(source))
	for name := range source {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func outputTypes(schema map[string]interface{}) []string {
	if returns, ok := schema["returns"].(string); ok && returns != "" {
		return []string{returns}
	}
	return nil
}

func matchTags(text string, order []string, groups map[string][]string) []string {
	var tags []string
	for _, tag := range order {
		for _, keyword := range groups[tag] {
			if strings.Contains(text, keyword) {
				tags = append(tags, tag)
				break
			}
		}
	}
	return tags
}

// buildCompatibilityMatrix marks two tools compatible when they share a
// category or their categories form a complementary pair.
func buildCompatibilityMatrix(order []string, capabilities map[string]toolweave.ToolCapability) map[string][]string {
	matrix := make(map[string][]string, len(order))
	for _, a := range order {
		var compatible []string
		for _, b := range order {
			if a == b {
				continue
			}
			if categoriesCompatible(capabilities[a].Category, capabilities[b].Category) {
				compatible = append(compatible, b)
			}
		}
		matrix[a] = compatible
	}
	return matrix
}

func categoriesCompatible(a, b toolweave.ToolCategory) bool {
	if a == b {
		return true
	}
	for _, pair := range complementaryPairs {
		if (pair[0] == a && pair[1] == b) || (pair[0] == b && pair[1] == a) {
			return true
		}
	}
	return false
}

// Capability returns the profile computed for a tool in the last pass.
func (r *Registry) Capability(name string) (toolweave.ToolCapability, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	capability, found := r.capabilities[name]
	return capability, found
}

// CompatibleTools returns the names considered substitutable or complementary
// for the given tool.
func (r *Registry) CompatibleTools(name string) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append([]string(nil), r.compatibility[name]...)
}

// FallbackCandidates returns up to max tools similar enough to substitute for
// the given one. Candidates qualify by name similarity above 0.5 or
// description similarity above 0.3 and are returned in registration order,
// not ranked by score.
func (r *Registry) FallbackCandidates(toolName string, max int) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	target, found := r.capabilities[toolName]
	targetDescription := ""
	if found {
		targetDescription = target.Description
	}

	var candidates []string
	for _, name := range r.order {
		if name == toolName {
			continue
		}
		if len(candidates) >= max {
			break
		}
		capability := r.capabilities[name]
		if stringSimilarity(toolName, name) > 0.5 ||
			(targetDescription != "" && stringSimilarity(targetDescription, capability.Description) > 0.3) {
			candidates = append(candidates, name)
		}
	}
	return candidates
}

// ToolsForTask ranks tools by relevance to a free-text task description.
// The score blends a name match, word overlap with the description, and
// capability-tag matches, then filters out weak matches.
func (r *Registry) ToolsForTask(text string) []toolweave.ToolMatch {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	taskLower := strings.ToLower(text)
	taskWords := fieldSet(taskLower)

	var matches []toolweave.ToolMatch
	for _, name := range r.order {
		capability := r.capabilities[name]

		nameScore := 0.0
		if nameMatchesTask(name, taskLower) {
			nameScore = 1.0
		}
		overlapScore := wordOverlap(taskWords, fieldSet(strings.ToLower(capability.Description)))
		capabilityScore := capabilityMatch(taskLower, capability.Capabilities)

		score := 0.4*nameScore + 0.3*overlapScore + 0.3*capabilityScore
		if score > 1.0 {
			score = 1.0
		}
		if score <= minTaskScore {
			continue
		}

		matches = append(matches, toolweave.ToolMatch{
			Name:      name,
			Score:     score,
			Reasoning: matchReasoning(name, capability, nameScore, overlapScore, capabilityScore),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// nameMatchesTask reports whether the tool name (underscores treated as
// spaces) appears in the task text or vice versa.
func nameMatchesTask(name, taskLower string) bool {
	nameLower := strings.ToLower(name)
	spaced := strings.ReplaceAll(nameLower, "_", " ")
	if strings.Contains(taskLower, nameLower) || strings.Contains(taskLower, spaced) {
		return true
	}
	for _, part := range strings.FieldsFunc(nameLower, func(r rune) bool { return r == '_' || r == '-' }) {
		if len(part) > 2 && strings.Contains(taskLower, part) {
			return true
		}
	}
	return false
}

func fieldSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(text) {
		set[strings.Trim(word, ".,!?:;()'\"")] = struct{}{}
	}
	delete(set, "")
	return set
}

// wordOverlap is the fraction of description words also present in the task.
func wordOverlap(taskWords, descWords map[string]struct{}) float64 {
	if len(descWords) == 0 {
		return 0
	}
	shared := 0
	for word := range descWords {
		if _, found := taskWords[word]; found {
			shared++
		}
	}
	return float64(shared) / float64(len(descWords))
}

// capabilityMatch is the fraction of the tool's capability tags whose keyword
// groups appear in the task text.
func capabilityMatch(taskLower string, capabilities []string) float64 {
	if len(capabilities) == 0 {
		return 0
	}
	matched := 0
	for _, capability := range capabilities {
		for _, keyword := range capabilityKeywords[capability] {
			if strings.Contains(taskLower, keyword) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(capabilities))
}

func matchReasoning(name string, capability toolweave.ToolCapability, nameScore, overlapScore, capabilityScore float64) string {
	var reasons []string
	if nameScore > 0 {
		reasons = append(reasons, "name matches the task")
	}
	if overlapScore > 0 {
		reasons = append(reasons, fmt.Sprintf("description overlap %.0f%%", overlapScore*100))
	}
	if capabilityScore > 0 {
		reasons = append(reasons, fmt.Sprintf("capability match %.0f%%", capabilityScore*100))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "weak match")
	}
	return fmt.Sprintf("%s (%s): %s", name, capability.Category, strings.Join(reasons, ", "))
}
