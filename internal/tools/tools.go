// Package tools provides the sample tool set used by the demo server and
// tests: a real expression calculator, a workspace file reader, and a
// simulated web search.
package tools

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	toolweave "github.com/ZanzyTHEbar/toolweave-genkit"
	"github.com/ZanzyTHEbar/toolweave-genkit/internal/adapters"
)

// SetupTools creates and returns the registration-ordered names and the map
// of all sample tools. rootDir scopes the file reader; empty means the
// current working directory.
func SetupTools(rootDir string) ([]string, map[string]toolweave.Tool) {
	if rootDir == "" {
		rootDir = "."
	}
	names := []string{"calculate", "read_file", "search"}
	tools := map[string]toolweave.Tool{
		"calculate": adapters.NewGoToolAdapter(
			"calculate",
			PerformCalculation,
			adapters.WithDescription("Evaluates a mathematical expression and returns its value."),
			adapters.WithCategory("data-processing"),
			adapters.WithParameters(map[string]string{
				"expression": "Mathematical expression to evaluate (e.g., '5*9')",
			}),
			adapters.WithReturns("Calculation result as a number."),
			adapters.WithExamples([]string{
				`calculate {"expression": "5*9"}`,
				`calculate {"expression": "(1+2)/3.0"}`,
			}),
			adapters.WithValidator(validateCalculationInput),
		),
		"read_file": adapters.NewGoToolAdapter(
			"read_file",
			readFileFunc(rootDir),
			adapters.WithDescription("Reads a text file from the workspace directory."),
			adapters.WithCategory("file-operations"),
			adapters.WithParameters(map[string]string{
				"path": "Path of the file, relative to the workspace root",
			}),
			adapters.WithReturns("File contents as a string."),
			adapters.WithExamples([]string{
				`read_file {"path": "README.md"}`,
			}),
			adapters.WithValidator(validateReadFileInput),
		),
		"search": adapters.NewGoToolAdapter(
			"search",
			PerformSearch,
			adapters.WithDescription("Performs a web search for a given query."),
			adapters.WithCategory("search-query"),
			adapters.WithParameters(map[string]string{
				"query": "Search query string",
			}),
			adapters.WithReturns("Search results as a string."),
			adapters.WithExamples([]string{
				`search {"query": "golang concurrency patterns"}`,
			}),
			adapters.WithValidator(validateSearchInput),
		),
	}
	return names, tools
}

// PerformCalculation evaluates the expression in input["expression"].
func PerformCalculation(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	expression, ok := input["expression"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid parameter: missing expression argument (expected string at key 'expression')")
	}
	log.Printf("TOOL: Calculating '%s'...", expression)

	value, err := EvaluateExpression(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid parameter: expression evaluation failed: %w", err)
	}

	return map[string]interface{}{"output": value}, nil
}

// readFileFunc builds the file reader scoped to rootDir. Paths that escape
// the root are rejected.
func readFileFunc(rootDir string) func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
		path, ok := input["path"].(string)
		if !ok {
			return nil, fmt.Errorf("invalid parameter: missing path argument (expected string at key 'path')")
		}

		resolved := filepath.Join(rootDir, filepath.Clean("/"+path))
		rel, err := filepath.Rel(rootDir, resolved)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("permission denied: path escapes the workspace root")
		}

		log.Printf("TOOL: Reading file '%s'...", resolved)
		data, err := os.ReadFile(resolved)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("file not available: %w", err)
			}
			return nil, fmt.Errorf("read failed: %w", err)
		}
		return map[string]interface{}{"output": string(data)}, nil
	}
}

// PerformSearch simulates a web search. It expects input["query"].
func PerformSearch(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	query, ok := input["query"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid parameter: missing query argument (expected string at key 'query')")
	}
	log.Printf("TOOL: Searching for '%s'...", query)

	// Simulate network delay
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Duration(100+rand.Intn(200)) * time.Millisecond):
	}

	result := fmt.Sprintf("Simulated search results for query: %s", query)
	return map[string]interface{}{"output": result}, nil
}

// validateSearchInput validates the input for the search tool.
func validateSearchInput(input map[string]interface{}) error {
	query, ok := input["query"]
	if !ok {
		return fmt.Errorf("missing required search query (expected at key 'query')")
	}

	queryStr, ok := query.(string)
	if !ok {
		return fmt.Errorf("invalid parameter: search query must be a string, got %T", query)
	}
	if len(queryStr) == 0 {
		return fmt.Errorf("invalid parameter: search query cannot be empty")
	}
	if len(queryStr) > 1000 {
		return fmt.Errorf("invalid parameter: search query too long (max 1000 characters)")
	}
	return nil
}

// validateCalculationInput validates the input for the calculation tool.
func validateCalculationInput(input map[string]interface{}) error {
	expr, ok := input["expression"]
	if !ok {
		return fmt.Errorf("missing required expression (expected at key 'expression')")
	}

	exprStr, ok := expr.(string)
	if !ok {
		return fmt.Errorf("invalid parameter: expression must be a string, got %T", expr)
	}
	if len(exprStr) == 0 {
		return fmt.Errorf("invalid parameter: expression cannot be empty")
	}
	if len(exprStr) > 100 {
		return fmt.Errorf("invalid parameter: expression too long (max 100 characters)")
	}
	return ValidateExpression(exprStr)
}

// validateReadFileInput validates the input for the file reader.
func validateReadFileInput(input map[string]interface{}) error {
	path, ok := input["path"]
	if !ok {
		return fmt.Errorf("missing required path (expected at key 'path')")
	}
	pathStr, ok := path.(string)
	if !ok {
		return fmt.Errorf("invalid parameter: path must be a string, got %T", path)
	}
	if len(pathStr) == 0 {
		return fmt.Errorf("invalid parameter: path cannot be empty")
	}
	return nil
}
