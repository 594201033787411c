package tools

import "github.com/Knetic/govaluate"

// ExpressionFunctionRegistry allows registration of custom functions usable
// inside calculate expressions.
type ExpressionFunctionRegistry struct {
	functions map[string]govaluate.ExpressionFunction
}

var globalExprFuncRegistry = &ExpressionFunctionRegistry{functions: make(map[string]govaluate.ExpressionFunction)}

// RegisterExpressionFunction registers a custom function for expressions.
func RegisterExpressionFunction(name string, fn govaluate.ExpressionFunction) {
	globalExprFuncRegistry.functions[name] = fn
}

// getWhitelistedFunctions returns only whitelisted functions for security.
func getWhitelistedFunctions() map[string]govaluate.ExpressionFunction {
	whitelist := map[string]govaluate.ExpressionFunction{}
	for k, v := range globalExprFuncRegistry.functions {
		whitelist[k] = v
	}
	return whitelist
}

// ValidateExpression checks that an expression parses before evaluation.
func ValidateExpression(expr string) error {
	_, err := govaluate.NewEvaluableExpressionWithFunctions(expr, getWhitelistedFunctions())
	return err
}

// EvaluateExpression parses and evaluates an expression with the whitelisted
// functions.
func EvaluateExpression(expr string) (interface{}, error) {
	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(expr, getWhitelistedFunctions())
	if err != nil {
		return nil, err
	}
	return parsed.Evaluate(nil)
}
