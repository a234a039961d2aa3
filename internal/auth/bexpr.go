package auth

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-bexpr"
	lru "github.com/hashicorp/golang-lru/v2"
)

// filterCacheSize bounds how many compiled expressions are retained.
const filterCacheSize = 256

// filterCache stores compiled go-bexpr evaluators keyed by expression.
var filterCache = newFilterCache(filterCacheSize)

func newFilterCache(size int) *lru.Cache[string, *bexpr.Evaluator] {
	cache, err := lru.New[string, *bexpr.Evaluator](size)
	if err != nil {
		panic(fmt.Sprintf("filter cache: %v", err))
	}
	return cache
}

// CompileFilter compiles a boolean filter expression such as
//
//	role == "agent" and email matches "@x\\.com$"
//
// An empty expression returns a nil evaluator which matches everything.
func CompileFilter(expr string) (*bexpr.Evaluator, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	if cached, ok := filterCache.Get(expr); ok {
		return cached, nil
	}

	evaluator, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: filter expression: %v", ErrInvalidRequest, err)
	}
	filterCache.Add(expr, evaluator)
	return evaluator, nil
}

// MatchFilter evaluates a compiled filter against principal fields.
// Evaluation errors (for example a selector naming an unknown field) do not match.
func MatchFilter(evaluator *bexpr.Evaluator, fields map[string]any) bool {
	if evaluator == nil {
		return true
	}
	matches, err := evaluator.Evaluate(fields)
	if err != nil {
		return false
	}
	return matches
}
