package flow

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// routePrimitive executes conditional branching. Only the selected branch is
// dispatched.
//
// Value form: the resolved value is stringified and looked up in paths;
// unmatched values fall through to the "false" branch and then "default".
// Condition form: ordered predicates, first match wins, optional default.
type routePrimitive struct {
	base
}

// Execute implements primitive.
func (p *routePrimitive) Execute(ctx context.Context, node *Node) (any, error) {
	data := node.Data.(*RouteData)
	if len(data.Conditions) > 0 {
		return p.routeByCondition(ctx, node, data)
	}
	return p.routeByValue(ctx, node, data)
}

func (p *routePrimitive) routeByValue(ctx context.Context, node *Node, data *RouteData) (any, error) {
	key := stringifyValue(p.resolve(data.Value))
	branch, ok := data.Paths[key]
	if !ok {
		// Unmatched values try the "false" branch before default, so a
		// boolean route can name only its true path.
		branch, ok = data.Paths["false"]
	}
	if !ok {
		branch, ok = data.Paths["default"]
	}
	if !ok && data.Default != nil {
		branch, ok = data.Default, true
	}
	if !ok {
		return nil, newError(ErrNoRouteMatched, node.Name, fmt.Sprintf("value %q has no branch and no default", key), nil)
	}
	return p.d.Execute(ctx, branch)
}

func (p *routePrimitive) routeByCondition(ctx context.Context, node *Node, data *RouteData) (any, error) {
	for i, cond := range data.Conditions {
		matched, err := p.evaluate(cond)
		if err != nil {
			return nil, fmt.Errorf("route condition %d: %w", i, err)
		}
		if matched {
			return p.d.Execute(ctx, cond.Branch)
		}
	}
	if data.Default != nil {
		return p.d.Execute(ctx, data.Default)
	}
	return nil, newError(ErrNoRouteMatched, node.Name, "no condition matched and no default", nil)
}

// evaluate applies one condition against the current state.
func (p *routePrimitive) evaluate(cond RouteCondition) (bool, error) {
	actual, exists := p.d.state.Lookup(strings.TrimPrefix(cond.Path, "state."))
	expected := p.resolve(cond.Value)

	switch cond.Operator {
	case "exists":
		return exists, nil
	case "equals":
		return valuesEqual(actual, expected), nil
	case "notEquals":
		return !valuesEqual(actual, expected), nil
	case "contains":
		return contains(actual, expected), nil
	case "greater", "less", "greaterOrEqual", "lessOrEqual":
		a, aok := toFloat(actual)
		b, bok := toFloat(expected)
		if !aok || !bok {
			return false, nil
		}
		switch cond.Operator {
		case "greater":
			return a > b, nil
		case "less":
			return a < b, nil
		case "greaterOrEqual":
			return a >= b, nil
		default:
			return a <= b, nil
		}
	case "matches":
		re, err := regexp.Compile(stringifyValue(expected))
		if err != nil {
			return false, fmt.Errorf("invalid pattern: %w", err)
		}
		return re.MatchString(stringifyValue(actual)), nil
	default:
		return false, fmt.Errorf("unknown operator %q", cond.Operator)
	}
}

// valuesEqual compares scalars numerically where possible and otherwise by
// stringified form, so document literals match state values regardless of
// numeric representation.
func valuesEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return stringifyValue(a) == stringifyValue(b)
}

// contains handles substring checks on strings and membership on lists.
func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, stringifyValue(needle))
	case []any:
		for _, item := range h {
			if valuesEqual(item, needle) {
				return true
			}
		}
	}
	return false
}

// toFloat coerces JSON and Go numeric representations.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
