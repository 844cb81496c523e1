// Package filter evaluates AIP-160 filter expressions against rules.
//
// Filterable fields: id, name, category, base_game, tag, and
// parameter_count. A tag comparison matches when any tag of the rule
// satisfies it.
package filter

import (
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	apperrors "github.com/louisbranch/ruleforge/internal/platform/errors"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
)

// Filter is a parsed rule filter. The zero Filter matches every rule.
type Filter struct {
	source string
	root   *expr.Expr
}

// Parse parses filterStr. An empty string yields a filter matching everything.
func Parse(filterStr string) (Filter, error) {
	if strings.TrimSpace(filterStr) == "" {
		return Filter{}, nil
	}
	decls, err := declarations()
	if err != nil {
		return Filter{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return Filter{}, apperrors.Wrap(apperrors.CodeFilterInvalid, fmt.Sprintf("parse filter: %v", err), err)
	}
	return Filter{source: filterStr, root: parsed.CheckedExpr.GetExpr()}, nil
}

// String returns the source expression.
func (f Filter) String() string {
	return f.source
}

// Match reports whether r satisfies the filter.
func (f Filter) Match(r rule.Rule) (bool, error) {
	if f.root == nil {
		return true, nil
	}
	ok, err := evaluate(f.root, fields(r))
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeFilterInvalid, fmt.Sprintf("evaluate filter: %v", err), err)
	}
	return ok, nil
}

// Apply returns the rules matching the filter in their original order.
func (f Filter) Apply(rules []rule.Rule) ([]rule.Rule, error) {
	out := make([]rule.Rule, 0, len(rules))
	for _, r := range rules {
		ok, err := f.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func declarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("id", filtering.TypeString),
		filtering.DeclareIdent("name", filtering.TypeString),
		filtering.DeclareIdent("category", filtering.TypeString),
		filtering.DeclareIdent("base_game", filtering.TypeString),
		filtering.DeclareIdent("tag", filtering.TypeString),
		filtering.DeclareIdent("parameter_count", filtering.TypeInt),
	)
}

type resolver func(name string) ([]any, bool)

func fields(r rule.Rule) resolver {
	return func(name string) ([]any, bool) {
		switch name {
		case "id":
			return []any{r.ID}, true
		case "name":
			return []any{r.Name}, true
		case "category":
			return []any{r.Category}, true
		case "base_game":
			return []any{r.BaseGame}, true
		case "tag":
			tags := make([]any, len(r.Tags))
			for i, tag := range r.Tags {
				tags[i] = tag
			}
			return tags, true
		case "parameter_count":
			return []any{int64(len(r.Parameters))}, true
		default:
			return nil, false
		}
	}
}

func evaluate(e *expr.Expr, resolve resolver) (bool, error) {
	if e == nil {
		return true, nil
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return evalCall(kind.CallExpr, resolve)
	default:
		return false, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func evalCall(call *expr.Expr_Call, resolve resolver) (bool, error) {
	switch call.Function {
	case "_&&_", filtering.FunctionAnd:
		if len(call.Args) != 2 {
			return false, fmt.Errorf("AND requires 2 arguments")
		}
		left, err := evaluate(call.Args[0], resolve)
		if err != nil || !left {
			return false, err
		}
		return evaluate(call.Args[1], resolve)
	case "_||_", filtering.FunctionOr:
		if len(call.Args) != 2 {
			return false, fmt.Errorf("OR requires 2 arguments")
		}
		left, err := evaluate(call.Args[0], resolve)
		if err != nil || left {
			return left, err
		}
		return evaluate(call.Args[1], resolve)
	case "!_", filtering.FunctionNot:
		if len(call.Args) != 1 {
			return false, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := evaluate(call.Args[0], resolve)
		return !inner, err
	case "_==_", filtering.FunctionEquals:
		return evalCompare(call.Args, resolve, func(c int) bool { return c == 0 })
	case "_!=_", filtering.FunctionNotEquals:
		matched, err := evalCompare(call.Args, resolve, func(c int) bool { return c == 0 })
		return !matched, err
	case "_<_", filtering.FunctionLessThan:
		return evalCompare(call.Args, resolve, func(c int) bool { return c < 0 })
	case "_<=_", filtering.FunctionLessEquals:
		return evalCompare(call.Args, resolve, func(c int) bool { return c <= 0 })
	case "_>_", filtering.FunctionGreaterThan:
		return evalCompare(call.Args, resolve, func(c int) bool { return c > 0 })
	case "_>=_", filtering.FunctionGreaterEquals:
		return evalCompare(call.Args, resolve, func(c int) bool { return c >= 0 })
	default:
		return false, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

// evalCompare reports whether any resolved value of the field satisfies ok.
func evalCompare(args []*expr.Expr, resolve resolver, ok func(int) bool) (bool, error) {
	if len(args) != 2 {
		return false, fmt.Errorf("comparison requires 2 arguments")
	}
	field, err := extractFieldName(args[0])
	if err != nil {
		return false, err
	}
	values, known := resolve(field)
	if !known {
		return false, fmt.Errorf("unknown field: %s", field)
	}
	right, err := extractValue(args[1])
	if err != nil {
		return false, err
	}
	for _, left := range values {
		c, err := compareValues(left, right)
		if err != nil {
			return false, err
		}
		if ok(c) {
			return true, nil
		}
	}
	return false, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	kind, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return nil, fmt.Errorf("expected constant, got %T", e.ExprKind)
	}
	switch c := kind.ConstExpr.GetConstantKind().(type) {
	case *expr.Constant_StringValue:
		return c.StringValue, nil
	case *expr.Constant_Int64Value:
		return c.Int64Value, nil
	case *expr.Constant_DoubleValue:
		return c.DoubleValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", c)
	}
}

func compareValues(left, right any) (int, error) {
	switch l := left.(type) {
	case string:
		r, ok := right.(string)
		if !ok {
			return 0, fmt.Errorf("type mismatch: string vs %T", right)
		}
		return strings.Compare(l, r), nil
	case int64:
		var r float64
		switch v := right.(type) {
		case int64:
			r = float64(v)
		case float64:
			r = v
		default:
			return 0, fmt.Errorf("type mismatch: number vs %T", right)
		}
		switch {
		case float64(l) < r:
			return -1, nil
		case float64(l) > r:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("unsupported value type: %T", left)
	}
}
