package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Compare applies op between two property values using the evaluator's
// comparison semantics. Regular-expression operators are not supported
// here; use a compiled Condition for those.
func Compare(got any, op Op, want any) bool {
	return compare(got, op, want, nil)
}

// compare applies op between a stored property value and the right-hand
// side. Numbers compare by value regardless of Go type; int 52 equals
// float64 52.0. Ordered operators fall back to string ordering when either
// side is not numeric.
func compare(got any, op Op, want any, re *regexp.Regexp) bool {
	switch op {
	case OpEq:
		return valuesEqual(got, want)
	case OpNe:
		return !valuesEqual(got, want)
	case OpIn:
		return valueIn(got, want)
	case OpContains:
		return valueContains(got, want)
	case OpMatches:
		if re == nil {
			return false
		}
		s, ok := got.(string)
		return ok && re.MatchString(s)
	case OpNotMatches:
		if re == nil {
			return false
		}
		s, ok := got.(string)
		return !ok || !re.MatchString(s)
	}

	gf, gok := toFloat(got)
	wf, wok := toFloat(want)
	if gok && wok {
		switch op {
		case OpLt:
			return gf < wf
		case OpLe:
			return gf <= wf
		case OpGt:
			return gf > wf
		case OpGe:
			return gf >= wf
		}
		return false
	}

	gs, ws := fmt.Sprintf("%v", got), fmt.Sprintf("%v", want)
	switch op {
	case OpLt:
		return gs < ws
	case OpLe:
		return gs <= ws
	case OpGt:
		return gs > ws
	case OpGe:
		return gs >= ws
	}
	return false
}

func valuesEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func valueIn(got, want any) bool {
	switch list := want.(type) {
	case []any:
		for _, item := range list {
			if valuesEqual(got, item) {
				return true
			}
		}
	case []string:
		for _, item := range list {
			if valuesEqual(got, item) {
				return true
			}
		}
	case []int:
		for _, item := range list {
			if valuesEqual(got, item) {
				return true
			}
		}
	case []float64:
		for _, item := range list {
			if valuesEqual(got, item) {
				return true
			}
		}
	}
	return false
}

func valueContains(got, want any) bool {
	switch container := got.(type) {
	case string:
		w, ok := want.(string)
		return ok && strings.Contains(container, w)
	case []any:
		for _, item := range container {
			if valuesEqual(item, want) {
				return true
			}
		}
	case []string:
		for _, item := range container {
			if valuesEqual(item, want) {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
