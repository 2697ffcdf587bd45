package checker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MatchesExpectation compares a JSON-decoded actual value with an expected
// value from a scenario. Expected strings support two matchers: ~pattern~
// for a regular expression and >, <, >=, <= for numeric comparison. Maps
// match when every expected key matches.
// Returns (true, "") on match, (false, "reason") on mismatch.
func MatchesExpectation(actual, expected interface{}) (bool, string) {
	if expected == nil {
		if actual == nil {
			return true, ""
		}
		return false, fmt.Sprintf("expected nil, got %v", actual)
	}
	if actual == nil {
		return false, fmt.Sprintf("expected %v, got nil", expected)
	}

	switch want := expected.(type) {
	case string:
		if len(want) > 1 && strings.HasPrefix(want, "~") && strings.HasSuffix(want, "~") {
			return matchRegex(actual, strings.Trim(want, "~"))
		}
		if strings.HasPrefix(want, ">") || strings.HasPrefix(want, "<") {
			return matchComparison(actual, want)
		}
		got, ok := actual.(string)
		if !ok {
			return false, fmt.Sprintf("expected string, got %T", actual)
		}
		if got != want {
			return false, fmt.Sprintf("expected %q, got %q", want, got)
		}
		return true, ""

	case bool:
		got, ok := actual.(bool)
		if !ok {
			return false, fmt.Sprintf("expected bool, got %T", actual)
		}
		if got != want {
			return false, fmt.Sprintf("expected %v, got %v", want, got)
		}
		return true, ""

	case map[string]interface{}:
		got, ok := actual.(map[string]interface{})
		if !ok {
			return false, fmt.Sprintf("expected map, got %T", actual)
		}
		for key, wantValue := range want {
			gotValue, exists := got[key]
			if !exists {
				return false, fmt.Sprintf("missing key %q", key)
			}
			if ok, reason := MatchesExpectation(gotValue, wantValue); !ok {
				return false, fmt.Sprintf("key %q: %s", key, reason)
			}
		}
		return true, ""
	}

	wantNum, err := toFloat64(expected)
	if err != nil {
		return false, fmt.Sprintf("unsupported expected type %T", expected)
	}
	gotNum, err := toFloat64(actual)
	if err != nil {
		return false, fmt.Sprintf("expected number, got %T", actual)
	}
	if gotNum != wantNum {
		return false, fmt.Sprintf("expected %v, got %v", wantNum, gotNum)
	}
	return true, ""
}

func matchRegex(actual interface{}, pattern string) (bool, string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern %q: %v", pattern, err)
	}

	s := fmt.Sprint(actual)
	if re.MatchString(s) {
		return true, ""
	}
	return false, fmt.Sprintf("value %q does not match pattern ~%s~", s, pattern)
}

func matchComparison(actual interface{}, comparison string) (bool, string) {
	got, err := toFloat64(actual)
	if err != nil {
		return false, fmt.Sprintf("cannot compare non-numeric value: %v", actual)
	}

	var op string
	for _, candidate := range []string{">=", "<=", ">", "<"} {
		if strings.HasPrefix(comparison, candidate) {
			op = candidate
			break
		}
	}

	want, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(comparison, op)), 64)
	if err != nil {
		return false, fmt.Sprintf("invalid comparison value: %s", comparison)
	}

	var ok bool
	switch op {
	case ">":
		ok = got > want
	case "<":
		ok = got < want
	case ">=":
		ok = got >= want
	case "<=":
		ok = got <= want
	}
	if ok {
		return true, ""
	}
	return false, fmt.Sprintf("expected value %s %v, got %v", op, want, got)
}

// toFloat64 converts numeric scenario and payload values
func toFloat64(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("not a numeric type: %T", val)
	}
}
