// Package sanitize applies regex-based redaction to result row field values
// before they leave the gateway.
package sanitize

import (
	"fmt"
	"regexp"
)

// Rule is the sanitizer's own rule type.
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Sanitizer rewrites string field values matching configured patterns.
type Sanitizer struct {
	rules []compiledRule
}

// New creates a Sanitizer. Returns an error on invalid regex patterns.
func New(rules []Rule) (*Sanitizer, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("sanitize: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Sanitizer{rules: compiled}, nil
}

// Active reports whether any rules are configured.
func (s *Sanitizer) Active() bool {
	return len(s.rules) > 0
}

// Rows applies every rule to each field value, recursing into JSONB objects
// and arrays. Non-string leaves pass through untouched.
func (s *Sanitizer) Rows(rows []map[string]interface{}) []map[string]interface{} {
	if !s.Active() {
		return rows
	}
	for _, row := range rows {
		for k, v := range row {
			row[k] = s.value(v)
		}
	}
	return rows
}

func (s *Sanitizer) value(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		result := val
		for _, rule := range s.rules {
			result = rule.pattern.ReplaceAllString(result, rule.replacement)
		}
		return result
	case map[string]interface{}:
		for k, item := range val {
			val[k] = s.value(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = s.value(item)
		}
		return val
	default:
		// Numeric, bool, nil, json.Number — json.Number is a string underneath
		// but does not match `case string:`, so it correctly passes through.
		return v
	}
}
