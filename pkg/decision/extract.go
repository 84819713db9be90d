// Package decision normalizes the heterogeneous "next step" signals produced by pipeline steps.
package decision

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// nextPattern finds `next: X`, `next = 'X'` or `"next_step": "X"` inside free text.
var nextPattern = regexp.MustCompile(`(?i)\bnext(?:_step)?["']?\s*[:=]\s*["']?([A-Za-z_]+)["']?`)

var decisionKeys = []string{"next", "next_step"}

// Extract normalizes a step's "what's next" output into a single token.
//
// Rules, first match wins: a mapping's next/next_step field; a string holding a structured
// literal (JSON, YAML or single-quoted) re-read as a mapping; a `next: X` pattern inside the
// text; the whole trimmed string. It returns "" when nothing is extractable and never panics.
func Extract(raw any) (token string) {
	defer func() {
		if r := recover(); r != nil {
			token = ""
		}
	}()

	switch v := raw.(type) {
	case nil:
		return ""
	case domain.Decision:
		return v.String()
	case string:
		return fromString(v)
	case []byte:
		return fromString(string(v))
	case fmt.Stringer:
		return fromString(v.String())
	}

	if m, ok := asMapping(raw); ok {
		return lookup(m, decisionKeys...)
	}
	return ""
}

// Parse maps Extract onto the Decision sum type.
func Parse(raw any) domain.Decision {
	return domain.Known(Extract(raw))
}

// Field reads an auxiliary field such as "task" or "feedback" from a mapping or a string
// holding a structured literal. It returns "" when the field is absent.
func Field(raw any, keys ...string) (value string) {
	defer func() {
		if r := recover(); r != nil {
			value = ""
		}
	}()

	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		m, ok := parseLiteral(v)
		if !ok {
			return ""
		}
		return lookup(m, keys...)
	case []byte:
		return Field(string(v), keys...)
	}
	if m, ok := asMapping(raw); ok {
		return lookup(m, keys...)
	}
	return ""
}

func fromString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m, ok := parseLiteral(s); ok {
		if token := lookup(m, decisionKeys...); token != "" {
			return token
		}
	}
	if match := nextPattern.FindStringSubmatch(s); len(match) == 2 {
		return clean(match[1])
	}
	return clean(s)
}

// parseLiteral attempts a safe structured parse. YAML flow syntax accepts JSON objects as
// well as single-quoted mappings like {'next': 'Coder'}.
func parseLiteral(s string) (map[string]any, bool) {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return asMapping(v)
}

func asMapping(raw any) (map[string]any, bool) {
	if raw == nil {
		return nil, false
	}
	rv := reflect.Indirect(reflect.ValueOf(raw))
	if rv.Kind() != reflect.Map && rv.Kind() != reflect.Struct {
		return nil, false
	}
	if m, ok := raw.(map[string]any); ok {
		return m, true
	}
	out := map[string]any{}
	if err := mapstructure.Decode(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func lookup(m map[string]any, keys ...string) string {
	for _, key := range keys {
		for k, v := range m {
			if !strings.EqualFold(k, key) || v == nil {
				continue
			}
			if token := clean(fmt.Sprint(v)); token != "" {
				return token
			}
		}
	}
	return ""
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "'\"`")
	s = strings.TrimRight(s, ".,;:!")
	return strings.TrimSpace(s)
}
