package workflow

import (
	"strings"

	"github.com/spf13/cast"
)

// MetaData holds the arguments configured on a workflow step.
type MetaData map[string]any

// Strings returns a list argument. A single string is split on commas.
func (m MetaData) Strings(key string) []string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}

	var raw []string
	if s, ok := v.(string); ok {
		raw = strings.Split(s, ",")
	} else {
		list, err := cast.ToStringSliceE(v)
		if err != nil {
			return nil
		}
		raw = list
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (m MetaData) String(key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fallback
	}
	return s
}

// Bool is true only for a case-insensitive "true" (or a true bool).
// Anything else, including "1" and "yes", is false.
func (m MetaData) Bool(key string) bool {
	if b, ok := m[key].(bool); ok {
		return b
	}
	return strings.EqualFold(strings.TrimSpace(m.String(key, "")), "true")
}
