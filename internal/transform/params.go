package transform

import (
	"strings"

	"github.com/spf13/cast"
)

// Params holds the configuration of a single image transform. Values arrive
// as YAML scalars or URL strings and are coerced on read.
type Params map[string]any

func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p Params) String(key, fallback string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return fallback
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fallback
	}
	return s
}

func (p Params) Int(key string, fallback int) int {
	v, ok := p[key]
	if !ok || v == nil {
		return fallback
	}
	if s, isString := v.(string); isString {
		v = strings.TrimSpace(s)
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		f, ferr := cast.ToFloat64E(v)
		if ferr != nil {
			return fallback
		}
		return int(f)
	}
	return i
}

func (p Params) Float(key string, fallback float64) float64 {
	v, ok := p[key]
	if !ok || v == nil {
		return fallback
	}
	if s, isString := v.(string); isString {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return fallback
	}
	return f
}

func (p Params) Bool(key string, fallback bool) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return fallback
	}
	if s, isString := v.(string); isString {
		v = strings.TrimSpace(s)
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return fallback
	}
	return b
}

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// With returns a copy of p overlaid with other.
func (p Params) With(other Params) Params {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}
