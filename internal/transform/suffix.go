package transform

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const DefaultFilenamePattern = `(image|img)\.(.+)`

// Suffix is the part of a request path after the resource's ".transform"
// extension, e.g. "/thumbnail/grey/1699999999/image.png".
type Suffix struct {
	raw      string
	segments []string
}

func ParseSuffix(raw string) Suffix {
	segments := make([]string, 0, 4)
	for _, s := range strings.Split(raw, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return Suffix{raw: raw, segments: segments}
}

func (s Suffix) Raw() string { return s.raw }

func (s Suffix) Blank() bool { return strings.TrimSpace(s.raw) == "" || len(s.segments) == 0 }

func (s Suffix) Segments() []string { return append([]string(nil), s.segments...) }

func (s Suffix) First() string {
	if len(s.segments) == 0 {
		return ""
	}
	return s.segments[0]
}

func (s Suffix) Last() string {
	if len(s.segments) == 0 {
		return ""
	}
	return s.segments[len(s.segments)-1]
}

// TransformNames returns every segment but the filename. A numeric segment
// right before the filename is a cache buster and is dropped as well.
func (s Suffix) TransformNames() []string {
	if len(s.segments) < 2 {
		return nil
	}
	end := len(s.segments) - 1
	if isNumeric(s.segments[end-1]) {
		end--
	}
	return append([]string(nil), s.segments[:end]...)
}

// URLParams parses the "key:value" segments that follow the first transform
// name. Segments without a separator map to an empty value.
func (s Suffix) URLParams() Params {
	params := Params{}
	if len(s.segments) < 3 {
		return params
	}
	for _, seg := range s.segments[1 : len(s.segments)-1] {
		key, value, _ := strings.Cut(seg, ":")
		params[key] = value
	}
	return params
}

// CompileFilenamePattern anchors expr so that it must match a whole
// filename segment.
func CompileFilenamePattern(expr string) (*regexp.Regexp, error) {
	if strings.TrimSpace(expr) == "" {
		expr = DefaultFilenamePattern
	}
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, fmt.Errorf("compile filename pattern %q: %w", expr, err)
	}
	return re, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
