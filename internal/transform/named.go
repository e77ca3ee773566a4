package transform

import (
	"errors"

	"github.com/dunamismax/transformd/internal/imaging"
)

// Synthetic transform types carry encoder settings rather than pixel edits.
const (
	TypeQuality     = "quality"
	TypeProgressive = "progressive"
)

var ErrInvalidParams = errors.New("invalid transform params")

type Step struct {
	Type   string `yaml:"type"`
	Params Params `yaml:"params"`
}

// Named is an ordered list of transform steps addressable by name in a
// request suffix.
type Named struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

type ImageTransformer interface {
	Type() string
	Transform(layer *imaging.Layer, params Params) (*imaging.Layer, error)
}

type transformerFunc struct {
	typ string
	fn  func(layer *imaging.Layer, params Params) (*imaging.Layer, error)
}

// TransformerFunc adapts a function into an ImageTransformer of the given type.
func TransformerFunc(typ string, fn func(layer *imaging.Layer, params Params) (*imaging.Layer, error)) ImageTransformer {
	return transformerFunc{typ: typ, fn: fn}
}

func (t transformerFunc) Type() string { return t.typ }

func (t transformerFunc) Transform(layer *imaging.Layer, params Params) (*imaging.Layer, error) {
	return t.fn(layer, params)
}
