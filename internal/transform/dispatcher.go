package transform

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/dunamismax/transformd/internal/imaging"
)

const paramAddURLParams = "addUrlParams"

// Dispatcher decides which requests name a transform and runs the merged
// plan against a layer.
type Dispatcher struct {
	registry        *Registry
	filenamePattern *regexp.Regexp
	logger          *zap.Logger
}

func NewDispatcher(registry *Registry, filenamePattern *regexp.Regexp, logger *zap.Logger) *Dispatcher {
	if filenamePattern == nil {
		filenamePattern = regexp.MustCompile(`^(?:` + DefaultFilenamePattern + `)$`)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry:        registry,
		filenamePattern: filenamePattern,
		logger:          logger,
	}
}

func (d *Dispatcher) Registry() *Registry { return d.registry }

// Accepts reports whether the suffix starts with a registered named
// transform and ends with an allowed filename.
func (d *Dispatcher) Accepts(s Suffix) bool {
	if s.Blank() {
		return false
	}
	if !d.registry.HasNamed(s.First()) {
		return false
	}
	return d.filenamePattern.MatchString(s.Last())
}

// Select resolves the suffix's transform names in order, skipping unknown
// names.
func (d *Dispatcher) Select(s Suffix) []Named {
	names := s.TransformNames()
	if len(names) == 0 {
		d.logger.Warn("named transform request requires at least one named transform", zap.String("suffix", s.Raw()))
		return nil
	}

	selected := make([]Named, 0, len(names))
	for _, name := range names {
		if n, ok := d.registry.Named(name); ok {
			selected = append(selected, n)
		}
	}
	return selected
}

// Apply runs each plan step through its registered transformer in plan
// order. Steps without a transformer are skipped.
func (d *Dispatcher) Apply(layer *imaging.Layer, plan Plan, urlParams Params) (*imaging.Layer, error) {
	for _, typ := range plan.Types() {
		if typ == TypeQuality {
			continue
		}

		t, ok := d.registry.Transformer(typ)
		if !ok {
			if typ != TypeProgressive {
				d.logger.Warn("skipping transform, missing image transformer", zap.String("type", typ))
			}
			continue
		}

		params := plan.Params(typ)
		if params.Bool(paramAddURLParams, false) && len(urlParams) > 0 {
			params = params.With(urlParams)
		}

		d.logger.Debug("applying transform", zap.String("type", typ))
		next, err := t.Transform(layer, params)
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", typ, err)
		}
		layer = next
	}
	return layer, nil
}

// Progressive reports whether the output should be a progressive JPEG.
func (d *Dispatcher) Progressive(mimeType string, plan Plan) bool {
	if !plan.Params(TypeProgressive).Bool("enabled", false) {
		return false
	}
	if isJPEG(mimeType) {
		return true
	}
	d.logger.Debug("progressive encoding is only supported for jpegs", zap.String("mime_type", mimeType))
	return false
}
