package transform

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/dunamismax/transformd/internal/imaging"
)

const (
	TypeResize          = "resize"
	TypeBoundedResize   = "bounded-resize"
	TypeCrop            = "crop"
	TypeRotate          = "rotate"
	TypeGreyscale       = "greyscale"
	TypeFlip            = "flip"
	TypeMirror          = "mirror"
	TypeLetterPillarBox = "letter-pillar-box"
	TypeAdjust          = "adjust"
)

// MaxDimension caps any width or height a transform may produce.
const MaxDimension = 8192

// Builtins returns the stock image transformers.
func Builtins() []ImageTransformer {
	return []ImageTransformer{
		TransformerFunc(TypeResize, resize),
		TransformerFunc(TypeBoundedResize, boundedResize),
		TransformerFunc(TypeCrop, crop),
		TransformerFunc(TypeRotate, rotate),
		TransformerFunc(TypeGreyscale, greyscale),
		TransformerFunc(TypeFlip, flip),
		TransformerFunc(TypeMirror, flip),
		TransformerFunc(TypeLetterPillarBox, letterPillarBox),
		TransformerFunc(TypeAdjust, adjust),
	}
}

func RegisterBuiltins(r *Registry) {
	for _, t := range Builtins() {
		r.BindTransformer(t)
	}
}

// resize scales to width and/or height. A missing dimension keeps the
// aspect ratio.
func resize(layer *imaging.Layer, params Params) (*imaging.Layer, error) {
	width, height, err := boxParams(TypeResize, params)
	if err != nil {
		return nil, err
	}
	if width == 0 && height == 0 {
		return layer, nil
	}

	srcW, srcH := float64(layer.Width()), float64(layer.Height())
	switch {
	case width == 0:
		width = int(math.Round(srcW * float64(height) / srcH))
	case height == 0:
		height = int(math.Round(srcH * float64(width) / srcW))
	}

	if !params.Bool("upscale", true) && (width > layer.Width() || height > layer.Height()) {
		return layer, nil
	}
	if err := checkOutput(TypeResize, width, height); err != nil {
		return nil, err
	}

	if err := layer.Resize(max(1, width), max(1, height)); err != nil {
		return nil, err
	}
	return layer, nil
}

// boundedResize fits the layer into the width x height box, keeping the
// aspect ratio. It never enlarges unless upscale is set.
func boundedResize(layer *imaging.Layer, params Params) (*imaging.Layer, error) {
	width, height, err := boxParams(TypeBoundedResize, params)
	if err != nil {
		return nil, err
	}
	if width == 0 && height == 0 {
		return layer, nil
	}

	w, h := fitInside(layer.Width(), layer.Height(), width, height)
	if !params.Bool("upscale", false) && (w > layer.Width() || h > layer.Height()) {
		return layer, nil
	}
	if err := checkOutput(TypeBoundedResize, w, h); err != nil {
		return nil, err
	}
	if err := layer.Resize(w, h); err != nil {
		return nil, err
	}
	return layer, nil
}

// crop takes "bounds" as "x,y,width,height" or separate x/y/width/height
// params. With smart cropping (the default) the rectangle is clamped to the
// layer instead of failing.
func crop(layer *imaging.Layer, params Params) (*imaging.Layer, error) {
	rect, err := cropRect(params)
	if err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, layer.Width(), layer.Height())
	if !rect.In(bounds) && !params.Bool("smart", true) {
		return nil, fmt.Errorf("%w: crop %v exceeds image %v", ErrInvalidParams, rect, bounds)
	}
	if err := layer.Crop(rect); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return layer, nil
}

func cropRect(params Params) (image.Rectangle, error) {
	if raw := strings.TrimSpace(params.String("bounds", "")); raw != "" {
		parts := strings.Split(raw, ",")
		if len(parts) != 4 {
			return image.Rectangle{}, fmt.Errorf("%w: crop bounds %q must be x,y,width,height", ErrInvalidParams, raw)
		}
		vals := make([]int, 4)
		for i, part := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return image.Rectangle{}, fmt.Errorf("%w: crop bounds %q: %v", ErrInvalidParams, raw, err)
			}
			vals[i] = v
		}
		return cropRectFrom(vals[0], vals[1], vals[2], vals[3])
	}

	return cropRectFrom(
		params.Int("x", 0),
		params.Int("y", 0),
		params.Int("width", 0),
		params.Int("height", 0),
	)
}

func cropRectFrom(x, y, w, h int) (image.Rectangle, error) {
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: crop requires positive width and height", ErrInvalidParams)
	}
	return image.Rect(x, y, x+w, y+h), nil
}

func rotate(layer *imaging.Layer, params Params) (*imaging.Layer, error) {
	degrees := params.Float("degrees", 0)
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return nil, fmt.Errorf("%w: rotate degrees must be finite", ErrInvalidParams)
	}
	if math.Mod(degrees, 90) != 0 {
		w, h := float64(layer.Width()), float64(layer.Height())
		if err := checkOutput(TypeRotate, int(math.Ceil(w+h)), 0); err != nil {
			return nil, err
		}
	}
	layer.Rotate(degrees)
	return layer, nil
}

func greyscale(layer *imaging.Layer, _ Params) (*imaging.Layer, error) {
	layer.Greyscale()
	return layer, nil
}

func flip(layer *imaging.Layer, params Params) (*imaging.Layer, error) {
	switch strings.ToLower(strings.TrimSpace(params.String("direction", "horizontal"))) {
	case "horizontal", "h":
		layer.FlipHorizontally()
	case "vertical", "v":
		layer.FlipVertically()
	case "both":
		layer.FlipHorizontally()
		layer.FlipVertically()
	default:
		return nil, fmt.Errorf("%w: unknown flip direction %q", ErrInvalidParams, params.String("direction", ""))
	}
	return layer, nil
}

// letterPillarBox fits the layer into width x height and centres it on a
// canvas filled with color at the given alpha (1 is opaque).
func letterPillarBox(layer *imaging.Layer, params Params) (*imaging.Layer, error) {
	width, height, err := boxParams(TypeLetterPillarBox, params)
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: letter-pillar-box requires width and height", ErrInvalidParams)
	}

	fill, err := parseHexColor(params.String("color", "000000"))
	if err != nil {
		return nil, err
	}
	alpha := params.Float("alpha", 1)
	if math.IsNaN(alpha) {
		alpha = 1
	}
	alpha = math.Max(0, math.Min(1, alpha))
	fill.A = uint8(math.Round(alpha * 255))

	w, h := fitInside(layer.Width(), layer.Height(), width, height)
	if err := layer.Resize(w, h); err != nil {
		return nil, err
	}

	canvas, err := imaging.NewBlankLayer(width, height, fill)
	if err != nil {
		return nil, err
	}
	canvas.Place(layer, image.Pt((width-w)/2, (height-h)/2))
	return canvas, nil
}

func adjust(layer *imaging.Layer, params Params) (*imaging.Layer, error) {
	brightness := params.Int("brightness", 0)
	if brightness < -255 || brightness > 255 {
		return nil, fmt.Errorf("%w: brightness %d outside -255..255", ErrInvalidParams, brightness)
	}
	contrast := params.Float("contrast", 1)
	if contrast < 0 || math.IsNaN(contrast) || math.IsInf(contrast, 0) {
		return nil, fmt.Errorf("%w: contrast must be a finite non-negative number", ErrInvalidParams)
	}
	layer.Adjust(brightness, contrast)
	return layer, nil
}

// boxParams reads the width and height params of typ, each 0..MaxDimension.
func boxParams(typ string, params Params) (int, int, error) {
	width := params.Int("width", 0)
	height := params.Int("height", 0)
	if width < 0 || height < 0 || width > MaxDimension || height > MaxDimension {
		return 0, 0, fmt.Errorf("%w: %s dimensions %dx%d outside 0..%d", ErrInvalidParams, typ, width, height, MaxDimension)
	}
	return width, height, nil
}

// checkOutput rejects results larger than MaxDimension on either side.
func checkOutput(typ string, width, height int) error {
	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: %s would produce %dx%d, limit is %d", ErrInvalidParams, typ, width, height, MaxDimension)
	}
	return nil
}

// fitInside scales srcW x srcH to the largest size inside boxW x boxH. A zero
// box dimension is unconstrained.
func fitInside(srcW, srcH, boxW, boxH int) (int, int) {
	scale := math.Inf(1)
	if boxW > 0 {
		scale = float64(boxW) / float64(srcW)
	}
	if boxH > 0 {
		scale = math.Min(scale, float64(boxH)/float64(srcH))
	}
	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))
	return max(1, w), max(1, h)
}

func parseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: color %q must be a hex triplet", ErrInvalidParams, s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: color %q: %v", ErrInvalidParams, s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
