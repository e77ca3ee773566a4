package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
)

var ErrInvalidDimensions = errors.New("invalid dimensions")

// Layer is a mutable pixel buffer. Every operation replaces or edits the
// underlying NRGBA image in place; the origin is always (0,0).
type Layer struct {
	img *image.NRGBA
}

func NewLayer(src image.Image) *Layer {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &Layer{img: dst}
}

func NewBlankLayer(width, height int, fill color.Color) (*Layer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
	return &Layer{img: dst}, nil
}

func (l *Layer) Image() *image.NRGBA { return l.img }

func (l *Layer) Width() int { return l.img.Bounds().Dx() }

func (l *Layer) Height() int { return l.img.Bounds().Dy() }

func (l *Layer) FlipHorizontally() {
	w, h := l.Width(), l.Height()
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			left := l.img.NRGBAAt(x, y)
			l.img.SetNRGBA(x, y, l.img.NRGBAAt(w-1-x, y))
			l.img.SetNRGBA(w-1-x, y, left)
		}
	}
}

func (l *Layer) FlipVertically() {
	w, h := l.Width(), l.Height()
	for y := 0; y < h/2; y++ {
		for x := 0; x < w; x++ {
			top := l.img.NRGBAAt(x, y)
			l.img.SetNRGBA(x, y, l.img.NRGBAAt(x, h-1-y))
			l.img.SetNRGBA(x, h-1-y, top)
		}
	}
}

// Rotate turns the layer clockwise. Right angles are exact; any other angle
// is sampled nearest-neighbour onto a canvas large enough to hold the result,
// leaving uncovered pixels transparent.
func (l *Layer) Rotate(degrees float64) {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return
	}
	degrees = math.Mod(degrees, 360)
	if degrees < 0 {
		degrees += 360
	}

	switch degrees {
	case 0:
		return
	case 90:
		l.rotate90()
	case 180:
		l.rotate180()
	case 270:
		l.rotate270()
	default:
		l.rotateArbitrary(degrees)
	}
}

func (l *Layer) rotate90() {
	w, h := l.Width(), l.Height()
	dst := image.NewNRGBA(image.Rect(0, 0, h, w))
	for dy := 0; dy < w; dy++ {
		for dx := 0; dx < h; dx++ {
			dst.SetNRGBA(dx, dy, l.img.NRGBAAt(dy, h-1-dx))
		}
	}
	l.img = dst
}

func (l *Layer) rotate180() {
	w, h := l.Width(), l.Height()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			dst.SetNRGBA(dx, dy, l.img.NRGBAAt(w-1-dx, h-1-dy))
		}
	}
	l.img = dst
}

func (l *Layer) rotate270() {
	w, h := l.Width(), l.Height()
	dst := image.NewNRGBA(image.Rect(0, 0, h, w))
	for dy := 0; dy < w; dy++ {
		for dx := 0; dx < h; dx++ {
			dst.SetNRGBA(dx, dy, l.img.NRGBAAt(w-1-dy, dx))
		}
	}
	l.img = dst
}

func (l *Layer) rotateArbitrary(degrees float64) {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)

	w, h := float64(l.Width()), float64(l.Height())
	outW := int(math.Ceil(math.Abs(w*cos) + math.Abs(h*sin)))
	outH := int(math.Ceil(math.Abs(w*sin) + math.Abs(h*cos)))

	dst := image.NewNRGBA(image.Rect(0, 0, outW, outH))
	srcCX, srcCY := w/2, h/2
	dstCX, dstCY := float64(outW)/2, float64(outH)/2

	for dy := 0; dy < outH; dy++ {
		for dx := 0; dx < outW; dx++ {
			rx := float64(dx) + 0.5 - dstCX
			ry := float64(dy) + 0.5 - dstCY
			// inverse of a clockwise rotation in screen coordinates
			sx := int(math.Floor(rx*cos + ry*sin + srcCX))
			sy := int(math.Floor(-rx*sin + ry*cos + srcCY))
			if sx < 0 || sy < 0 || sx >= l.Width() || sy >= l.Height() {
				continue
			}
			dst.SetNRGBA(dx, dy, l.img.NRGBAAt(sx, sy))
		}
	}
	l.img = dst
}

// Crop keeps the part of the layer inside r. r must overlap the layer.
func (l *Layer) Crop(r image.Rectangle) error {
	r = r.Canon().Intersect(l.img.Bounds())
	if r.Empty() {
		return fmt.Errorf("%w: crop rectangle outside layer", ErrInvalidDimensions)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), l.img, r.Min, draw.Src)
	l.img = dst
	return nil
}

func (l *Layer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if width == l.Width() && height == l.Height() {
		return nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), l.img, l.img.Bounds(), xdraw.Src, nil)
	l.img = dst
	return nil
}

// Place draws other onto this layer with its top-left corner at p.
func (l *Layer) Place(other *Layer, p image.Point) {
	r := image.Rectangle{Min: p, Max: p.Add(other.img.Bounds().Size())}
	draw.Draw(l.img, r, other.img, image.Point{}, draw.Over)
}

func (l *Layer) Greyscale() {
	w, h := l.Width(), l.Height()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := l.img.NRGBAAt(x, y)
			lum := uint8((299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B) + 500) / 1000)
			l.img.SetNRGBA(x, y, color.NRGBA{R: lum, G: lum, B: lum, A: c.A})
		}
	}
}

// Adjust shifts brightness by an additive offset and scales contrast around
// the mid-tone. A contrast of 1 leaves the layer unchanged.
func (l *Layer) Adjust(brightness int, contrast float64) {
	if brightness == 0 && contrast == 1 {
		return
	}
	apply := func(v uint8) uint8 {
		f := (float64(v)-128)*contrast + 128 + float64(brightness)
		return uint8(math.Round(math.Max(0, math.Min(255, f))))
	}

	w, h := l.Width(), l.Height()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := l.img.NRGBAAt(x, y)
			l.img.SetNRGBA(x, y, color.NRGBA{R: apply(c.R), G: apply(c.G), B: apply(c.B), A: c.A})
		}
	}
}
