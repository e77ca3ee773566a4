package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	MimeJPEG  = "image/jpeg"
	MimeJPG   = "image/jpg"
	MimePJPEG = "image/pjpeg"
	MimePNG   = "image/png"
	MimeGIF   = "image/gif"
	MimeWEBP  = "image/webp"
)

var ErrUnsupportedMimeType = errors.New("unsupported mime type")

type EncodeOptions struct {
	MimeType string
	// Quality is a 0..1 ratio for lossy formats and a colour count for GIF.
	Quality     float64
	Progressive bool
}

type Output struct {
	Data        []byte
	MimeType    string
	Progressive bool
}

func Decode(data []byte) (*Layer, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return NewLayer(img), format, nil
}

// Supports reports whether this build can encode the given mime type.
func Supports(mimeType string) bool {
	_, ok := encoders()[normalizeMime(mimeType)]
	return ok
}

func Encode(l *Layer, opts EncodeOptions) (Output, error) {
	mimeType := normalizeMime(opts.MimeType)
	enc, ok := encoders()[mimeType]
	if !ok {
		return Output{}, fmt.Errorf("%w: %s", ErrUnsupportedMimeType, opts.MimeType)
	}
	opts.MimeType = mimeType
	return enc(l, opts)
}

type encodeFunc func(l *Layer, opts EncodeOptions) (Output, error)

func normalizeMime(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch mimeType {
	case MimeJPG, MimePJPEG:
		return MimeJPEG
	default:
		return mimeType
	}
}

func jpegQuality(q float64) int {
	return clamp(int(math.Round(q*100)), 1, 100)
}

func gifColors(q float64) int {
	return clamp(int(math.Round(q)), 2, 256)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
