//go:build govips && cgo

package imaging

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

func Startup() error {
	startupOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   128 * 1024 * 1024,
			MaxCacheSize:  100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func encoders() map[string]encodeFunc {
	return map[string]encodeFunc{
		MimeJPEG: encodeVipsJPEG,
		MimePNG:  encodeStdPNG,
		MimeGIF:  encodeStdGIF,
		MimeWEBP: encodeVipsWEBP,
	}
}

// toVips hands the layer to libvips through a lossless PNG buffer.
func toVips(l *Layer) (*vips.ImageRef, error) {
	lossless, err := encodeStdPNG(l, EncodeOptions{})
	if err != nil {
		return nil, err
	}
	ref, err := vips.NewImageFromBuffer(lossless.Data)
	if err != nil {
		return nil, fmt.Errorf("load layer into vips: %w", err)
	}
	return ref, nil
}

func encodeVipsJPEG(l *Layer, opts EncodeOptions) (Output, error) {
	ref, err := toVips(l)
	if err != nil {
		return Output{}, err
	}
	defer ref.Close()

	params := vips.NewJpegExportParams()
	params.Quality = jpegQuality(opts.Quality)
	params.Interlace = opts.Progressive
	data, _, err := ref.ExportJpeg(params)
	if err != nil {
		return Output{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Output{Data: data, MimeType: MimeJPEG, Progressive: opts.Progressive}, nil
}

func encodeVipsWEBP(l *Layer, opts EncodeOptions) (Output, error) {
	ref, err := toVips(l)
	if err != nil {
		return Output{}, err
	}
	defer ref.Close()

	params := vips.NewWebpExportParams()
	params.Quality = jpegQuality(opts.Quality)
	data, _, err := ref.ExportWebp(params)
	if err != nil {
		return Output{}, fmt.Errorf("encode webp: %w", err)
	}
	return Output{Data: data, MimeType: MimeWEBP}, nil
}
