package imaging

import (
	"bytes"
	"fmt"
	"image/gif"
	"image/jpeg"
	"image/png"
)

func encodeStdJPEG(l *Layer, opts EncodeOptions) (Output, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, l.img, &jpeg.Options{Quality: jpegQuality(opts.Quality)}); err != nil {
		return Output{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Output{Data: buf.Bytes(), MimeType: MimeJPEG}, nil
}

func encodeStdPNG(l *Layer, _ EncodeOptions) (Output, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := encoder.Encode(&buf, l.img); err != nil {
		return Output{}, fmt.Errorf("encode png: %w", err)
	}
	return Output{Data: buf.Bytes(), MimeType: MimePNG}, nil
}

func encodeStdGIF(l *Layer, opts EncodeOptions) (Output, error) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, l.img, &gif.Options{NumColors: gifColors(opts.Quality)}); err != nil {
		return Output{}, fmt.Errorf("encode gif: %w", err)
	}
	return Output{Data: buf.Bytes(), MimeType: MimeGIF}, nil
}
