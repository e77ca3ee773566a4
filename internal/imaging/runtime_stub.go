//go:build !govips || !cgo

package imaging

func Startup() error {
	return nil
}

func Shutdown() {}

// The stdlib JPEG writer only produces baseline images, so progressive
// requests are encoded as baseline and reported as such in Output.
func encoders() map[string]encodeFunc {
	return map[string]encodeFunc{
		MimeJPEG: encodeStdJPEG,
		MimePNG:  encodeStdPNG,
		MimeGIF:  encodeStdGIF,
	}
}
