package transform

const (
	DefaultQuality = 82

	maxQuality    = 100
	minQuality    = 0
	maxQualityGIF = 255
)

// Quality derives the encoder quality from the plan's "quality" step: a
// 0..1 ratio, or a 0..255 colour count for GIF output.
func Quality(mimeType string, plan Plan) float64 {
	q := plan.Params(TypeQuality).Float(TypeQuality, DefaultQuality)
	if q > maxQuality || q < minQuality {
		q = DefaultQuality
	}
	q = q / 100
	if mimeType == "image/gif" {
		q = q * maxQualityGIF
	}
	return q
}

func isJPEG(mimeType string) bool {
	return mimeType == "image/jpeg" || mimeType == "image/jpg"
}
