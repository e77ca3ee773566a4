package imaging

import (
	"strings"

	"github.com/spf13/cast"
)

// TIFF/EXIF orientation values.
const (
	OrientationNormal                    = 1
	OrientationMirrorHorizontal          = 2
	OrientationRotate180                 = 3
	OrientationMirrorVertical            = 4
	OrientationMirrorHorizontalRotate270 = 5
	OrientationRotate90                  = 6
	OrientationMirrorHorizontalRotate90  = 7
	OrientationRotate270                 = 8
)

// Orient rotates and flips the layer so that it displays upright for the
// given orientation value. Unknown values leave the layer untouched.
func Orient(l *Layer, orientation int) {
	switch orientation {
	case OrientationMirrorHorizontal:
		l.FlipHorizontally()
	case OrientationRotate180:
		l.Rotate(180)
	case OrientationMirrorVertical:
		l.FlipVertically()
	case OrientationMirrorHorizontalRotate270:
		l.FlipHorizontally()
		l.Rotate(270)
	case OrientationRotate90:
		l.Rotate(90)
	case OrientationMirrorHorizontalRotate90:
		l.FlipHorizontally()
		l.Rotate(90)
	case OrientationRotate270:
		l.Rotate(270)
	}
}

// ParseOrientation reads an orientation property value that may be stored
// as a number or as a string.
func ParseOrientation(v any) (int, bool) {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	o, err := cast.ToIntE(v)
	if err != nil {
		return 0, false
	}
	return o, true
}
