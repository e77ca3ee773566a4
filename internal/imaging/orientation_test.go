package imaging

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrient(t *testing.T) {
	// Top-left pixel of the 2x2 grid after correction.
	tests := []struct {
		orientation int
		topLeft     color.NRGBA
		width       int
	}{
		{orientation: OrientationNormal, topLeft: red, width: 2},
		{orientation: OrientationMirrorHorizontal, topLeft: green, width: 2},
		{orientation: OrientationRotate180, topLeft: white, width: 2},
		{orientation: OrientationMirrorVertical, topLeft: blue, width: 2},
		{orientation: OrientationMirrorHorizontalRotate270, topLeft: red, width: 2},
		{orientation: OrientationRotate90, topLeft: blue, width: 2},
		{orientation: OrientationMirrorHorizontalRotate90, topLeft: white, width: 2},
		{orientation: OrientationRotate270, topLeft: green, width: 2},
		{orientation: 42, topLeft: red, width: 2},
	}

	for _, tt := range tests {
		l := quadLayer(t, 2)
		Orient(l, tt.orientation)
		assert.Equal(t, tt.topLeft, l.Image().NRGBAAt(0, 0), "orientation %d", tt.orientation)
		assert.Equal(t, tt.width, l.Width())
	}
}

func TestOrientRotatesNonSquare(t *testing.T) {
	l := quadLayer(t, 1)
	Orient(l, OrientationRotate90)
	assert.Equal(t, 1, l.Width())
	assert.Equal(t, 2, l.Height())
}

func TestParseOrientation(t *testing.T) {
	o, ok := ParseOrientation("6")
	assert.True(t, ok)
	assert.Equal(t, 6, o)

	o, ok = ParseOrientation(int64(3))
	assert.True(t, ok)
	assert.Equal(t, 3, o)

	_, ok = ParseOrientation("sideways")
	assert.False(t, ok)
}
