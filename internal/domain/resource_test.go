package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourcePaths(t *testing.T) {
	r := Resource{Path: "/content/dam/photo.jpg/jcr:content/renditions/cq5dam.web.1280.1280.jpeg", Type: ResourceTypeFile}
	assert.True(t, r.IsRendition())
	assert.Equal(t, "cq5dam.web.1280.1280.jpeg", r.Name())
	assert.Equal(t, "/content/dam/photo.jpg/jcr:content/renditions", r.ParentPath())

	page := Resource{Path: "/content/site/en", Type: ResourceTypePage}
	assert.False(t, page.IsRendition())
	assert.Equal(t, "/content/site/en/jcr:content/image", ChildPath(page.Path, NameContent, NameImage))

	assert.Equal(t, "", ParentPath("/"))
	assert.Equal(t, "/", ParentPath("/content"))
}

func TestStringProperty(t *testing.T) {
	r := Resource{Properties: map[string]any{"mimetype": "image/png", "n": 6}}
	assert.Equal(t, "image/png", r.StringProperty("mimetype", ""))
	assert.Equal(t, "6", r.StringProperty("n", ""))
	assert.Equal(t, "x", r.StringProperty("missing", "x"))
}
