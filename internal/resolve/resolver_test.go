package resolve

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dunamismax/transformd/internal/domain"
	"github.com/dunamismax/transformd/internal/imaging"
	"github.com/dunamismax/transformd/internal/repository"
)

func layerOf(w, h int) *imaging.Layer {
	return imaging.NewLayer(image.NewNRGBA(image.Rect(0, 0, w, h)))
}

func put(t *testing.T, repo *repository.MemoryRepository, res domain.Resource, binary []byte) domain.Resource {
	t.Helper()
	require.NoError(t, repo.Put(context.Background(), res, binary))
	got, ok, err := repo.Get(context.Background(), res.Path)
	require.NoError(t, err)
	require.True(t, ok)
	return got
}

func TestResolveAssetPicksWebRendition(t *testing.T) {
	repo := repository.NewMemoryRepository()
	asset := put(t, repo, domain.Resource{Path: "/content/dam/a.jpg", Type: domain.ResourceTypeAsset}, nil)
	put(t, repo, domain.Resource{Path: "/content/dam/a.jpg/jcr:content/renditions/original", Type: domain.ResourceTypeRendition, MimeType: "image/jpeg"}, []byte("orig"))
	put(t, repo, domain.Resource{Path: "/content/dam/a.jpg/jcr:content/renditions/cq5dam.web.1280.1280.jpeg", Type: domain.ResourceTypeRendition, MimeType: "image/jpeg"}, []byte("web"))
	put(t, repo, domain.Resource{
		Path:       "/content/dam/a.jpg/jcr:content/metadata",
		Type:       domain.ResourceTypeUnstructured,
		Properties: map[string]any{domain.PropertyOrientation: "6"},
	}, nil)

	r := NewResolver(repo, nil, zaptest.NewLogger(t))
	img, err := r.Resolve(context.Background(), asset)
	require.NoError(t, err)

	assert.Equal(t, "/content/dam/a.jpg/jcr:content/renditions/cq5dam.web.1280.1280.jpeg", img.Binary.Path)
	assert.Equal(t, asset.Path, img.Resource.Path)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, imaging.OrientationRotate90, img.Orientation)
}

func TestResolveAssetFallsBackToOriginal(t *testing.T) {
	repo := repository.NewMemoryRepository()
	asset := put(t, repo, domain.Resource{Path: "/content/dam/b.png", Type: domain.ResourceTypeAsset}, nil)
	put(t, repo, domain.Resource{Path: "/content/dam/b.png/jcr:content/renditions/cq5dam.thumbnail.48.48.png", Type: domain.ResourceTypeRendition}, []byte("thumb"))
	put(t, repo, domain.Resource{Path: "/content/dam/b.png/jcr:content/renditions/original", Type: domain.ResourceTypeRendition, MimeType: "image/png"}, []byte("orig"))

	r := NewResolver(repo, nil, zaptest.NewLogger(t))
	img, err := r.Resolve(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, "/content/dam/b.png/jcr:content/renditions/original", img.Binary.Path)
	assert.Equal(t, imaging.OrientationNormal, img.Orientation)
}

func TestResolveAssetWithoutRenditions(t *testing.T) {
	repo := repository.NewMemoryRepository()
	asset := put(t, repo, domain.Resource{Path: "/content/dam/empty.png", Type: domain.ResourceTypeAsset}, nil)

	_, err := NewResolver(repo, nil, nil).Resolve(context.Background(), asset)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveCustomPicker(t *testing.T) {
	repo := repository.NewMemoryRepository()
	asset := put(t, repo, domain.Resource{Path: "/content/dam/c.jpg", Type: domain.ResourceTypeAsset}, nil)
	put(t, repo, domain.Resource{Path: "/content/dam/c.jpg/jcr:content/renditions/cq5dam.web.1280.1280.jpeg", Type: domain.ResourceTypeRendition}, []byte("web"))
	put(t, repo, domain.Resource{Path: "/content/dam/c.jpg/jcr:content/renditions/cq5dam.thumbnail.319.319.png", Type: domain.ResourceTypeRendition}, []byte("thumb"))

	picker := CompileRenditionPicker(`cq5dam\.thumbnail\.319\..*`, zaptest.NewLogger(t))
	img, err := NewResolver(repo, picker, nil).Resolve(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, "cq5dam.thumbnail.319.319.png", img.Binary.Name())
}

func TestCompileRenditionPickerFallsBack(t *testing.T) {
	logger := zaptest.NewLogger(t)
	assert.Equal(t, DefaultRenditionPicker, CompileRenditionPicker("", logger).String())
	assert.Equal(t, DefaultRenditionPicker, CompileRenditionPicker("cq5dam.(", logger).String())
}

func TestResolveFileResource(t *testing.T) {
	repo := repository.NewMemoryRepository()
	file := put(t, repo, domain.Resource{Path: "/content/files/logo.png", Type: domain.ResourceTypeFile}, nil)
	put(t, repo, domain.Resource{Path: "/content/files/logo.png/jcr:content", Type: domain.ResourceTypeResource, MimeType: "image/png"}, []byte("png"))

	img, err := NewResolver(repo, nil, nil).Resolve(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "/content/files/logo.png/jcr:content", img.Binary.Path)
	assert.Equal(t, "image/png", img.MimeType)
}

func TestResolvePageWalksUpToAncestorImage(t *testing.T) {
	repo := repository.NewMemoryRepository()
	put(t, repo, domain.Resource{Path: "/content/site", Type: domain.ResourceTypePage}, nil)
	put(t, repo, domain.Resource{Path: "/content/site/jcr:content", Type: domain.ResourceTypePageContent}, nil)
	put(t, repo, domain.Resource{
		Path:       "/content/site/jcr:content/image",
		Type:       domain.ResourceTypeImageComponent,
		Properties: map[string]any{domain.PropertyFileReference: "/content/dam/hero.jpg"},
	}, nil)
	put(t, repo, domain.Resource{Path: "/content/dam/hero.jpg", Type: domain.ResourceTypeAsset}, nil)
	put(t, repo, domain.Resource{Path: "/content/dam/hero.jpg/jcr:content/renditions/original", Type: domain.ResourceTypeRendition, MimeType: "image/jpeg"}, []byte("hero"))

	child := put(t, repo, domain.Resource{Path: "/content/site/about", Type: domain.ResourceTypePage}, nil)
	put(t, repo, domain.Resource{Path: "/content/site/about/jcr:content", Type: domain.ResourceTypePageContent}, nil)

	img, err := NewResolver(repo, nil, zaptest.NewLogger(t)).Resolve(context.Background(), child)
	require.NoError(t, err)
	assert.Equal(t, "/content/site/jcr:content/image", img.Resource.Path)
	assert.Equal(t, "/content/dam/hero.jpg/jcr:content/renditions/original", img.Binary.Path)
	assert.Equal(t, "image/jpeg", img.MimeType)
}

func TestResolvePageContent(t *testing.T) {
	repo := repository.NewMemoryRepository()
	put(t, repo, domain.Resource{Path: "/content/site", Type: domain.ResourceTypePage}, nil)
	content := put(t, repo, domain.Resource{Path: "/content/site/jcr:content", Type: domain.ResourceTypePageContent}, nil)
	put(t, repo, domain.Resource{Path: "/content/site/jcr:content/image", Type: domain.ResourceTypeImageComponent, MimeType: "image/png"}, []byte("inline"))

	img, err := NewResolver(repo, nil, nil).Resolve(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, "/content/site/jcr:content/image", img.Binary.Path)
}

func TestResolvePageWithoutImage(t *testing.T) {
	repo := repository.NewMemoryRepository()
	page := put(t, repo, domain.Resource{Path: "/content/bare", Type: domain.ResourceTypePage}, nil)

	_, err := NewResolver(repo, nil, nil).Resolve(context.Background(), page)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveComponentOnPageUsesComponent(t *testing.T) {
	repo := repository.NewMemoryRepository()
	put(t, repo, domain.Resource{Path: "/content/site", Type: domain.ResourceTypePage}, nil)
	put(t, repo, domain.Resource{Path: "/content/site/jcr:content", Type: domain.ResourceTypePageContent}, nil)
	put(t, repo, domain.Resource{Path: "/content/site/jcr:content/image", Type: domain.ResourceTypeImageComponent}, []byte("page"))
	teaser := put(t, repo, domain.Resource{Path: "/content/site/jcr:content/par/teaser", Type: domain.ResourceTypeImageComponent, MimeType: "image/gif"}, []byte("teaser"))

	img, err := NewResolver(repo, nil, nil).Resolve(context.Background(), teaser)
	require.NoError(t, err)
	assert.Equal(t, teaser.Path, img.Binary.Path)
	assert.Equal(t, "image/gif", img.MimeType)
}

func TestResolveLocalSocialImageWithoutChildUsesItself(t *testing.T) {
	repo := repository.NewMemoryRepository()
	social := put(t, repo, domain.Resource{
		Path:       "/content/usergenerated/photo",
		Type:       domain.ResourceTypeLocalSocialImage,
		Properties: map[string]any{domain.PropertyMimeType: "image/png"},
	}, []byte("ugc"))

	img, err := NewResolver(repo, nil, nil).Resolve(context.Background(), social)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, social.Path, img.Binary.Path)
}

func TestResolveUnknownWithoutBinary(t *testing.T) {
	repo := repository.NewMemoryRepository()
	res := put(t, repo, domain.Resource{Path: "/content/misc/thing", Type: domain.ResourceTypeUnstructured}, nil)

	_, err := NewResolver(repo, nil, nil).Resolve(context.Background(), res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveFileReferenceCycleTerminates(t *testing.T) {
	repo := repository.NewMemoryRepository()
	a := put(t, repo, domain.Resource{Path: "/content/a", Type: domain.ResourceTypeUnstructured, Properties: map[string]any{domain.PropertyFileReference: "/content/b"}}, nil)
	put(t, repo, domain.Resource{Path: "/content/b", Type: domain.ResourceTypeUnstructured, Properties: map[string]any{domain.PropertyFileReference: "/content/a"}}, nil)

	_, err := NewResolver(repo, nil, nil).Resolve(context.Background(), a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveLocalSocialImageChild(t *testing.T) {
	repo := repository.NewMemoryRepository()
	social := put(t, repo, domain.Resource{
		Path:       "/content/usergenerated/upload",
		Type:       domain.ResourceTypeLocalSocialImage,
		Properties: map[string]any{domain.PropertyMimeType: "image/jpeg"},
	}, nil)
	put(t, repo, domain.Resource{Path: "/content/usergenerated/upload/image", Type: domain.ResourceTypeResource, MimeType: "image/png"}, []byte("child"))

	img, err := NewResolver(repo, nil, nil).Resolve(context.Background(), social)
	require.NoError(t, err)
	assert.Equal(t, "/content/usergenerated/upload/image", img.Binary.Path)
	assert.Equal(t, "image/jpeg", img.MimeType, "the social resource's mimetype wins")
	assert.Equal(t, social.Path, img.Resource.Path)
}

func TestResolveLocalSocialNonImageIsNotSocial(t *testing.T) {
	repo := repository.NewMemoryRepository()
	doc := put(t, repo, domain.Resource{
		Path:       "/content/usergenerated/doc",
		Type:       domain.ResourceTypeLocalSocialImage,
		Properties: map[string]any{domain.PropertyMimeType: "application/pdf"},
	}, []byte("pdf"))
	put(t, repo, domain.Resource{Path: "/content/usergenerated/doc/image", Type: domain.ResourceTypeResource}, []byte("preview"))

	img, err := NewResolver(repo, nil, nil).Resolve(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, doc.Path, img.Binary.Path)
}

func TestResolveRemoteSocialImage(t *testing.T) {
	repo := repository.NewMemoryRepository()
	remote := put(t, repo, domain.Resource{Path: "/content/social/remote", Type: domain.ResourceTypeRemoteSocialImage}, nil)
	put(t, repo, domain.Resource{Path: "/content/social/remote/image", Type: domain.ResourceTypeResource, MimeType: "image/gif"}, []byte("gif"))

	img, err := NewResolver(repo, nil, nil).Resolve(context.Background(), remote)
	require.NoError(t, err)
	assert.Equal(t, "/content/social/remote/image", img.Binary.Path)
	assert.Equal(t, "image/gif", img.MimeType)
}

func TestResolveRemoteSocialImageWithoutChild(t *testing.T) {
	repo := repository.NewMemoryRepository()
	remote := put(t, repo, domain.Resource{Path: "/content/social/inline", Type: domain.ResourceTypeRemoteSocialImage, MimeType: "image/jpeg"}, []byte("jpeg"))

	img, err := NewResolver(repo, nil, nil).Resolve(context.Background(), remote)
	require.NoError(t, err)
	assert.Equal(t, remote.Path, img.Binary.Path)
	assert.Equal(t, "image/jpeg", img.MimeType)
}

func TestResolveAuthoredCropAndRotate(t *testing.T) {
	repo := repository.NewMemoryRepository()
	put(t, repo, domain.Resource{Path: "/content/site", Type: domain.ResourceTypePage}, nil)
	put(t, repo, domain.Resource{Path: "/content/site/jcr:content", Type: domain.ResourceTypePageContent}, nil)
	teaser := put(t, repo, domain.Resource{
		Path: "/content/site/jcr:content/par/teaser",
		Type: domain.ResourceTypeImageComponent,
		Properties: map[string]any{
			domain.PropertyImageCrop:   "10,5,40,25/100,50",
			domain.PropertyImageRotate: 270,
		},
	}, []byte("teaser"))

	img, err := NewResolver(repo, nil, nil).Resolve(context.Background(), teaser)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 5, 40, 25), img.Crop)
	assert.Equal(t, 270.0, img.Rotate)

	layer := layerOf(100, 50)
	require.NoError(t, img.ApplyAuthoredEdits(layer))
	assert.Equal(t, 20, layer.Width())
	assert.Equal(t, 30, layer.Height())
}

func TestResolveIgnoresMalformedAuthoredEdits(t *testing.T) {
	repo := repository.NewMemoryRepository()
	res := put(t, repo, domain.Resource{
		Path: "/content/files/odd",
		Type: domain.ResourceTypeImageComponent,
		Properties: map[string]any{
			domain.PropertyImageCrop:   "1,2,three,4",
			domain.PropertyImageRotate: "NaN",
		},
	}, []byte("odd"))

	img, err := NewResolver(repo, nil, zaptest.NewLogger(t)).Resolve(context.Background(), res)
	require.NoError(t, err)
	assert.True(t, img.Crop.Empty())
	assert.Zero(t, img.Rotate)

	layer := layerOf(10, 10)
	require.NoError(t, img.ApplyAuthoredEdits(layer))
	assert.Equal(t, 10, layer.Width())
}

func TestApplyAuthoredEditsSkipsCropOutsideLayer(t *testing.T) {
	img := Image{Crop: image.Rect(50, 50, 60, 60), Rotate: 90}
	layer := layerOf(20, 10)

	err := img.ApplyAuthoredEdits(layer)
	require.Error(t, err)
	assert.ErrorIs(t, err, imaging.ErrInvalidDimensions)
	assert.Equal(t, 10, layer.Width(), "rotation still applies")
	assert.Equal(t, 20, layer.Height())
}
