package api

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dunamismax/transformd/internal/domain"
	"github.com/dunamismax/transformd/internal/imaging"
	"github.com/dunamismax/transformd/internal/ratelimit"
	"github.com/dunamismax/transformd/internal/repository"
	"github.com/dunamismax/transformd/internal/transform"
)

type fakeLimiter struct {
	decision ratelimit.Decision
	subjects []string
	costs    []int64
}

func (l *fakeLimiter) Allow(_ context.Context, subject string, cost int64) (ratelimit.Decision, error) {
	l.subjects = append(l.subjects, subject)
	l.costs = append(l.costs, cost)
	return l.decision, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTransformServer(t *testing.T, limiter RateLimiter) (*Server, *repository.MemoryRepository) {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.Put(ctx, domain.Resource{Path: "/content/dam/a.png", Type: domain.ResourceTypeAsset}, nil))
	require.NoError(t, repo.Put(ctx, domain.Resource{
		Path:     "/content/dam/a.png/jcr:content/renditions/original",
		Type:     domain.ResourceTypeRendition,
		MimeType: imaging.MimePNG,
	}, pngBytes(t, 40, 20)))
	require.NoError(t, repo.Put(ctx, domain.Resource{Path: "/content/dam/broken.png", Type: domain.ResourceTypeAsset}, nil))
	require.NoError(t, repo.Put(ctx, domain.Resource{
		Path: "/content/dam/broken.png/jcr:content/renditions/original",
		Type: domain.ResourceTypeRendition,
	}, []byte("not an image")))

	reg := transform.NewRegistry()
	transform.RegisterBuiltins(reg)
	reg.BindNamed(transform.Named{Name: "thumb", Steps: []transform.Step{
		{Type: transform.TypeResize, Params: transform.Params{"width": 10}},
	}})
	reg.BindNamed(transform.Named{Name: "grey", Steps: []transform.Step{
		{Type: transform.TypeGreyscale, Params: transform.Params{}},
		{Type: transform.TypeQuality, Params: transform.Params{"quality": 50}},
	}})
	reg.BindNamed(transform.Named{Name: "cropped", Steps: []transform.Step{
		{Type: transform.TypeCrop, Params: transform.Params{"addUrlParams": true, "smart": false}},
	}})

	s, err := NewServer(Deps{
		Logger:      logger,
		Dispatcher:  transform.NewDispatcher(reg, nil, logger),
		Repository:  repo,
		RateLimiter: limiter,
	})
	require.NoError(t, err)
	return s, repo
}

func get(s *Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestTransformResizesAsset(t *testing.T) {
	s, _ := newTransformServer(t, nil)

	rec := get(s, "/content/dam/a.png.transform/thumb/image.png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, imaging.MimePNG, rec.Header().Get("Content-Type"))

	w, h := decodeSize(t, rec.Body.Bytes())
	assert.Equal(t, 10, w)
	assert.Equal(t, 5, h)
}

func TestTransformChainWithCacheBusterAndJPEGOutput(t *testing.T) {
	s, _ := newTransformServer(t, nil)

	rec := get(s, "/content/dam/a.png.transform/thumb/grey/1700000000/img.jpg")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, imaging.MimeJPEG, rec.Header().Get("Content-Type"))

	w, h := decodeSize(t, rec.Body.Bytes())
	assert.Equal(t, 10, w)
	assert.Equal(t, 5, h)
}

func TestTransformOriginalExtensionKeepsImageType(t *testing.T) {
	s, _ := newTransformServer(t, nil)

	rec := get(s, "/content/dam/a.png.transform/grey/image.orig")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, imaging.MimePNG, rec.Header().Get("Content-Type"))
}

func TestTransformURLParams(t *testing.T) {
	s, _ := newTransformServer(t, nil)

	rec := get(s, "/content/dam/a.png.transform/cropped/x:5/y:5/width:8/height:4/image.png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	w, h := decodeSize(t, rec.Body.Bytes())
	assert.Equal(t, 8, w)
	assert.Equal(t, 4, h)

	rec = get(s, "/content/dam/a.png.transform/cropped/x:35/y:0/width:10/height:10/image.png")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransformOrientation(t *testing.T) {
	s, repo := newTransformServer(t, nil)
	require.NoError(t, repo.Put(context.Background(), domain.Resource{
		Path:       "/content/dam/a.png/jcr:content/metadata",
		Type:       domain.ResourceTypeUnstructured,
		Properties: map[string]any{domain.PropertyOrientation: 6},
	}, nil))

	rec := get(s, "/content/dam/a.png.transform/grey/image.png")
	require.Equal(t, http.StatusOK, rec.Code)
	w, h := decodeSize(t, rec.Body.Bytes())
	assert.Equal(t, 20, w)
	assert.Equal(t, 40, h)
}

func TestTransformNotFound(t *testing.T) {
	s, _ := newTransformServer(t, nil)

	for _, target := range []string{
		"/content/dam/a.png",
		"/content/dam/a.png.transform/unknown/image.png",
		"/content/dam/a.png.transform/thumb/photo.png",
		"/content/dam/a.png.transform/thumb",
		"/content/dam/missing.png.transform/thumb/image.png",
		"/content/dam/broken.png.transform/thumb/image.png",
	} {
		rec := get(s, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestTransformRateLimitCostsPlanSize(t *testing.T) {
	limiter := &fakeLimiter{decision: ratelimit.Decision{Allowed: false, Remaining: 0, RetryAfter: 1500 * time.Millisecond}}
	s, _ := newTransformServer(t, limiter)

	req := httptest.NewRequest(http.MethodGet, "/content/dam/a.png.transform/thumb/grey/image.png", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.Len(t, limiter.costs, 1)
	// resize, greyscale and quality
	assert.EqualValues(t, 4, limiter.costs[0])
	assert.Equal(t, "user-1:/{path}.transform/{suffix}", limiter.subjects[0])
}

func TestTransformRateLimitAllowed(t *testing.T) {
	limiter := &fakeLimiter{decision: ratelimit.Decision{Allowed: true, Remaining: 7}}
	s, _ := newTransformServer(t, limiter)

	rec := get(s, "/content/dam/a.png.transform/thumb/image.png")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestSplitTransformPath(t *testing.T) {
	res, suffix, ok := splitTransformPath("/content/dam/a.jpg.transform/thumb/image.png")
	require.True(t, ok)
	assert.Equal(t, "/content/dam/a.jpg", res)
	assert.Equal(t, "/thumb/image.png", suffix)

	_, _, ok = splitTransformPath("/content/dam/a.jpg")
	assert.False(t, ok)
	_, _, ok = splitTransformPath(".transform/thumb/image.png")
	assert.False(t, ok)
}

func TestOutputMimeType(t *testing.T) {
	assert.Equal(t, imaging.MimeJPEG, outputMimeType("image.jpg", imaging.MimePNG))
	assert.Equal(t, imaging.MimeGIF, outputMimeType("image.gif", imaging.MimePNG))
	assert.Equal(t, imaging.MimeGIF, outputMimeType("image.orig", imaging.MimeGIF))
	assert.Equal(t, imaging.MimeJPEG, outputMimeType("image.original", "image/jpeg"))
	assert.Equal(t, imaging.MimePNG, outputMimeType("image.unknownext", ""))
	assert.Equal(t, imaging.MimePNG, outputMimeType("image.txt", "application/pdf"))
}

func TestTransformAppliesAuthoredCropAndRotate(t *testing.T) {
	s, repo := newTransformServer(t, nil)
	require.NoError(t, repo.Put(context.Background(), domain.Resource{
		Path:     "/content/files/hero",
		Type:     domain.ResourceTypeImageComponent,
		MimeType: imaging.MimePNG,
		Properties: map[string]any{
			domain.PropertyImageCrop:   "0,0,30,10",
			domain.PropertyImageRotate: "90",
		},
	}, pngBytes(t, 40, 20)))

	rec := get(s, "/content/files/hero.transform/grey/image.png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	w, h := decodeSize(t, rec.Body.Bytes())
	assert.Equal(t, 10, w)
	assert.Equal(t, 30, h)
}

func TestTransformSkipsStaleAuthoredCrop(t *testing.T) {
	s, repo := newTransformServer(t, nil)
	require.NoError(t, repo.Put(context.Background(), domain.Resource{
		Path:       "/content/files/stale",
		Type:       domain.ResourceTypeImageComponent,
		MimeType:   imaging.MimePNG,
		Properties: map[string]any{domain.PropertyImageCrop: "100,100,200,200"},
	}, pngBytes(t, 40, 20)))

	rec := get(s, "/content/files/stale.transform/grey/image.png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	w, h := decodeSize(t, rec.Body.Bytes())
	assert.Equal(t, 40, w)
	assert.Equal(t, 20, h)
}
