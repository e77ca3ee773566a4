package resolve

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/dunamismax/transformd/internal/domain"
	"github.com/dunamismax/transformd/internal/imaging"
	"github.com/dunamismax/transformd/internal/repository"
)

const (
	DefaultRenditionPicker = `cq5dam\.web\.(.*)`

	// bounds fileReference and child-file indirection
	maxBinaryHops = 4
)

var ErrNotFound = errors.New("image not found")

// Image is the outcome of resolution: the resource the image belongs to
// (source of orientation metadata) and the resource holding its bytes.
type Image struct {
	Resource    domain.Resource
	Binary      domain.Resource
	MimeType    string
	Orientation int
	// Crop and Rotate are the edits authored on the holder (imageCrop,
	// imageRotate). An empty Crop and a zero Rotate leave the layer as is.
	Crop        image.Rectangle
	Rotate      float64
}

// ApplyAuthoredEdits crops and then rotates layer as authored on the image
// holder. A crop that no longer overlaps the layer is skipped and reported.
func (img Image) ApplyAuthoredEdits(layer *imaging.Layer) error {
	var cropErr error
	if !img.Crop.Empty() {
		if err := layer.Crop(img.Crop); err != nil {
			cropErr = fmt.Errorf("authored crop %v of %s: %w", img.Crop, img.Resource.Path, err)
		}
	}
	if img.Rotate != 0 {
		layer.Rotate(img.Rotate)
	}
	return cropErr
}

type Resolver struct {
	repo   repository.Repository
	picker *regexp.Regexp
	logger *zap.Logger
}

func NewResolver(repo repository.Repository, picker *regexp.Regexp, logger *zap.Logger) *Resolver {
	if picker == nil {
		picker = regexp.MustCompile(DefaultRenditionPicker)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{repo: repo, picker: picker, logger: logger}
}

// CompileRenditionPicker compiles expr, falling back to the default picker
// when expr is empty or invalid.
func CompileRenditionPicker(expr string, logger *zap.Logger) *regexp.Regexp {
	if strings.TrimSpace(expr) == "" {
		return regexp.MustCompile(DefaultRenditionPicker)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		if logger != nil {
			logger.Error("invalid rendition picker regex, using default",
				zap.String("regex", expr),
				zap.String("default", DefaultRenditionPicker),
				zap.Error(err),
			)
		}
		return regexp.MustCompile(DefaultRenditionPicker)
	}
	return re
}

// Resolve finds the image to render for res, trying in order: DAM asset
// rendition, the rendition or file itself, the containing page's image,
// social images, and finally the resource itself.
func (r *Resolver) Resolve(ctx context.Context, res domain.Resource) (Image, error) {
	switch {
	case res.IsType(domain.ResourceTypeAsset):
		return r.resolveAsset(ctx, res)
	case res.IsRendition() || res.IsType(domain.ResourceTypeFile) || res.IsType(domain.ResourceTypeResource):
		return r.image(ctx, res, res)
	}

	page, ok, err := r.containingPage(ctx, res.Path)
	if err != nil {
		return Image{}, err
	}
	if ok {
		return r.resolvePage(ctx, page, res)
	}

	localSocial := res.IsType(domain.ResourceTypeLocalSocialImage) &&
		strings.HasPrefix(res.StringProperty(domain.PropertyMimeType, ""), "image/")
	if localSocial || res.IsType(domain.ResourceTypeRemoteSocialImage) {
		candidate := res
		if child, ok, err := repository.Child(ctx, r.repo, res.Path, domain.NameImage); err != nil {
			return Image{}, err
		} else if ok {
			candidate = child
		}
		img, err := r.image(ctx, res, candidate)
		if err != nil {
			return Image{}, err
		}
		if localSocial {
			img.MimeType = res.StringProperty(domain.PropertyMimeType, img.MimeType)
		}
		return img, nil
	}

	return r.image(ctx, res, res)
}

func (r *Resolver) resolveAsset(ctx context.Context, asset domain.Resource) (Image, error) {
	renditionsPath := domain.ChildPath(asset.Path, domain.NameContent, domain.NameRenditions)
	renditions, err := r.repo.Children(ctx, renditionsPath)
	if err != nil {
		return Image{}, fmt.Errorf("list renditions of %s: %w", asset.Path, err)
	}

	var picked *domain.Resource
	var original *domain.Resource
	for i := range renditions {
		name := renditions[i].Name()
		if picked == nil && r.picker.MatchString(name) {
			picked = &renditions[i]
		}
		if name == domain.NameOriginal {
			original = &renditions[i]
		}
	}

	if picked == nil {
		r.logger.Warn("could not find rendition, using original",
			zap.String("picker", r.picker.String()),
			zap.String("path", asset.Path),
		)
		if original == nil {
			return Image{}, fmt.Errorf("%w: asset %s has no original rendition", ErrNotFound, asset.Path)
		}
		picked = original
	}

	return r.image(ctx, asset, *picked)
}

func (r *Resolver) resolvePage(ctx context.Context, page, res domain.Resource) (Image, error) {
	contentPath := domain.ChildPath(page.Path, domain.NameContent)
	if !res.IsType(domain.ResourceTypePage) && res.Path != contentPath {
		return r.image(ctx, res, res)
	}

	// walk up the page tree to the first page with an image
	current := page
	for {
		imageRes, ok, err := repository.Child(ctx, r.repo, current.Path, domain.NameContent, domain.NameImage)
		if err != nil {
			return Image{}, err
		}
		if ok {
			return r.image(ctx, imageRes, imageRes)
		}

		parent, found, err := r.containingPage(ctx, domain.ParentPath(current.Path))
		if err != nil {
			return Image{}, err
		}
		if !found {
			break
		}
		current = parent
	}

	return Image{}, fmt.Errorf("%w: no page image at or above %s", ErrNotFound, page.Path)
}

// containingPage returns the nearest cq:Page at or above p.
func (r *Resolver) containingPage(ctx context.Context, p string) (domain.Resource, bool, error) {
	for p != "" {
		res, ok, err := r.repo.Get(ctx, p)
		if err != nil {
			return domain.Resource{}, false, fmt.Errorf("load %s: %w", p, err)
		}
		if ok && res.IsType(domain.ResourceTypePage) {
			return res, true, nil
		}
		p = domain.ParentPath(p)
	}
	return domain.Resource{}, false, nil
}

func (r *Resolver) image(ctx context.Context, holder, candidate domain.Resource) (Image, error) {
	binary, err := r.binaryFor(ctx, candidate, 0)
	if err != nil {
		return Image{}, err
	}

	mimeType := binary.MimeType
	if mimeType == "" {
		mimeType = holder.MimeType
	}
	if mimeType == "" {
		mimeType = imaging.MimePNG
	}

	return Image{
		Resource:    holder,
		Binary:      binary,
		MimeType:    mimeType,
		Orientation: r.orientation(ctx, holder),
		Crop:        r.authoredCrop(holder),
		Rotate:      r.authoredRotate(holder),
	}, nil
}

// authoredCrop parses imageCrop as "x1,y1,x2,y2". Anything after a "/" is
// ignored.
func (r *Resolver) authoredCrop(holder domain.Resource) image.Rectangle {
	raw := strings.TrimSpace(holder.StringProperty(domain.PropertyImageCrop, ""))
	if raw == "" {
		return image.Rectangle{}
	}
	coords, _, _ := strings.Cut(raw, "/")
	parts := strings.Split(coords, ",")
	if len(parts) != 4 {
		r.logger.Debug("ignoring malformed image crop", zap.String("path", holder.Path), zap.String("crop", raw))
		return image.Rectangle{}
	}
	vals := make([]int, 4)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 {
			r.logger.Debug("ignoring malformed image crop", zap.String("path", holder.Path), zap.String("crop", raw))
			return image.Rectangle{}
		}
		vals[i] = v
	}
	return image.Rect(vals[0], vals[1], vals[2], vals[3])
}

func (r *Resolver) authoredRotate(holder domain.Resource) float64 {
	v, ok := holder.Properties[domain.PropertyImageRotate]
	if !ok || v == nil {
		return 0
	}
	if s, isString := v.(string); isString {
		v = strings.TrimSpace(s)
	}
	degrees, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		r.logger.Debug("ignoring unparsable image rotation", zap.String("path", holder.Path), zap.Any("rotate", v))
		return 0
	}
	return degrees
}

// binaryFor follows fileReference properties, asset originals and
// jcr:content / file children to the resource that carries bytes.
func (r *Resolver) binaryFor(ctx context.Context, res domain.Resource, hops int) (domain.Resource, error) {
	if res.HasBinary() {
		return res, nil
	}
	if hops >= maxBinaryHops {
		return domain.Resource{}, fmt.Errorf("%w: too many indirections at %s", ErrNotFound, res.Path)
	}

	if res.IsType(domain.ResourceTypeAsset) {
		original, ok, err := repository.Child(ctx, r.repo, res.Path, domain.NameContent, domain.NameRenditions, domain.NameOriginal)
		if err != nil {
			return domain.Resource{}, err
		}
		if ok {
			return r.binaryFor(ctx, original, hops+1)
		}
	}

	if ref := strings.TrimSpace(res.StringProperty(domain.PropertyFileReference, "")); ref != "" {
		target, ok, err := r.repo.Get(ctx, ref)
		if err != nil {
			return domain.Resource{}, err
		}
		if ok {
			return r.binaryFor(ctx, target, hops+1)
		}
		r.logger.Warn("dangling file reference", zap.String("path", res.Path), zap.String("reference", ref))
	}

	for _, name := range []string{domain.NameContent, "file"} {
		child, ok, err := repository.Child(ctx, r.repo, res.Path, name)
		if err != nil {
			return domain.Resource{}, err
		}
		if ok {
			if bin, err := r.binaryFor(ctx, child, hops+1); err == nil {
				return bin, nil
			}
		}
	}

	return domain.Resource{}, fmt.Errorf("%w: %s has no binary", ErrNotFound, res.Path)
}

// orientation reads tiff:Orientation from the holder's jcr:content/metadata.
func (r *Resolver) orientation(ctx context.Context, holder domain.Resource) int {
	meta, ok, err := repository.Child(ctx, r.repo, holder.Path, domain.NameContent, domain.NameMetadata)
	if err != nil || !ok {
		return imaging.OrientationNormal
	}
	v, ok := meta.Properties[domain.PropertyOrientation]
	if !ok {
		return imaging.OrientationNormal
	}
	o, ok := imaging.ParseOrientation(v)
	if !ok {
		r.logger.Debug("ignoring unparsable orientation", zap.String("path", holder.Path), zap.Any("value", v))
		return imaging.OrientationNormal
	}
	return o
}
