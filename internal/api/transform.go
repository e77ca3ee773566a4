package api

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dunamismax/transformd/internal/imaging"
	"github.com/dunamismax/transformd/internal/repository"
	"github.com/dunamismax/transformd/internal/resolve"
	"github.com/dunamismax/transformd/internal/transform"
)

const transformSelector = ".transform"

// splitTransformPath splits /content/a.jpg.transform/thumb/image.png into
// the resource path and the suffix /thumb/image.png.
func splitTransformPath(p string) (string, string, bool) {
	i := strings.Index(p, transformSelector+"/")
	if i <= 0 {
		return "", "", false
	}
	return p[:i], p[i+len(transformSelector):], true
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	resourcePath, rawSuffix, ok := splitTransformPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	suffix := transform.ParseSuffix(rawSuffix)
	if !s.dispatcher.Accepts(suffix) {
		http.NotFound(w, r)
		return
	}

	s.avoidUsage.Warn("an image is transformed on the fly, which is resource intensive; "+
		"if this happens often, pre-generate a web rendition or add the size to a processing profile instead",
		zap.String("path", r.URL.Path),
	)

	plan := transform.Merge(s.dispatcher.Select(suffix))
	if !s.allowRequest(w, r, int64(1+plan.Len())) {
		return
	}

	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("transform.resource", resourcePath),
		attribute.StringSlice("transform.names", suffix.TransformNames()),
		attribute.Int("transform.steps", plan.Len()),
	)

	res, found, err := s.repo.Get(ctx, resourcePath)
	if err != nil {
		s.logger.Error("load resource failed", zap.String("path", resourcePath), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load resource")
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	img, err := s.resolver.Resolve(ctx, res)
	if err != nil {
		if errors.Is(err, resolve.ErrNotFound) {
			s.logger.Info("could not resolve image", zap.String("path", resourcePath), zap.Error(err))
			http.NotFound(w, r)
			return
		}
		s.logger.Error("resolve image failed", zap.String("path", resourcePath), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve image")
		return
	}

	data, err := s.repo.ReadBinary(ctx, img.Binary)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrNoBinary) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("read image binary failed", zap.String("path", img.Binary.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	layer, _, err := imaging.Decode(data)
	if err != nil {
		s.logger.Info("image is not decodable", zap.String("path", img.Binary.Path), zap.Error(err))
		http.NotFound(w, r)
		return
	}

	if err := img.ApplyAuthoredEdits(layer); err != nil {
		s.logger.Debug("skipping authored image edit", zap.Error(err))
	}
	imaging.Orient(layer, img.Orientation)

	layer, err = s.dispatcher.Apply(layer, plan, suffix.URLParams())
	if err != nil {
		if errors.Is(err, transform.ErrInvalidParams) || errors.Is(err, imaging.ErrInvalidDimensions) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("apply transforms failed", zap.String("path", resourcePath), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to transform image")
		return
	}

	mimeType := outputMimeType(suffix.Last(), img.MimeType)
	progressive := s.dispatcher.Progressive(mimeType, plan)
	out, err := imaging.Encode(layer, imaging.EncodeOptions{
		MimeType:    mimeType,
		Quality:     transform.Quality(mimeType, plan),
		Progressive: progressive,
	})
	if err != nil {
		s.logger.Error("encode image failed", zap.String("mime_type", mimeType), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to encode image")
		return
	}
	if progressive && !out.Progressive {
		s.logger.Debug("progressive encoding unavailable, wrote baseline jpeg", zap.String("path", resourcePath))
	}

	s.metrics.transformsTotal.WithLabelValues(out.MimeType).Inc()
	s.metrics.transformOutputBytes.Observe(float64(len(out.Data)))

	w.Header().Set("Content-Type", out.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(out.Data)
	}
}

// outputMimeType picks the mime type from the requested filename's
// extension, falling back to the image's own type and then png when the
// extension marks the original or has no encoder.
func outputMimeType(filename, imageMimeType string) string {
	lower := strings.ToLower(filename)
	if !strings.HasSuffix(lower, ".orig") && !strings.HasSuffix(lower, ".original") {
		if byExt := mime.TypeByExtension(path.Ext(lower)); byExt != "" && imaging.Supports(byExt) {
			return baseMimeType(byExt)
		}
	}
	if imageMimeType != "" && imaging.Supports(imageMimeType) {
		return baseMimeType(imageMimeType)
	}
	return imaging.MimePNG
}

func baseMimeType(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}
