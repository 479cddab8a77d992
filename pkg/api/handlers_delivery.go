package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/snapforge/snapforge/pkg/transform"
)

// handleDeliver serves image bytes with optional on-the-fly transforms.
// The route is public; image IDs are unguessable.
func (s *server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	req, err := transform.ParseRequest(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	img, err := s.images.Get(r.Context(), chi.URLParam(r, "imageID"), "")
	if err != nil {
		s.writeImageError(w, err)

		return
	}

	g, err := s.store.GetGalleryByID(r.Context(), img.GalleryID)
	if err != nil {
		s.internalError(w, err, "loading gallery for delivery")

		return
	}

	params := transform.Resolve(
		transform.Defaults(), s.settingsOverrides(r), transform.FromGallery(g))

	// Content negotiation only applies when the request opts in.
	if req.Auto {
		w.Header().Add("Vary", "Accept")

		if negotiated := transform.Negotiate(r.Header.Get("Accept")); negotiated != "" {
			req.Format = negotiated
		}
	}

	data, err := s.images.Read(r.Context(), img)
	if err != nil {
		s.internalError(w, err, "reading image blob")

		return
	}

	result, err := transform.Render(data, img.MimeType, req, params)
	if err != nil {
		s.internalError(w, err, "transforming image")

		return
	}

	w.Header().Set("Content-Type", result.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if _, err := w.Write(result.Data); err != nil {
		s.log.WithError(err).Debug("Failed to write image response")
	}
}

// settingsOverrides lifts the runtime image settings into a transform
// override layer so admin-tuned defaults apply without a restart.
func (s *server) settingsOverrides(r *http.Request) transform.Overrides {
	img, err := s.settings.Images(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("Failed to load image settings")

		return transform.Overrides{}
	}

	overrides := transform.Overrides{}

	if img.ThumbSize > 0 {
		overrides.ThumbSize = &img.ThumbSize
	}

	if img.ThumbQuality > 0 {
		overrides.ThumbQuality = &img.ThumbQuality
	}

	return overrides
}
