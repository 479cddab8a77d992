package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/snapforge/snapforge/pkg/images"
)

// writeImageError maps image service errors to HTTP responses.
func (s *server) writeImageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, images.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{"image not found"})
	case errors.Is(err, images.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge,
			errorResponse{"upload exceeds maximum size"})
	case errors.Is(err, images.ErrUnsupportedType):
		writeJSON(w, http.StatusUnsupportedMediaType,
			errorResponse{"unsupported image type"})
	case errors.Is(err, images.ErrUndecodable):
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"image data could not be decoded"})
	default:
		s.internalError(w, err, "image operation")
	}
}

func (s *server) handleAPIListImages(w http.ResponseWriter, r *http.Request) {
	g := galleryFromContext(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	// Mirror the service's clamp so the echoed limit is the one used.
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	imgs, total, err := s.images.List(
		r.Context(), g.ID, (page-1)*limit, limit)
	if err != nil {
		s.internalError(w, err, "listing images")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"images": imgs,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

func (s *server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	g := galleryFromContext(r.Context())

	// Cap the multipart body before any read.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Images.MaxUploadSize+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"multipart file field is required"})

		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"reading upload"})

		return
	}

	img, err := s.images.Upload(r.Context(), g, header.Filename, data)
	if err != nil {
		s.writeImageError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, img)
}

func (s *server) handleAPIGetImage(w http.ResponseWriter, r *http.Request) {
	g := galleryFromContext(r.Context())

	img, err := s.images.Get(r.Context(), chi.URLParam(r, "id"), g.ID)
	if err != nil {
		s.writeImageError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, img)
}

func (s *server) handleAPIDeleteImage(w http.ResponseWriter, r *http.Request) {
	g := galleryFromContext(r.Context())

	if err := s.images.Delete(
		r.Context(), chi.URLParam(r, "id"), g.ID); err != nil {
		s.writeImageError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleAPIBulkDelete(w http.ResponseWriter, r *http.Request) {
	g := galleryFromContext(r.Context())

	var req struct {
		IDs []string `json:"ids"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"ids array is required"})

		return
	}

	result, err := s.images.BulkDelete(r.Context(), g.ID, req.IDs)
	if err != nil {
		s.internalError(w, err, "bulk deleting images")

		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleAPIUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	g := galleryFromContext(r.Context())

	var patch images.MetadataPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	img, err := s.images.UpdateMetadata(
		r.Context(), chi.URLParam(r, "id"), g.ID, patch)
	if err != nil {
		s.writeImageError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, img)
}

func (s *server) handleAPIListImageTags(w http.ResponseWriter, r *http.Request) {
	g := galleryFromContext(r.Context())

	tags, err := s.images.ListTags(r.Context(), chi.URLParam(r, "id"), g.ID)
	if err != nil {
		s.writeImageError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *server) handleAPISetImageTags(w http.ResponseWriter, r *http.Request) {
	g := galleryFromContext(r.Context())

	var req struct {
		TagIDs []string `json:"tag_ids"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	tags, err := s.images.SetTags(
		r.Context(), chi.URLParam(r, "id"), g.ID, req.TagIDs)
	if err != nil {
		if errors.Is(err, images.ErrNotFound) {
			s.writeImageError(w, err)

			return
		}

		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}
