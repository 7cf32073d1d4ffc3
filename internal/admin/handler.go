// Package admin exposes moderation and usage endpoints for admin accounts.
// All routes are mounted behind RequireAuth + RequireAdmin.
package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/imagehost/service/internal/image"
	"github.com/imagehost/service/internal/response"
	"github.com/imagehost/service/internal/user"
)

// Handler holds HTTP handlers for admin endpoints.
type Handler struct {
	images *image.Service
	users  *user.Service
}

// NewHandler creates a new admin Handler.
func NewHandler(images *image.Service, users *user.Service) *Handler {
	return &Handler{images: images, users: users}
}

type imageListData struct {
	Images []*image.Image `json:"images"`
	Total  int64          `json:"total"`
}

// Stats godoc
//
//	@Summary		Storage usage statistics
//	@Description	Aggregate stored bytes and object count across all users, with 10GB free-tier usage percentage.
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=image.StorageStats}
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		503	{object}	response.Envelope
//	@Router			/admin/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.images.Stats(r.Context())
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, "failed to retrieve storage statistics")
		return
	}
	response.OK(w, stats)
}

// ListImages godoc
//
//	@Summary		List all images
//	@Description	Lists every user's images, newest first, with skip/limit pagination.
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			skip	query		int	false	"Offset (default 0)"
//	@Param			limit	query		int	false	"Page size 1-100 (default 50)"
//	@Success		200		{object}	response.Envelope{data=imageListData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/admin/images [get]
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := pagination(r)
	if !ok {
		response.BadRequest(w, "skip must be >= 0 and limit between 1 and 100")
		return
	}

	images, total, err := h.images.AdminList(r.Context(), skip, limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, imageListData{Images: images, Total: total})
}

// GetImage godoc
//
//	@Summary		Get any image
//	@Description	Returns any user's image by id.
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Image ID"
//	@Success		200	{object}	response.Envelope{data=image.Image}
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/admin/images/{id} [get]
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.NotFound(w, "image not found")
		return
	}

	img, err := h.images.AdminGet(r.Context(), id)
	if h.images.IsNotFound(err) {
		response.NotFound(w, "image not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, img)
}

// DeleteImage godoc
//
//	@Summary		Delete any image
//	@Description	Removes any user's image. If the blob delete fails upstream the record is preserved and a server error is returned, so the delete can be retried.
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path	int	true	"Image ID"
//	@Success		204
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/admin/images/{id} [delete]
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.NotFound(w, "image not found")
		return
	}

	err = h.images.AdminDelete(r.Context(), id)
	if h.images.IsNotFound(err) {
		response.NotFound(w, "image not found")
		return
	}
	if errors.Is(err, image.ErrStorageUnavailable) {
		response.Error(w, http.StatusInternalServerError, "failed to delete image from storage")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

// ListUsers godoc
//
//	@Summary		List users
//	@Description	Lists all accounts, newest first, with skip/limit pagination.
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			skip	query		int	false	"Offset (default 0)"
//	@Param			limit	query		int	false	"Page size 1-100 (default 50)"
//	@Success		200		{object}	response.Envelope{data=[]user.User}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/admin/users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := pagination(r)
	if !ok {
		response.BadRequest(w, "skip must be >= 0 and limit between 1 and 100")
		return
	}

	users, err := h.users.List(r.Context(), skip, limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, users)
}

// pagination parses the admin skip/limit query parameters.
func pagination(r *http.Request) (skip, limit int, ok bool) {
	skip, limit = 0, 50
	if raw := r.URL.Query().Get("skip"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, false
		}
		skip = v
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 100 {
			return 0, 0, false
		}
		limit = v
	}
	return skip, limit, true
}
