package image

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/imagehost/service/internal/middleware"
	"github.com/imagehost/service/internal/response"
)

// Handler holds HTTP handlers for image endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new image Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type uploadRequest struct {
	Filename    string `json:"filename"    example:"cat.jpg"`
	ContentType string `json:"contentType" example:"image/jpeg"`
	SizeBytes   int64  `json:"sizeBytes"   example:"1024"`
}

type confirmRequest struct {
	StorageKey  string `json:"storageKey"  example:"42/3f29a1c407c94be2a8d9f31f4f66a103.jpg"`
	Filename    string `json:"filename"    example:"cat.jpg"`
	ContentType string `json:"contentType" example:"image/jpeg"`
	SizeBytes   int64  `json:"sizeBytes"   example:"1024"`
}

type listData struct {
	Images  []*Image `json:"images"`
	Total   int64    `json:"total"`
	Page    int      `json:"page"`
	PerPage int      `json:"perPage"`
}

// RequestUpload godoc
//
//	@Summary		Get presigned upload URL
//	@Description	Issues a time-limited presigned PUT URL for uploading an image directly to object storage. No record is created until the upload is confirmed.
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		uploadRequest	true	"Upload declaration"
//	@Success		200		{object}	response.Envelope{data=UploadTicket}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/images/upload-url [post]
func (h *Handler) RequestUpload(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	ticket, err := h.svc.RequestUpload(r.Context(), u, req.Filename, req.ContentType, req.SizeBytes)
	if IsValidation(err) {
		response.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, ticket)
}

// Confirm godoc
//
//	@Summary		Confirm upload
//	@Description	Verifies the uploaded object exists in storage and registers its metadata. The stored size comes from storage, not from the request. Confirming the same key twice returns 409.
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		confirmRequest	true	"Key from upload-url plus declared metadata"
//	@Success		201		{object}	response.Envelope{data=Image}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/images/confirm [post]
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	img, err := h.svc.Confirm(r.Context(), u, req.StorageKey, req.Filename, req.ContentType, req.SizeBytes)
	switch {
	case IsValidation(err), errors.Is(err, ErrUploadIncomplete):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrKeyForbidden):
		response.Forbidden(w, "invalid storage key")
	case errors.Is(err, ErrAlreadyConfirmed):
		response.Conflict(w, ErrAlreadyConfirmed.Error())
	case err != nil:
		response.InternalError(w)
	default:
		response.Created(w, img)
	}
}

// List godoc
//
//	@Summary		List own images
//	@Description	Returns the caller's images, newest first, paginated.
//	@Tags			images
//	@Produce		json
//	@Security		BearerAuth
//	@Param			page	query		int	false	"Page number (default 1)"
//	@Param			perPage	query		int	false	"Page size 1-100 (default 20)"
//	@Success		200		{object}	response.Envelope{data=listData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/images [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	page, ok := queryInt(r, "page", 1, 1, 0)
	if !ok {
		response.BadRequest(w, "page must be a positive integer")
		return
	}
	perPage, ok := queryInt(r, "perPage", 20, 1, 100)
	if !ok {
		response.BadRequest(w, "perPage must be between 1 and 100")
		return
	}

	images, total, err := h.svc.List(r.Context(), u, page, perPage)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, listData{Images: images, Total: total, Page: page, PerPage: perPage})
}

// Get godoc
//
//	@Summary		Get own image
//	@Description	Returns one image by id. Images owned by other users are reported as not found.
//	@Tags			images
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Image ID"
//	@Success		200	{object}	response.Envelope{data=Image}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/images/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.NotFound(w, "image not found")
		return
	}

	img, err := h.svc.Get(r.Context(), u, id)
	if h.svc.IsNotFound(err) {
		response.NotFound(w, "image not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, img)
}

// Delete godoc
//
//	@Summary		Delete own image
//	@Description	Removes the image record and, best-effort, the stored blob.
//	@Tags			images
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path	int	true	"Image ID"
//	@Success		204
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/images/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.NotFound(w, "image not found")
		return
	}

	err = h.svc.Delete(r.Context(), u, id)
	if h.svc.IsNotFound(err) {
		response.NotFound(w, "image not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

// queryInt parses an integer query parameter with a default and bounds.
// max <= 0 means unbounded above.
func queryInt(r *http.Request, name string, def, min, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || (max > 0 && v > max) {
		return 0, false
	}
	return v, true
}
