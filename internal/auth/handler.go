package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/imagehost/service/internal/middleware"
	"github.com/imagehost/service/internal/response"
	"github.com/imagehost/service/internal/user"
)

// usernameRegex matches 3-50 characters of letters, digits, underscores and hyphens.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

// emailRegex is a light sanity check, not full RFC 5322 validation.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type registerRequest struct {
	Username string `json:"username" example:"alice"`
	Email    string `json:"email"    example:"alice@example.com"`
	Password string `json:"password" example:"hunter22secret"`
}

type loginRequest struct {
	Identifier string `json:"identifier" example:"alice"`
	Password   string `json:"password"   example:"hunter22secret"`
}

type tokenData struct {
	Token     string `json:"token" example:"eyJhbGci..."`
	TokenType string `json:"tokenType" example:"bearer"`
}

// Register godoc
//
//	@Summary		Register new user
//	@Description	Create a new account with username, email, and password. Username and email must be unique.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		registerRequest	true	"Registration details"
//	@Success		201		{object}	response.Envelope{data=user.User}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if !usernameRegex.MatchString(req.Username) {
		response.BadRequest(w, "username must be 3-50 characters (letters, digits, _ or -)")
		return
	}
	if !emailRegex.MatchString(req.Email) || len(req.Email) > 255 {
		response.BadRequest(w, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		response.BadRequest(w, "password must be at least 8 characters")
		return
	}

	u, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if errors.Is(err, user.ErrUsernameTaken) || errors.Is(err, user.ErrEmailTaken) {
		response.Conflict(w, err.Error())
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, u)
}

// Login godoc
//
//	@Summary		Login
//	@Description	Authenticate with username or email plus password. Returns a JWT bearer token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	response.Envelope{data=tokenData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Identifier == "" || req.Password == "" {
		response.BadRequest(w, "identifier and password are required")
		return
	}

	token, _, err := h.svc.Login(r.Context(), req.Identifier, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Unauthorized(w, ErrInvalidCredentials.Error())
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, tokenData{Token: token, TokenType: "bearer"})
}

// Me godoc
//
//	@Summary		Get current user
//	@Description	Returns the profile of the currently authenticated user.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=user.User}
//	@Failure		401	{object}	response.Envelope
//	@Router			/auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}
	response.OK(w, u)
}
