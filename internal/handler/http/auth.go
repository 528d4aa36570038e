package http

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/utafrali/DeliveryGo/internal/service"
	"github.com/utafrali/DeliveryGo/pkg/httputil"
	"github.com/utafrali/DeliveryGo/pkg/validator"
)

// AuthHandler handles the login endpoints.
type AuthHandler struct {
	users       *service.UserService
	tokenExpiry time.Duration
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(users *service.UserService, tokenExpiry time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokenExpiry: tokenExpiry, logger: logger}
}

// LoginRequest carries the credentials. Username is accepted as an alias of
// Email for OAuth2 password-flow clients.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username,omitempty"`
	Password string `json:"password" validate:"required,max=72"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login handles POST /api/v1/login/access-token. It accepts an OAuth2
// password form (username, password) or the same fields as JSON.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, validator.MaxBodyBytes)

	var req LoginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := parseLoginForm(r, mediaType); err != nil {
			httputil.WriteValidationError(w, r, err)
			return
		}
		req.Email = r.PostForm.Get("username")
		if req.Email == "" {
			req.Email = r.PostForm.Get("email")
		}
		req.Password = r.PostForm.Get("password")
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "VALIDATION_ERROR", Message: "invalid request body: " + err.Error()},
			})
			return
		}
		if req.Email == "" {
			req.Email = req.Username
		}
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	token, _, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.tokenExpiry.Seconds()),
	})
}

func parseLoginForm(r *http.Request, mediaType string) error {
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(validator.MaxBodyBytes)
	}
	return r.ParseForm()
}

// TestToken handles POST /api/v1/login/test-token and echoes the caller.
func (h *AuthHandler) TestToken(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, actorFrom(r))
}
