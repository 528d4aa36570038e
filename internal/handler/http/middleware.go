package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/pkg/httputil"
	"github.com/utafrali/DeliveryGo/pkg/middleware"
)

type contextKey string

const actorKey contextKey = "actor"

// ContentTypeJSON rejects request bodies that are not JSON with 415.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// UserResolver resolves a token subject to the acting user.
type UserResolver interface {
	CurrentUser(ctx context.Context, subject string) (*domain.User, error)
}

// CurrentUser loads the user named by the token subject and stores it in the
// request context. It must run after middleware.Authenticate. A subject whose
// user is gone yields 404, a disabled account 400.
func CurrentUser(users UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := users.CurrentUser(r.Context(), middleware.SubjectFromContext(r.Context()))
			if err != nil {
				httputil.WriteError(w, r, err, logger)
				return
			}
			ctx := context.WithValue(r.Context(), actorKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// actorFrom returns the user stored by CurrentUser.
func actorFrom(r *http.Request) *domain.User {
	u, _ := r.Context().Value(actorKey).(*domain.User)
	return u
}
