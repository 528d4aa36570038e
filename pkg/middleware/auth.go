package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/DeliveryGo/pkg/logger"
)

type contextKeyType string

const subjectKey contextKeyType = "subject"

// TokenValidator validates a raw bearer token and returns its subject (the
// user ID). The concrete JWT handling is injected by the service.
type TokenValidator func(token string) (subject string, err error)

// Authenticate rejects requests without a valid bearer token with 403
// INVALID_CREDENTIALS and stores the token subject in the request context.
func Authenticate(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, r, http.StatusForbidden, "INVALID_CREDENTIALS", "not authenticated")
				return
			}

			subject, err := validate(token)
			if err != nil || subject == "" {
				writeError(w, r, http.StatusForbidden, "INVALID_CREDENTIALS", "could not validate credentials")
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			ctx = logger.WithUserID(ctx, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// SubjectFromContext returns the token subject stored by Authenticate.
func SubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey).(string); ok {
		return s
	}
	return ""
}
