// Package middleware provides the HTTP authentication gate for protected
// routes.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/memo-service/internal/models"
	"github.com/Dan9191/memo-service/internal/repository"
)

var (
	// ErrMissingToken is returned when the Authorization header is absent
	ErrMissingToken = errors.New("missing token")
	// ErrMalformedToken is returned when the header is not "Bearer <token>"
	ErrMalformedToken = errors.New("malformed authorization header")
	// ErrUnknownSubject is returned when a valid token names a nonexistent user
	ErrUnknownSubject = errors.New("unknown token subject")
)

type contextKey int

const userIDKey contextKey = iota

// TokenVerifier resolves a raw token string to the user id it asserts
type TokenVerifier interface {
	Verify(tokenString string) (int64, error)
}

// UserResolver checks that a token subject still corresponds to a stored user
type UserResolver interface {
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
}

// AuthMiddleware gates protected routes: it requires a valid bearer token,
// resolves its subject to an existing user and stores the user id in the
// request context. Every rejection uses the same 401 body; the specific
// failure kind is only logged.
func AuthMiddleware(tokens TokenVerifier, users UserResolver, log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				rejectUnauthorized(w, r, log, ErrMissingToken)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				rejectUnauthorized(w, r, log, ErrMalformedToken)
				return
			}

			userID, err := tokens.Verify(parts[1])
			if err != nil {
				rejectUnauthorized(w, r, log, err)
				return
			}

			user, err := users.FindUserByID(r.Context(), userID)
			if errors.Is(err, repository.ErrUserNotFound) {
				rejectUnauthorized(w, r, log, ErrUnknownSubject)
				return
			}
			if err != nil {
				log.WithError(err).Error("Failed to resolve token subject")
				writeMessage(w, http.StatusInternalServerError, "internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CurrentUserID returns the authenticated user id stored by AuthMiddleware
func CurrentUserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

func rejectUnauthorized(w http.ResponseWriter, r *http.Request, log *logrus.Logger, err error) {
	log.WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"method": r.Method,
	}).WithError(err).Warn("Request rejected")
	writeMessage(w, http.StatusUnauthorized, "invalid or missing token")
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
