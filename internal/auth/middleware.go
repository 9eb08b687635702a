package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"grocery/internal/models"
)

const (
	MsgTokenMissing     = "Token is not provided"
	MsgTokenExpired     = "Token has expired"
	MsgTokenInvalid     = "Token is not valid"
	MsgForbidden        = "Forbidden - Insufficient Permissions"
	MsgInvalidUserParam = "Unauthorized - Invalid User ID"
)

type Verifier interface {
	Verify(token string) (*Claims, error)
}

// Authenticate requires a valid "Authorization: Bearer <token>" header and stores the caller's Identity.
func Authenticate(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeMessage(w, http.StatusUnauthorized, MsgTokenMissing)
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				msg := MsgTokenInvalid
				if errors.Is(err, ErrTokenExpired) {
					msg = MsgTokenExpired
				}
				writeMessage(w, http.StatusUnauthorized, msg)
				return
			}
			ctx := WithIdentity(r.Context(), Identity{
				UserID:   claims.UserID,
				Username: claims.Username,
				Role:     claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok || id.Role != role {
				writeMessage(w, http.StatusForbidden, MsgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthorizeUserParam rejects requests whose {param} path value is not the caller's user id.
func AuthorizeUserParam(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil || !SameUser(r.Context(), userID) {
				writeMessage(w, http.StatusUnauthorized, MsgInvalidUserParam)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
