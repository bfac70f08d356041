package middleware

import (
	"context"
	"net/http"
	"strings"

	"coaching-module/config"
	"coaching-module/http/response"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller extracted from the bearer token.
type Identity struct {
	UserID int
	Role   string
	Name   string
	Email  string
}

// EnableCORS adds permissive CORS headers and short-circuits preflight
// requests.
func EnableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Razorpay-Signature")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// RequireAuth validates the bearer token and stores the caller identity in
// the request context.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.ErrorResponse(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(config.AppConfig.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			response.ErrorResponse(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.ErrorResponse(w, http.StatusUnauthorized, "invalid token claims")
			return
		}

		id := Identity{}
		if v, ok := claims["user_id"].(float64); ok {
			id.UserID = int(v)
		}
		if v, ok := claims["role"].(string); ok {
			id.Role = v
		}
		if v, ok := claims["name"].(string); ok {
			id.Name = v
		}
		if v, ok := claims["email"].(string); ok {
			id.Email = v
		}
		if id.UserID == 0 {
			response.ErrorResponse(w, http.StatusUnauthorized, "token carries no user id")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, id)
		next(w, r.WithContext(ctx))
	}
}

// RequireAdmin is RequireAuth plus an admin role check.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r) {
			response.ErrorResponse(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	})
}

// CallerIdentity returns the authenticated identity, if any.
func CallerIdentity(r *http.Request) (Identity, bool) {
	id, ok := r.Context().Value(identityKey).(Identity)
	return id, ok
}

// IsAdmin reports whether the caller holds the admin role.
func IsAdmin(r *http.Request) bool {
	id, ok := CallerIdentity(r)
	return ok && id.Role == "admin"
}
