package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const adminPasswordHeader = "X-Admin-Password"

// AdminAuth guards the admin routes with a shared secret. With neither a password nor a
// bcrypt hash configured every request is refused.
type AdminAuth struct {
	password string
	hash     []byte
}

func NewAdminAuth(password, hash string) *AdminAuth {
	auth := &AdminAuth{password: password}
	if hash = strings.TrimSpace(hash); hash != "" {
		auth.hash = []byte(hash)
	}
	return auth
}

func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.authorized(r.Header.Get(adminPasswordHeader)) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *AdminAuth) authorized(secret string) bool {
	if secret == "" {
		return false
	}
	if len(a.hash) > 0 {
		return bcrypt.CompareHashAndPassword(a.hash, []byte(secret)) == nil
	}
	if a.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(a.password)) == 1
}
