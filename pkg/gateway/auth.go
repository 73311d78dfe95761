package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthHandler checks the shared-secret bearer token on channel calls
type AuthHandler struct {
	sharedSecret string
}

// NewAuthHandler creates a new authentication handler. An empty secret
// disables authentication.
func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{
		sharedSecret: sharedSecret,
	}
}

// Enabled reports whether a secret is configured
func (a *AuthHandler) Enabled() bool {
	return a.sharedSecret != ""
}

// VerifyToken compares token against the shared secret in constant time
func (a *AuthHandler) VerifyToken(token string) bool {
	if !a.Enabled() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(a.sharedSecret), []byte(token)) == 1
}

// Authenticate checks the Authorization header of r
func (a *AuthHandler) Authenticate(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return a.VerifyToken(strings.TrimSpace(token))
}
