package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"ballotd/internal/domain"

	"github.com/gin-gonic/gin"
)

// requireVoter resolves the Authorization header to a voter identity.
// A missing header and a bad token get distinct codes but the same 401.
func (s *Server) requireVoter(c *gin.Context) (domain.Principal, bool) {
	if s.verifier == nil {
		writeErrorCode(c, http.StatusInternalServerError, "AUTH_CONFIG_ERROR", "token verification not configured")
		return domain.Principal{}, false
	}
	raw := extractBearerToken(c.GetHeader("Authorization"))
	principal, err := s.verifier.Verify(raw)
	if err != nil {
		if errors.Is(err, domain.ErrTokenMissing) {
			writeErrorCode(c, http.StatusUnauthorized, "TOKEN_MISSING", "missing bearer token")
		} else {
			writeErrorCode(c, http.StatusUnauthorized, "TOKEN_INVALID", "invalid bearer token")
		}
		return domain.Principal{}, false
	}
	return principal, true
}

func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return false
	}
	key := strings.TrimSpace(c.GetHeader("X-Admin-Key"))
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return false
	}
	return true
}

func extractBearerToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return ""
	}
	return strings.TrimSpace(value[len("bearer "):])
}
