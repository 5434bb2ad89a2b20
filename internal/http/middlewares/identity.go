package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/shifthub/internal/actorctx"
	"github.com/geocoder89/shifthub/internal/identity"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (identity.Identity, error)
}

type IdentityMiddleware struct {
	verifier TokenVerifier
}

func NewIdentityMiddleware(verifier TokenVerifier) *IdentityMiddleware {
	return &IdentityMiddleware{verifier: verifier}
}

// RequireIdentity resolves the bearer token into an identity and stores it on
// the request context. Requests without a valid token stop here with 401.
func (m *IdentityMiddleware) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortError(c, http.StatusUnauthorized, "unauthenticated", "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortError(c, http.StatusUnauthorized, "unauthenticated", "Missing or invalid access token")
			return
		}

		id, err := m.verifier.Verify(raw)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "unauthenticated", "Invalid or expired access token")
			return
		}

		c.Set(CtxExternalID, id.ExternalID)
		c.Request = c.Request.WithContext(actorctx.WithIdentity(c.Request.Context(), id))

		c.Next()
	}
}

func ExternalIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxExternalID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
