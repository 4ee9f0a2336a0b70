package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"simple-gpt/internal/domain"
	"simple-gpt/internal/service"
)

const identityKey = "identity"

// AnonymousIDHeader identifica a clientes sin cuenta para su contador de prueba.
const AnonymousIDHeader = "X-Anonymous-Id"

// RequireAuth valida el access token del proveedor de identidad y guarda la
// identidad en el contexto. Sin token válido, 401.
func RequireAuth(verifier *service.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
			c.Abort()
			return
		}

		identity, ok := bearerIdentity(c, verifier)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// OptionalAuth resuelve la identidad si hay token, y deja pasar como anónimo
// si no lo hay. Un token presente pero inválido sigue siendo 401.
func OptionalAuth(verifier *service.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Set(identityKey, domain.Identity{
				AnonymousID: strings.TrimSpace(c.GetHeader(AnonymousIDHeader)),
			})
			c.Next()
			return
		}

		identity, ok := bearerIdentity(c, verifier)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// GetIdentity obtiene la identidad resuelta por el middleware.
func GetIdentity(c *gin.Context) (domain.Identity, bool) {
	val, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := val.(domain.Identity)
	return identity, ok
}

func bearerIdentity(c *gin.Context, verifier *service.IdentityVerifier) (domain.Identity, bool) {
	if verifier == nil {
		return domain.Identity{}, false
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return domain.Identity{}, false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	identity, err := verifier.Verify(token)
	if err != nil {
		return domain.Identity{}, false
	}
	return identity, true
}
