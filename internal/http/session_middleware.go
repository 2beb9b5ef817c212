package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"remi-llm/internal/domain"
	"remi-llm/internal/service"
)

const sessionContextKey = "session_context"

// SessionContextMiddleware resuelve el token de sesión y guarda el contexto
// del participante. Sin contexto responde 401 "registration required".
func SessionContextMiddleware(sessions *service.SessionContextService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessions == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session context not configured"})
			c.Abort()
			return
		}

		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "registration required"})
			c.Abort()
			return
		}

		sc, err := sessions.Resolve(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrSessionTokenExpired), errors.Is(err, service.ErrRegistrationRequired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "registration required"})
			c.Abort()
			return
		case errors.Is(err, service.ErrSessionTokenInvalid):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session context unavailable"})
			c.Abort()
			return
		}

		c.Set(sessionContextKey, sc)
		c.Next()
	}
}

// bearerToken lee Authorization; el socket de escucha lo manda por query.
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return strings.TrimSpace(c.Query("token"))
}

// GetSessionContext obtiene el contexto resuelto por el middleware.
func GetSessionContext(c *gin.Context) (domain.SessionContext, bool) {
	val, ok := c.Get(sessionContextKey)
	if !ok {
		return domain.SessionContext{}, false
	}
	sc, ok := val.(domain.SessionContext)
	return sc, ok
}
