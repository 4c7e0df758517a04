package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/takeone/relay/internal/auth"
)

type Middleware struct {
	authenticator auth.Authenticator
	logger        zerolog.Logger
}

func NewMiddleware(authenticator auth.Authenticator, logger zerolog.Logger) *Middleware {
	return &Middleware{authenticator: authenticator, logger: logger}
}

// SessionAuth resolves the session token against the identity service and
// stores the user id in the request context.
func (m *Middleware) SessionAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing session token",
			})
			return
		}

		userID, err := m.authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrRejected) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "invalid or expired session",
				})
				return
			}
			m.logger.Error().Err(err).Msg("identity service unavailable")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "identity service unavailable",
			})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// extractToken accepts either an Authorization bearer token or the
// X-Session-Token header; websocket handshakes may also pass ?token=.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if token := r.Header.Get("X-Session-Token"); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

// RequestLogger logs completed requests with zerolog.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("remote_addr", c.ClientIP()).
			Msg("request completed")
	}
}

func CORS(origins string) gin.HandlerFunc {
	allowedOrigins := strings.Split(origins, ",")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, o := range allowedOrigins {
			if strings.TrimSpace(o) == origin {
				allowed = true
				break
			}
		}

		if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:") {
			allowed = true
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Session-Token")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
