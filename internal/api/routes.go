package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/takeone/relay/internal/auth"
	"github.com/takeone/relay/internal/metrics"
	"github.com/takeone/relay/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func SetupRoutes(router *gin.Engine, engine *relay.Engine, handlers *Handlers, middleware *Middleware, authenticator auth.Authenticator, corsOrigins string, logger zerolog.Logger) {
	if corsOrigins != "" {
		router.Use(CORS(corsOrigins))
	}
	router.Use(RequestLogger(logger))
	router.Use(gin.Recovery())

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/ws", func(c *gin.Context) {
		serveWs(engine, authenticator, logger, c.Writer, c.Request)
	})

	authed := router.Group("/api")
	authed.Use(middleware.SessionAuth())
	{
		authed.POST("/notifications/fcm-token", handlers.RegisterFCMToken)
		authed.DELETE("/notifications/fcm-token", handlers.DeactivateFCMToken)
		authed.GET("/users/:user_id/status", handlers.UserStatus)
	}
}

// serveWs authenticates the handshake token before upgrading. A rejected
// token closes the handshake with a plain HTTP status; no frame is ever sent
// to an unauthenticated peer.
func serveWs(engine *relay.Engine, authenticator auth.Authenticator, logger zerolog.Logger, w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)

	userID, err := authenticator.Authenticate(r.Context(), token)
	if err != nil {
		metrics.HandshakeRejected.Inc()
		if errors.Is(err, auth.ErrRejected) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		} else {
			logger.Error().Err(err).Msg("handshake authentication failed")
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	engine.Attach(conn, userID)
}
