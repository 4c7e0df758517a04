package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/takeone/relay/internal/presence"
	"github.com/takeone/relay/internal/store"
)

// Pinger is satisfied by the Postgres store; the in-memory store has nothing
// to check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	rdb      *redis.Client
	presence *presence.Store
	tokens   store.DeviceTokenStore
	storeDB  Pinger
	logger   zerolog.Logger
}

func NewHandlers(rdb *redis.Client, pres *presence.Store, tokens store.DeviceTokenStore, storeDB Pinger, logger zerolog.Logger) *Handlers {
	return &Handlers{
		rdb:      rdb,
		presence: pres,
		tokens:   tokens,
		storeDB:  storeDB,
		logger:   logger,
	}
}

func (h *Handlers) Health(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "redis unavailable",
		})
		return
	}

	if h.storeDB != nil {
		if err := h.storeDB.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "pending store unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

type RegisterTokenRequest struct {
	FCMToken string `json:"fcm_token" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
	Platform string `json:"platform" binding:"required"`
}

// RegisterFCMToken registers or updates a push token for one of the
// authenticated user's devices.
func (h *Handlers) RegisterFCMToken(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID := c.GetString("user_id")

	err := h.tokens.Upsert(c.Request.Context(), &store.DeviceToken{
		UserID:   userID,
		DeviceID: req.DeviceID,
		FCMToken: req.FCMToken,
		Platform: req.Platform,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to register device token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "FCM token registered successfully"})
}

type DeactivateTokenRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// DeactivateFCMToken disables the push registration for a device, typically
// on logout.
func (h *Handlers) DeactivateFCMToken(c *gin.Context) {
	var req DeactivateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID := c.GetString("user_id")

	if err := h.tokens.Deactivate(c.Request.Context(), userID, req.DeviceID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to deactivate device token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "FCM token deactivated"})
}

// UserStatus reports whether a user is reachable and when they were last
// seen.
func (h *Handlers) UserStatus(c *gin.Context) {
	userID := c.Param("user_id")

	record, err := h.presence.Get(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to read presence")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read presence"})
		return
	}

	resp := gin.H{"user_id": userID, "online": record.Online}
	if !record.LastSeen.IsZero() {
		resp["last_seen"] = record.LastSeen.Unix()
	}

	c.JSON(http.StatusOK, resp)
}
