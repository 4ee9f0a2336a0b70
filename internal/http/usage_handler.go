package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simple-gpt/internal/service"
)

// UsageHandler mantiene dependencias para endpoints de cuotas.
type UsageHandler struct {
	logger  *zap.Logger
	tracker *service.UsageTracker
}

// NewUsageHandler crea una instancia con las dependencias necesarias.
func NewUsageHandler(logger *zap.Logger, tracker *service.UsageTracker) *UsageHandler {
	return &UsageHandler{
		logger:  logger,
		tracker: tracker,
	}
}

// usageResponse serializa el estado de cuota con el centinela -1 en el borde.
type usageResponse struct {
	MessageCount    int    `json:"messageCount"`
	MessageLimit    int    `json:"messageLimit"`
	HasReachedLimit bool   `json:"hasReachedLimit"`
	TimeUntilReset  string `json:"timeUntilReset"`
	Plan            string `json:"plan,omitempty"`
	HistoryDays     int    `json:"historyDays,omitempty"`
	Fallback        bool   `json:"fallback,omitempty"`
}

// Current maneja GET /usage/current.
func (h *UsageHandler) Current(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok || !identity.IsSignedIn() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	status, err := h.tracker.Check(c.Request.Context(), identity)
	if err != nil {
		h.logger.Error("usage check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch usage"})
		return
	}

	sub, err := h.tracker.Subscription(c.Request.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("subscription fetch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch subscription"})
		return
	}

	c.JSON(http.StatusOK, usageResponse{
		MessageCount:    status.MessageCount,
		MessageLimit:    status.MessageLimit.Sentinel(),
		HasReachedLimit: status.HasReachedLimit,
		TimeUntilReset:  status.TimeUntilReset,
		Plan:            string(sub.Plan),
		HistoryDays:     sub.HistoryDays.Sentinel(),
		Fallback:        status.Fallback,
	})
}

// Increment maneja POST /usage/increment.
func (h *UsageHandler) Increment(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok || !identity.IsSignedIn() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	status, err := h.tracker.Increment(c.Request.Context(), identity)
	if err != nil {
		h.logger.Error("usage increment failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not increment usage"})
		return
	}

	c.JSON(http.StatusOK, usageResponse{
		MessageCount:    status.MessageCount,
		MessageLimit:    status.MessageLimit.Sentinel(),
		HasReachedLimit: status.HasReachedLimit,
		TimeUntilReset:  status.TimeUntilReset,
		Plan:            string(status.Plan),
	})
}

// Subscription maneja GET /subscriptions/current.
func (h *UsageHandler) Subscription(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok || !identity.IsSignedIn() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sub, err := h.tracker.Subscription(c.Request.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("subscription fetch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plan":              sub.Plan,
		"status":            sub.Status,
		"dailyMessageLimit": sub.DailyMessageLimit.Sentinel(),
		"historyDays":       sub.HistoryDays.Sentinel(),
		"cancelAtPeriodEnd": sub.CancelAtPeriodEnd,
		"currentPeriodEnd":  sub.CurrentPeriodEnd,
	})
}
