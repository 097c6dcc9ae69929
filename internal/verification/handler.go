package verification

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for verification operations
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

// NewHandler creates a new verification handler
func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// RegisterRoutes registers verification routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	verify := router.Group("/verify")
	{
		verify.POST("/initial", h.verifyInitial)
		verify.POST("/cross-check", h.crossCheck)
		verify.GET("/status/:issue_id", h.getStatus)
	}
	router.GET("/stats", h.getStats)
}

// APIKeyMiddleware rejects requests that do not present the configured key.
// With no key configured the service is open, which is only acceptable
// behind a trusted gateway.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		provided := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// verifyInitial handles POST /api/v1/verify/initial
func (h *Handler) verifyInitial(c *gin.Context) {
	var req InitialVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.engine.VerifySubmission(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Initial verification failed", zap.Int64("issue_id", req.IssueID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// crossCheck handles POST /api/v1/verify/cross-check
func (h *Handler) crossCheck(c *gin.Context) {
	var req CrossVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.engine.CrossCheck(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Cross-verification failed", zap.Int64("issue_id", req.IssueID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// getStatus handles GET /api/v1/verify/status/:issue_id
func (h *Handler) getStatus(c *gin.Context) {
	issueID, err := strconv.ParseInt(c.Param("issue_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue ID"})
		return
	}

	resp, err := h.engine.GetStatus(c.Request.Context(), issueID)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no verification found for issue"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load verification status", zap.Int64("issue_id", issueID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load verification status"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// getStats handles GET /api/v1/stats
func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Stats())
}
