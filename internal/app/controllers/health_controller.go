package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yigit/placementdesk/internal/app/models/dto"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController reports service health
type HealthController struct {
	store Pinger
	mode  string
}

// NewHealthController creates a new HealthController. mode names the record
// store in use ("database" or "demo").
func NewHealthController(store Pinger, mode string) *HealthController {
	return &HealthController{store: store, mode: mode}
}

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Store  string `json:"store" example:"database"`
}

// Health pings the record store
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} dto.APIResponse{data=HealthResponse}
// @Failure 503 {object} dto.APIResponse{data=HealthResponse}
// @Router /health [get]
func (c *HealthController) Health(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := c.store.Ping(pingCtx); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, dto.APIResponse{
			Success:   false,
			Data:      HealthResponse{Status: "unavailable", Store: c.mode},
			Error:     dto.NewErrorDetail(dto.ErrorCodeExternalServiceError, "Record store unreachable"),
			Timestamp: time.Now(),
		})
		return
	}

	respond(ctx, http.StatusOK, HealthResponse{Status: "ok", Store: c.mode})
}
