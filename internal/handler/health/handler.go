package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Pinger is satisfied by the store and the message broker
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	checks map[string]Pinger
}

// NewHandler takes named dependencies that must answer for readiness
func NewHandler(checks map[string]Pinger) *Handler {
	return &Handler{
		checks: checks,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health/live", h.LivenessCheck)
	r.GET("/health/ready", h.ReadinessCheck)
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	down := gin.H{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			down[name] = "DOWN"
		}
	}

	if len(down) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "checks": down})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
