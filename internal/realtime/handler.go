package realtime

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yare-hub/classroom/pkg/response"
)

// Handler exposes read-only room state over HTTP.
type Handler struct {
	registry *Registry
	logger   *zap.Logger
}

// NewHandler creates a room handler.
func NewHandler(registry *Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, logger: logger}
}

// GetRoom handles GET /rooms/:id.
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.registry.Room(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("get room", zap.Error(err))
		response.Internal(c, "failed to load room")
		return
	}
	if room == nil {
		response.NotFound(c, "room not found")
		return
	}
	response.OK(c, room)
}
