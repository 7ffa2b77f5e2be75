package emaillogs

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yare-hub/classroom/internal/models"
	"github.com/yare-hub/classroom/pkg/response"
)

// Lister reads email logs for a payment reference.
type Lister interface {
	ListByReference(ctx context.Context, reference string) ([]*models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo Lister
}

// NewHandler creates an email logs handler.
func NewHandler(repo Lister) *Handler {
	return &Handler{repo: repo}
}

// ListByReference handles GET /payments/lesson-fees/:reference/emails.
// Mount behind RequireRole(admin).
func (h *Handler) ListByReference(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))
	if reference == "" {
		response.BadRequest(c, "reference required")
		return
	}
	logs, err := h.repo.ListByReference(c.Request.Context(), reference)
	if err != nil {
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
