package billing

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yare-hub/classroom/internal/middleware"
	"github.com/yare-hub/classroom/internal/models"
	"github.com/yare-hub/classroom/pkg/response"
)

// Handler serves lesson fee endpoints.
type Handler struct {
	ledger *Ledger
	logger *zap.Logger
}

// NewHandler creates a billing handler.
func NewHandler(ledger *Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: ledger, logger: logger}
}

// durationField accepts a JSON string or number.
type durationField string

func (d *durationField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = durationField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = durationField(n.String())
	return nil
}

// CreateChargeRequest is the body of POST /payments/lesson-fees.
type CreateChargeRequest struct {
	StudentIDs []string      `json:"student_ids" binding:"required,min=1"`
	PlanName   string        `json:"plan_name" binding:"required"`
	Duration   durationField `json:"duration" binding:"required"`
	Amount     int64         `json:"amount" binding:"required,gt=0"`
	Currency   string        `json:"currency"`
	Email      string        `json:"email"`
}

// CreateCharge handles POST /payments/lesson-fees.
func (h *Handler) CreateCharge(c *gin.Context) {
	payerID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	role, _ := middleware.Role(c)

	var req CreateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	studentIDs := make([]uuid.UUID, 0, len(req.StudentIDs))
	for _, s := range req.StudentIDs {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			response.BadRequest(c, "invalid student id: "+s)
			return
		}
		studentIDs = append(studentIDs, id)
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = middleware.UserEmail(c)
	}

	charge, err := h.ledger.CreateCharge(c.Request.Context(), ChargeRequest{
		PayerID:     payerID,
		PayerType:   role,
		PayerEmail:  email,
		StudentIDs:  studentIDs,
		PlanName:    req.PlanName,
		Duration:    string(req.Duration),
		AmountCents: req.Amount,
		Currency:    req.Currency,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, charge)
}

// VerifyPayment handles GET /payments/lesson-fees/verify/:reference.
func (h *Handler) VerifyPayment(c *gin.Context) {
	conf, err := h.ledger.ConfirmPayment(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OKMessage(c, "payment verified", conf)
}

// History handles GET /payments/lesson-fees/history/:payerId. Admins may pass "all".
func (h *Handler) History(c *gin.Context) {
	callerID, _ := middleware.UserID(c)
	role, _ := middleware.Role(c)
	param := c.Param("payerId")

	if param == "all" {
		if role != models.RoleAdmin {
			response.Forbidden(c, "insufficient permissions")
			return
		}
		h.respondHistory(c, uuid.Nil, true)
		return
	}
	payerID, err := uuid.Parse(param)
	if err != nil {
		response.BadRequest(c, "invalid payer id")
		return
	}
	if payerID != callerID && role != models.RoleAdmin {
		response.Forbidden(c, "insufficient permissions")
		return
	}
	h.respondHistory(c, payerID, false)
}

func (h *Handler) respondHistory(c *gin.Context, payerID uuid.UUID, all bool) {
	list, err := h.ledger.History(c.Request.Context(), payerID, all)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []*models.LessonFee{}
	}
	c.Header("X-Total-Count", strconv.Itoa(len(list)))
	response.OK(c, list)
}

// Subscription handles GET /students/:id/subscription.
func (h *Handler) Subscription(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return
	}
	sub, err := h.ledger.Subscription(c.Request.Context(), studentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, sub)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidCharge), errors.Is(err, ErrInvalidReference):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrPaymentNotSuccessful):
		response.BadRequest(c, "payment not successful")
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, ErrProvider):
		response.BadGateway(c, "payment provider unavailable")
	default:
		h.logger.Error("billing request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}
