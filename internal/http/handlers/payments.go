package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatgateway-backend/internal/domain/billing"
	"github.com/yungbote/chatgateway-backend/internal/http/response"
	"github.com/yungbote/chatgateway-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatgateway-backend/internal/services/payments"
)

type PaymentHandler struct {
	reconciler payments.Reconciler
}

func NewPaymentHandler(reconciler payments.Reconciler) *PaymentHandler {
	return &PaymentHandler{reconciler: reconciler}
}

type createOrderRequest struct {
	Plan string `json:"plan" binding:"required"`
}

func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var body createOrderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondAPIError(c, badRequest(err))
		return
	}
	ctx := c.Request.Context()
	order, err := h.reconciler.CreateOrder(ctx, ctxutil.UserID(ctx), strings.TrimSpace(body.Plan))
	if err != nil {
		response.RespondAPIError(c, toAPIError(err))
		return
	}
	response.RespondOK(c, order)
}

type verifyPaymentRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var body verifyPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondAPIError(c, badRequest(err))
		return
	}
	ctx := c.Request.Context()
	credit, err := h.reconciler.VerifyAndCredit(ctx, payments.VerifyInput{
		OrderID:   body.OrderID,
		PaymentID: body.PaymentID,
		Signature: body.Signature,
		UserID:    ctxutil.UserID(ctx),
	})
	if err != nil {
		response.RespondAPIError(c, toAPIError(err))
		return
	}
	response.RespondOK(c, credit)
}

func (h *PaymentHandler) ListPayments(c *gin.Context) {
	ctx := c.Request.Context()
	records, err := h.reconciler.ListPayments(ctx, ctxutil.UserID(ctx))
	if err != nil {
		response.RespondAPIError(c, toAPIError(err))
		return
	}
	if records == nil {
		records = []*billing.PaymentRecord{}
	}
	response.RespondOK(c, records)
}

func (h *PaymentHandler) FetchPayment(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.reconciler.FetchPayment(ctx, ctxutil.UserID(ctx), c.Param("payment_id"))
	if err != nil {
		response.RespondAPIError(c, toAPIError(err))
		return
	}
	response.RespondOK(c, p)
}
