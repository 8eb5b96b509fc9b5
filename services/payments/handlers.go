package payments

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
	"github.com/matheusmosca/order-fulfillment/internal/httpx"
	"github.com/matheusmosca/order-fulfillment/internal/telemetry"
)

// PaymentHandler contém os handlers HTTP para pagamentos
type PaymentHandler struct {
	useCase *PaymentUseCase
	tracer  trace.Tracer
	log     *zap.Logger
}

// NewPaymentHandler cria uma nova instância de PaymentHandler
func NewPaymentHandler(useCase *PaymentUseCase, tracer trace.Tracer, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		useCase: useCase,
		tracer:  tracer,
		log:     log,
	}
}

func (h *PaymentHandler) fail(c *gin.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	httpx.WriteError(c, h.log, err)
}

// CreatePayment é o endpoint POST /payments/
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req CreatePaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "create_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("payment.method", req.PaymentMethod),
	)

	payment, err := h.useCase.CreatePayment(ctx, req)
	if err != nil {
		h.fail(c, span, err)
		return
	}

	span.SetAttributes(attribute.String("payment_id", payment.ID))
	c.JSON(http.StatusCreated, payment)
}

// ListPayments é o endpoint GET /payments/?order_id=
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "list_payments")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", c.Query("order_id")))

	payments, err := h.useCase.ListPayments(ctx, c.Query("order_id"))
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

// GetPayment é o endpoint GET /payments/:id/
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "get", "payment", c.Param("id"))
	defer span.End()

	view, err := h.useCase.GetPayment(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetHistory é o endpoint GET /payments/:id/history/
func (h *PaymentHandler) GetHistory(c *gin.Context) {
	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "history", "payment", c.Param("id"))
	defer span.End()

	history, err := h.useCase.GetHistory(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// GatewayStatus é o endpoint GET /payments/:id/gateway_status/
func (h *PaymentHandler) GatewayStatus(c *gin.Context) {
	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "gateway_status", "payment", c.Param("id"))
	defer span.End()

	status, err := h.useCase.CheckGatewayStatus(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ProcessPayment é o endpoint POST /payments/process/
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	var req ProcessPaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "process", "payment", req.PaymentID)
	defer span.End()

	outcome, err := h.useCase.ProcessPayment(ctx, req.PaymentID)
	if err != nil {
		if outcome != nil && errors.Is(err, apperr.ErrGateway) {
			span.SetAttributes(attribute.String("payment.error_code", outcome.ErrorCode))
			c.JSON(http.StatusBadRequest, outcome)
			return
		}
		h.fail(c, span, err)
		return
	}

	span.SetAttributes(attribute.String("payment.transaction_id", outcome.TransactionID))
	c.JSON(http.StatusOK, outcome)
}

// RefundPayment é o endpoint POST /payments/refund/
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	var req RefundPaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "refund", "payment", req.PaymentID)
	defer span.End()

	outcome, err := h.useCase.RefundPayment(ctx, req)
	if err != nil {
		if outcome != nil && errors.Is(err, apperr.ErrGateway) {
			span.SetAttributes(attribute.String("payment.error_code", outcome.ErrorCode))
			c.JSON(http.StatusBadRequest, outcome)
			return
		}
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}
