package orders

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-fulfillment/internal/httpx"
	"github.com/matheusmosca/order-fulfillment/internal/notifier"
	"github.com/matheusmosca/order-fulfillment/internal/telemetry"
)

// UpdateStatusRequest representa a requisição de mudança de status
type UpdateStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment"`
}

// OrderHandler contém os handlers HTTP para pedidos
type OrderHandler struct {
	useCase *OrderUseCase
	tracer  trace.Tracer
	log     *zap.Logger
}

// NewOrderHandler cria uma nova instância de OrderHandler
func NewOrderHandler(useCase *OrderUseCase, tracer trace.Tracer, log *zap.Logger) *OrderHandler {
	return &OrderHandler{
		useCase: useCase,
		tracer:  tracer,
		log:     log,
	}
}

func (h *OrderHandler) fail(c *gin.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	httpx.WriteError(c, h.log, err)
}

// CreateOrder é o endpoint POST /orders/
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "create_order")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer_id", req.CustomerID),
		attribute.Int("items", len(req.Items)),
	)

	order, err := h.useCase.CreateOrder(ctx, req)
	if err != nil {
		h.fail(c, span, err)
		return
	}

	span.SetAttributes(attribute.String("order_id", order.ID))
	c.JSON(http.StatusCreated, order)
}

// GetOrder é o endpoint GET /orders/:id/
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "get", "order", c.Param("id"))
	defer span.End()

	details, err := h.useCase.GetOrder(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// GetHistory é o endpoint GET /orders/:id/history/
func (h *OrderHandler) GetHistory(c *gin.Context) {
	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "history", "order", c.Param("id"))
	defer span.End()

	history, err := h.useCase.GetHistory(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// GetStatus é o endpoint GET /orders/:id/status/
func (h *OrderHandler) GetStatus(c *gin.Context) {
	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "status", "order", c.Param("id"))
	defer span.End()

	status, err := h.useCase.GetStatus(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":   c.Param("id"),
		"status":     status.Status,
		"updated_at": status.UpdatedAt,
	})
}

// UpdateStatus é o endpoint POST /orders/:id/update_status/
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "update_status", "order", c.Param("id"))
	defer span.End()
	span.SetAttributes(attribute.String("order.new_status", req.Status))

	order, err := h.useCase.Transition(ctx, c.Param("id"), req.Status, req.Comment)
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// AddItem é o endpoint POST /orders/:id/items/
func (h *OrderHandler) AddItem(c *gin.Context) {
	var req ItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "add_item", "order", c.Param("id"))
	defer span.End()
	span.SetAttributes(attribute.String("product_id", req.ProductID))

	order, err := h.useCase.AddItem(ctx, c.Param("id"), req)
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// UpdateItem é o endpoint PUT /orders/:id/items/:item_id/
func (h *OrderHandler) UpdateItem(c *gin.Context) {
	var req UpdateItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "update_item", "order", c.Param("id"))
	defer span.End()
	span.SetAttributes(attribute.String("item_id", c.Param("item_id")))

	order, err := h.useCase.UpdateItem(ctx, c.Param("id"), c.Param("item_id"), req)
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RemoveItem é o endpoint DELETE /orders/:id/items/:item_id/
func (h *OrderHandler) RemoveItem(c *gin.Context) {
	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "remove_item", "order", c.Param("id"))
	defer span.End()
	span.SetAttributes(attribute.String("item_id", c.Param("item_id")))

	order, err := h.useCase.RemoveItem(ctx, c.Param("id"), c.Param("item_id"))
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdatePayment é o endpoint de notificação POST /orders/:id/update_payment/
func (h *OrderHandler) UpdatePayment(c *gin.Context) {
	var req notifier.PaymentUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "update_payment", "order", c.Param("id"))
	defer span.End()
	span.SetAttributes(
		attribute.String("payment_id", req.PaymentID),
		attribute.String("payment.status", req.Status),
	)

	order, err := h.useCase.ApplyPaymentUpdate(ctx, c.Param("id"), req)
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateShipment é o endpoint de notificação POST /orders/:id/update_shipment/
func (h *OrderHandler) UpdateShipment(c *gin.Context) {
	var req notifier.ShipmentUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "update_shipment", "order", c.Param("id"))
	defer span.End()
	span.SetAttributes(
		attribute.String("shipment_id", req.ShipmentID),
		attribute.String("shipment.status", req.Status),
	)

	order, err := h.useCase.ApplyShipmentUpdate(ctx, c.Param("id"), req)
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
