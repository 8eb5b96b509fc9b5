package shipments

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-fulfillment/internal/httpx"
	"github.com/matheusmosca/order-fulfillment/internal/telemetry"
)

// ShipmentHandler contém os handlers HTTP para entregas
type ShipmentHandler struct {
	useCase *ShipmentUseCase
	tracer  trace.Tracer
	log     *zap.Logger
}

// NewShipmentHandler cria uma nova instância de ShipmentHandler
func NewShipmentHandler(useCase *ShipmentUseCase, tracer trace.Tracer, log *zap.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		useCase: useCase,
		tracer:  tracer,
		log:     log,
	}
}

func (h *ShipmentHandler) fail(c *gin.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	httpx.WriteError(c, h.log, err)
}

// CreateShipment é o endpoint POST /shipments/
func (h *ShipmentHandler) CreateShipment(c *gin.Context) {
	var req CreateShipmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "create_shipment")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("shipping_provider", req.ShippingProvider),
	)

	view, err := h.useCase.CreateShipment(ctx, req)
	if err != nil {
		h.fail(c, span, err)
		return
	}

	span.SetAttributes(
		attribute.String("shipment_id", view.ID),
		attribute.String("tracking_number", view.TrackingNumber),
	)
	c.JSON(http.StatusCreated, view)
}

// ListShipments é o endpoint GET /shipments/?order_id=&status=&tracking_number=
func (h *ShipmentHandler) ListShipments(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "list_shipments")
	defer span.End()

	views, err := h.useCase.ListShipments(ctx, Filter{
		OrderID:        c.Query("order_id"),
		Status:         c.Query("status"),
		TrackingNumber: c.Query("tracking_number"),
	})
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GetShipment é o endpoint GET /shipments/:id/
func (h *ShipmentHandler) GetShipment(c *gin.Context) {
	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "get", "shipment", c.Param("id"))
	defer span.End()

	view, err := h.useCase.GetShipment(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetHistory é o endpoint GET /shipments/:id/history/
func (h *ShipmentHandler) GetHistory(c *gin.Context) {
	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "history", "shipment", c.Param("id"))
	defer span.End()

	history, err := h.useCase.GetHistory(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// Tracking é o endpoint GET /shipments/:id/tracking/
func (h *ShipmentHandler) Tracking(c *gin.Context) {
	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "tracking", "shipment", c.Param("id"))
	defer span.End()

	tracking, err := h.useCase.Tracking(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, span, err)
		return
	}
	span.SetAttributes(attribute.Bool("tracking.simulated", tracking.Simulated))
	c.JSON(http.StatusOK, tracking)
}

// UpdateStatus é o endpoint POST /shipments/:id/update_status/
func (h *ShipmentHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "update_status", "shipment", c.Param("id"))
	defer span.End()
	span.SetAttributes(attribute.String("shipment.new_status", req.Status))

	view, err := h.useCase.UpdateStatus(ctx, c.Param("id"), req)
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ProcessShipment é o endpoint POST /shipments/process/
func (h *ShipmentHandler) ProcessShipment(c *gin.Context) {
	var req ShipmentActionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "process", "shipment", req.ShipmentID)
	defer span.End()

	view, err := h.useCase.ProcessShipment(ctx, req.ShipmentID)
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ShipShipment é o endpoint POST /shipments/ship/
func (h *ShipmentHandler) ShipShipment(c *gin.Context) {
	var req ShipmentActionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "ship", "shipment", req.ShipmentID)
	defer span.End()

	view, err := h.useCase.ShipShipment(ctx, req.ShipmentID)
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeliverShipment é o endpoint POST /shipments/deliver/
func (h *ShipmentHandler) DeliverShipment(c *gin.Context) {
	var req DeliverInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BindError(c, err)
		return
	}

	ctx, span := telemetry.StartWorkflowSpan(c.Request.Context(), h.tracer, "deliver", "shipment", req.ShipmentID)
	defer span.End()

	view, err := h.useCase.DeliverShipment(ctx, req)
	if err != nil {
		h.fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
