package orders

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/matheusmosca/order-fulfillment/internal/httpx"
)

// ServiceName identifica o serviço em logs, traces e config
const ServiceName = "orders-service"

// NewRouter monta as rotas do serviço de pedidos
func NewRouter(handler *OrderHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(ServiceName))

	r.GET("/health", httpx.Health(ServiceName))

	orders := r.Group("/orders")
	{
		orders.POST("/", handler.CreateOrder)
		orders.GET("/:id/", handler.GetOrder)
		orders.GET("/:id/history/", handler.GetHistory)
		orders.GET("/:id/status/", handler.GetStatus)
		orders.POST("/:id/update_status/", handler.UpdateStatus)

		orders.POST("/:id/items/", handler.AddItem)
		orders.PUT("/:id/items/:item_id/", handler.UpdateItem)
		orders.DELETE("/:id/items/:item_id/", handler.RemoveItem)

		orders.POST("/:id/update_payment/", handler.UpdatePayment)
		orders.POST("/:id/update_shipment/", handler.UpdateShipment)
	}

	return r
}
