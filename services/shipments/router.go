package shipments

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/matheusmosca/order-fulfillment/internal/httpx"
)

// ServiceName identifica o serviço em logs, traces e config
const ServiceName = "shipments-service"

// NewRouter monta as rotas do serviço de entregas
func NewRouter(handler *ShipmentHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(ServiceName))

	r.GET("/health", httpx.Health(ServiceName))

	shipments := r.Group("/shipments")
	{
		shipments.POST("/", handler.CreateShipment)
		shipments.GET("/", handler.ListShipments)
		shipments.POST("/process/", handler.ProcessShipment)
		shipments.POST("/ship/", handler.ShipShipment)
		shipments.POST("/deliver/", handler.DeliverShipment)

		shipments.GET("/:id/", handler.GetShipment)
		shipments.GET("/:id/history/", handler.GetHistory)
		shipments.GET("/:id/tracking/", handler.Tracking)
		shipments.POST("/:id/update_status/", handler.UpdateStatus)
	}

	return r
}
