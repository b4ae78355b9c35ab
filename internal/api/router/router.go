package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/bangbuy/notification-service/internal/api/handlers/device"
	"github.com/bangbuy/notification-service/internal/api/handlers/notify"
	"github.com/bangbuy/notification-service/internal/api/handlers/sweep"
	"github.com/bangbuy/notification-service/internal/middlewares"
)

func New(notifyHandler *notify.Handler, sweepHandler *sweep.Handler, deviceHandler *device.Handler) *ginext.Engine {
	e := ginext.New()
	e.Use(middlewares.CORSMiddleware())
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	api := e.Group("/api/notify")
	{
		api.POST("/message", notifyHandler.Message)
		api.POST("/read", notifyHandler.Read)
		api.GET("/jobs/:id", notifyHandler.JobStatus)
		api.GET("/sweep", sweepHandler.Trigger)
		api.POST("/sweep", sweepHandler.Trigger)
	}

	devices := e.Group("/api/devices")
	{
		devices.POST("/", deviceHandler.Register)
	}

	return e
}
