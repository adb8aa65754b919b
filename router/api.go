package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/phonginreallife/fieldwatch/handlers"
)

func NewGinRouter(monitorHandler *handlers.MonitorHandler) *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
		})
	})

	monitor := r.Group("/monitor")
	{
		monitor.GET("/status", monitorHandler.GetStatus)
		monitor.GET("/appointments", monitorHandler.ListAppointments)
		monitor.GET("/appointments/:id", monitorHandler.GetAppointment)
		monitor.POST("/start", monitorHandler.StartMonitor)
		monitor.POST("/stop", monitorHandler.StopMonitor)
		monitor.POST("/messages", monitorHandler.ReceiveMessage)
	}

	return r
}
