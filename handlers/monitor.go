package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phonginreallife/fieldwatch/db"
	"github.com/phonginreallife/fieldwatch/services"
	"github.com/phonginreallife/fieldwatch/workers"
)

// MonitorController is the part of the monitor worker exposed over HTTP
type MonitorController interface {
	Start(ctx context.Context) bool
	Stop() bool
	Snapshot() db.StatusSnapshot
	Appointments() []db.MonitoredAppointment
	Appointment(id string) (db.MonitoredAppointment, error)
	HandleMessage(ctx context.Context, msg db.InboundMessage) (services.CheckInResult, error)
}

type MonitorHandler struct {
	Monitor         MonitorController
	NotificationLog *services.NotificationLogService // optional
}

func NewMonitorHandler(monitor MonitorController, notificationLog *services.NotificationLogService) *MonitorHandler {
	return &MonitorHandler{
		Monitor:         monitor,
		NotificationLog: notificationLog,
	}
}

// GetStatus returns the session summary
// GET /monitor/status
func (h *MonitorHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Monitor.Snapshot())
}

// ListAppointments returns every monitored appointment ordered by target check-in
// GET /monitor/appointments
func (h *MonitorHandler) ListAppointments(c *gin.Context) {
	appointments := h.Monitor.Appointments()

	if status := c.Query("status"); status != "" {
		var want db.Status
		if err := want.UnmarshalText([]byte(status)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter: " + err.Error()})
			return
		}
		filtered := make([]db.MonitoredAppointment, 0, len(appointments))
		for _, appt := range appointments {
			if appt.Status == want {
				filtered = append(filtered, appt)
			}
		}
		appointments = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"appointments": appointments,
		"total":        len(appointments),
	})
}

// GetAppointment returns one appointment, with delivery counts when the notification log is enabled
// GET /monitor/appointments/:id
func (h *MonitorHandler) GetAppointment(c *gin.Context) {
	id := c.Param("id")
	appt, err := h.Monitor.Appointment(id)
	if err != nil {
		if errors.Is(err, services.ErrAppointmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Appointment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := gin.H{"appointment": appt}
	if h.NotificationLog != nil {
		counts, err := h.NotificationLog.CountByStatus(c.Request.Context(), id)
		if err != nil {
			log.Printf("Failed to read notification log for %s: %v", id, err)
		} else {
			response["notifications"] = counts
		}
	}
	c.JSON(http.StatusOK, response)
}

// StartMonitor starts a new monitoring session
// POST /monitor/start
func (h *MonitorHandler) StartMonitor(c *gin.Context) {
	started := h.Monitor.Start(c.Request.Context())
	status := http.StatusOK
	message := "Monitor started"
	if !started {
		status = http.StatusConflict
		message = "Monitor is already running"
	}
	c.JSON(status, gin.H{
		"started": started,
		"message": message,
		"status":  h.Monitor.Snapshot(),
	})
}

// StopMonitor stops the running session
// POST /monitor/stop
func (h *MonitorHandler) StopMonitor(c *gin.Context) {
	stopped := h.Monitor.Stop()
	message := "Monitor stopping"
	if !stopped {
		message = "Monitor was not running"
	}
	c.JSON(http.StatusOK, gin.H{
		"stopped": stopped,
		"message": message,
	})
}

// ReceiveMessage accepts an inbound chat message from a worker
// POST /monitor/messages
func (h *MonitorHandler) ReceiveMessage(c *gin.Context) {
	var msg db.InboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.Monitor.HandleMessage(c.Request.Context(), msg)
	if err != nil {
		if errors.Is(err, workers.ErrMonitorNotRunning) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Monitor is not running"})
			return
		}
		// The registry was updated; only the reply could not be queued
		if result.Outcome != "" {
			c.JSON(http.StatusAccepted, gin.H{"result": result, "warning": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}
