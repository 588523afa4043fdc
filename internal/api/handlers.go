package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/miradorstack/mirador-remediate/internal/engine"
	"github.com/miradorstack/mirador-remediate/internal/models"
	"github.com/miradorstack/mirador-remediate/internal/utils"
)

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"services": s.registry.List()})
}

func (s *Server) handleGetService(c *gin.Context) {
	svc, err := s.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) handleServiceIncidents(c *gin.Context) {
	if _, err := s.registry.Get(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": s.store.ListByService(c.Param("id"))})
}

func (s *Server) handleListIncidents(c *gin.Context) {
	if c.Query("active") == "true" {
		c.JSON(http.StatusOK, gin.H{"incidents": s.store.ListActive()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": s.store.List()})
}

type simulateRequest struct {
	ServiceID string `json:"serviceId" binding:"required"`
}

func (s *Server) handleSimulateIncident(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serviceId is required"})
		return
	}

	inc, err := s.orchestrator.Simulate(req.ServiceID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"incidentId": inc.ID, "incident": inc})
}

type manualActionRequest struct {
	Action models.ActionType `json:"action" binding:"required"`
	Reason string            `json:"reason"`
}

// handleManualAction executes an operator-chosen action. It bypasses the
// decision engine but still goes through the coordinator's locking and
// verification, so a manual trigger can observe Busy like any other.
func (s *Server) handleManualAction(c *gin.Context) {
	svc, err := s.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}

	var req manualActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual operator action"
	}
	decision := models.Decision{Action: req.Action, Reason: reason, Confidence: 1}

	// Detached context: execution and verification outlive the HTTP request.
	record, err := s.coordinator.Trigger(context.Background(), svc, decision, nil, nil)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrBusy):
			c.JSON(http.StatusConflict, gin.H{"error": "remediation already in flight"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusAccepted, record)
}

func (s *Server) handleListActions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"actions": s.coordinator.Records()})
}

func (s *Server) handleHotspots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"hotspots": engine.MineHotspots(s.store.List())})
}

func (s *Server) handleEngineStatus(c *gin.Context) {
	status := gin.H{
		"patterns":        s.engine.PatternCount(),
		"activeIncidents": len(s.store.ListActive()),
	}
	if s.hub != nil {
		status["websocketClients"] = s.hub.ClientCount()
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleWebsocket(c *gin.Context) {
	if err := s.hub.Upgrade(c.Writer, c.Request); err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
	}
}
