package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stockcast/internal/service"
)

type TrainingHandler struct {
	service *service.ForecastService
}

func NewTrainingHandler(service *service.ForecastService) *TrainingHandler {
	return &TrainingHandler{service: service}
}

// StartTraining handles POST /training/run. The run continues in the
// background; poll /training/status for the outcome.
func (h *TrainingHandler) StartTraining(c *gin.Context) {
	runID, err := h.service.StartTraining(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"run_id":  runID,
		"message": "training started",
	})
}

func (h *TrainingHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.TrainingStatus())
}

// GetModel describes the model currently serving forecasts
func (h *TrainingHandler) GetModel(c *gin.Context) {
	snap := h.service.ModelInfo()
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"available":     true,
		"version":       snap.Version,
		"window_length": snap.WindowLength,
		"trained_at":    snap.TrainedAt,
		"items":         len(snap.Norms),
		"report":        snap.Report,
	})
}
