package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ForecastHandler struct {
	service *service.ForecastService
}

func NewForecastHandler(service *service.ForecastService) *ForecastHandler {
	return &ForecastHandler{service: service}
}

type batchForecastRequest struct {
	ItemIDs   []string `json:"item_ids" validate:"required,min=1,max=500,dive,required"`
	DaysAhead int      `json:"days_ahead" validate:"gte=0,lte=730"`
}

type stockCountRequest struct {
	Count     float64    `json:"count" validate:"gte=0"`
	CountedAt *time.Time `json:"counted_at"`
}

// parseDays reads ?days=; absent means the configured horizon
func parseDays(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("days"))
	if raw == "" {
		return 0, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > 730 {
		return 0, fmt.Errorf("days must be an integer between 1 and 730, got %q", raw)
	}
	return days, nil
}

// GetForecast handles GET /forecast/items/:id
func (h *ForecastHandler) GetForecast(c *gin.Context) {
	days, err := parseDays(c)
	if err != nil {
		badRequest(c, "invalid days", err)
		return
	}

	result, err := h.service.GetForecast(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// BatchForecast handles POST /forecast/batch. Per-item failures are
// reported inline and do not fail the request.
func (h *ForecastHandler) BatchForecast(c *gin.Context) {
	var req batchForecastRequest
	if err := bindRequest(c, &req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	entries := h.service.BatchForecast(c.Request.Context(), req.ItemIDs, req.DaysAhead)
	c.JSON(http.StatusOK, gin.H{"results": entries})
}

func (h *ForecastHandler) GetAnomalies(c *gin.Context) {
	anomalies, err := h.service.Anomalies(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": c.Param("id"), "anomalies": anomalies})
}

// RecordStockCount handles POST /forecast/items/:id/counts
func (h *ForecastHandler) RecordStockCount(c *gin.Context) {
	var req stockCountRequest
	if err := bindRequest(c, &req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	count := domain.StockCount{ItemID: c.Param("id"), Count: req.Count}
	if req.CountedAt != nil {
		count.CountedAt = req.CountedAt.UTC()
	}
	if err := h.service.RecordStockCount(c.Request.Context(), count); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *ForecastHandler) GetReorderReport(c *gin.Context) {
	report, err := h.service.GetReorderReport(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ExportReorder streams the reorder report as an xlsx attachment
func (h *ForecastHandler) ExportReorder(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.service.ExportWorkbook(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("reorder-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
