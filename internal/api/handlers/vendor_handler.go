package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/service"
)

type VendorHandler struct {
	service *service.ForecastService
}

func NewVendorHandler(service *service.ForecastService) *VendorHandler {
	return &VendorHandler{service: service}
}

type bestVendorRequest struct {
	ItemID     string  `json:"item_id" validate:"required"`
	Quantity   float64 `json:"quantity" validate:"gt=0"`
	Preference string  `json:"preference" default:"balanced"`
}

type optimizeRequest struct {
	Lines      []domain.OrderLine `json:"lines" validate:"required,min=1,dive"`
	Preference string             `json:"preference" default:"balanced"`
}

type refreshMetricsRequest struct {
	LookbackDays int `json:"lookback_days" default:"90" validate:"gte=1,lte=3650"`
}

func parsePreference(label string) (domain.PreferenceProfile, error) {
	pref, ok := domain.ParsePreference(label)
	if !ok {
		return "", fmt.Errorf("unknown preference %q, expected price, speed or balanced", label)
	}
	return pref, nil
}

// FindBestVendor handles POST /vendors/best
func (h *VendorHandler) FindBestVendor(c *gin.Context) {
	var req bestVendorRequest
	if err := bindRequest(c, &req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	pref, err := parsePreference(req.Preference)
	if err != nil {
		badRequest(c, "invalid preference", err)
		return
	}

	options, err := h.service.FindBestVendor(c.Request.Context(), req.ItemID, req.Quantity, pref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item_id":    req.ItemID,
		"quantity":   req.Quantity,
		"preference": pref,
		"options":    options,
	})
}

// OptimizeOrder handles POST /vendors/optimize
func (h *VendorHandler) OptimizeOrder(c *gin.Context) {
	var req optimizeRequest
	if err := bindRequest(c, &req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	pref, err := parsePreference(req.Preference)
	if err != nil {
		badRequest(c, "invalid preference", err)
		return
	}

	plan, err := h.service.OptimizeBulkOrder(c.Request.Context(), req.Lines, pref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// RefreshMetrics handles POST /vendors/metrics/refresh
func (h *VendorHandler) RefreshMetrics(c *gin.Context) {
	var req refreshMetricsRequest
	if c.Request.ContentLength == 0 {
		if err := defaultsOnly(&req); err != nil {
			badRequest(c, "invalid request body", err)
			return
		}
	} else if err := bindRequest(c, &req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -req.LookbackDays)
	updated, err := h.service.RefreshVendorMetrics(c.Request.Context(), since)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since, "vendors": updated})
}
