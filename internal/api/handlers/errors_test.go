package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/vendor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "missing item", err: domain.ItemNotFound("sku-9"), status: http.StatusNotFound},
		{name: "wrapped missing vendor", err: fmt.Errorf("load: %w", domain.VendorNotFound("v-1")), status: http.StatusNotFound},
		{name: "unsourceable", err: &domain.UnsourceableError{ItemIDs: []string{"a", "b"}}, status: http.StatusUnprocessableEntity},
		{name: "training running", err: domain.ErrTrainingInProgress, status: http.StatusConflict},
		{name: "empty order", err: vendor.ErrEmptyOrder, status: http.StatusBadRequest},
		{name: "anything else", err: errors.New("db down"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestBindRequestAppliesDefaults(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"item_id":"sku-1","quantity":4}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var req bestVendorRequest
	require.NoError(t, bindRequest(c, &req))
	assert.Equal(t, "balanced", req.Preference)
	assert.Equal(t, 4.0, req.Quantity)

	var metricsReq refreshMetricsRequest
	require.NoError(t, defaultsOnly(&metricsReq))
	assert.Equal(t, 90, metricsReq.LookbackDays)
}

func TestParsePreference(t *testing.T) {
	pref, err := parsePreference("Speed")
	require.NoError(t, err)
	assert.Equal(t, domain.PreferenceSpeed, pref)

	_, err = parsePreference("fastest")
	assert.Error(t, err)
}
