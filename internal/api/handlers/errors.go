package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/creasty/defaults"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/vendor"
)

var validate = validator.New()

// bindRequest applies `default` tags, decodes the JSON body over them and
// validates the result.
func bindRequest(c *gin.Context, req any) error {
	if err := defaults.Set(req); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.ShouldBindJSON(req); err != nil {
		return err
	}
	return validate.Struct(req)
}

// defaultsOnly is bindRequest for requests sent without a body
func defaultsOnly(req any) error {
	if err := defaults.Set(req); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	return validate.Struct(req)
}

func badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// respondError maps engine errors to status codes
func respondError(c *gin.Context, err error) {
	var unsourceable *domain.UnsourceableError
	switch {
	case errors.As(err, &unsourceable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "some items cannot be sourced from any vendor",
			"details": gin.H{"item_ids": unsourceable.ItemIDs},
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "details": err.Error()})
	case errors.Is(err, domain.ErrTrainingInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, vendor.ErrEmptyOrder):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal error",
			"details": err.Error(),
		})
	}
}
