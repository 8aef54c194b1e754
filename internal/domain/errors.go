package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced item or vendor does not exist
	ErrNotFound = errors.New("not found")

	// ErrInsufficientData marks too little history for training or a model forecast
	ErrInsufficientData = errors.New("insufficient data")

	// ErrModelUnavailable means no trained model has been published yet
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrTrainingInProgress is returned when a training run is already active
	ErrTrainingInProgress = errors.New("training already in progress")
)

// UnsourceableError lists the items no vendor can supply
type UnsourceableError struct {
	ItemIDs []string
}

func (e *UnsourceableError) Error() string {
	return fmt.Sprintf("no vendor can supply items: %s", strings.Join(e.ItemIDs, ", "))
}

// ItemNotFound wraps ErrNotFound with the item id
func ItemNotFound(id string) error {
	return fmt.Errorf("item %s: %w", id, ErrNotFound)
}

// VendorNotFound wraps ErrNotFound with the vendor id
func VendorNotFound(id string) error {
	return fmt.Errorf("vendor %s: %w", id, ErrNotFound)
}
