package service

import (
	"errors"
	"fmt"

	"sentinelir/internal/catalog"
	"sentinelir/internal/store"
	"sentinelir/pkg/models"
)

var (
	// ErrValidation is returned for malformed requests.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when an event or incident does not exist.
	ErrNotFound = store.ErrNotFound
	// ErrCatalogUnavailable marks a degraded catalog load.
	ErrCatalogUnavailable = catalog.ErrUnavailable
)

// PersistenceError reports a failed write. Incident carries the record that
// was computed; Stored tells whether it reached the incident store.
type PersistenceError struct {
	Op       string
	Incident *models.SecurityIncident
	Stored   bool
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
