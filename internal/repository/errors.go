// Package repository defines the ticket and settings stores and the
// error values shared by every backend.  Handlers and services
// distinguish failure scenarios with errors.Is against these sentinels:
// ErrTicketNotFound maps to 404, ErrDuplicateID to 409 and
// ErrStoreUnavailable to 503.
package repository

import (
	"errors"
	"fmt"
)

// ErrTicketNotFound is returned when no ticket exists for an id.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrDuplicateID is returned by Create when the id is already taken.
var ErrDuplicateID = errors.New("duplicate ticket id")

// ErrStatusMismatch is returned by SetStatus when the stored status is
// not the expected predecessor.  The current record is returned
// alongside it.
var ErrStatusMismatch = errors.New("ticket status mismatch")

// ErrStoreUnavailable wraps any backend failure (network, driver,
// filesystem).  The operation did not complete and may be retried.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrEmailExists is returned when registering a staff email twice.
var ErrEmailExists = errors.New("email already exists")

// unavailable wraps err so that errors.Is(err, ErrStoreUnavailable)
// holds while the driver error stays inspectable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
