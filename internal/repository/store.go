package repository

import (
	"context"

	"github.com/iliyamo/event-checkin/internal/model"
)

// TicketStore is the contract both backends honour.  The store owns the
// authoritative copy of every ticket; callers keep caches only for
// display.
type TicketStore interface {
	// Create persists a new ticket.  It fails with ErrDuplicateID when
	// the id is taken and never overwrites an existing record.
	Create(ctx context.Context, t model.Ticket) error
	// Get returns the committed record or ErrTicketNotFound.
	Get(ctx context.Context, id string) (model.Ticket, error)
	// ListAll returns every ticket, newest first.
	ListAll(ctx context.Context) ([]model.Ticket, error)
	// SetStatus moves a ticket from one status to another atomically.
	// Exactly one of several concurrent callers with the same from
	// status succeeds; the others get ErrStatusMismatch and the
	// current record.
	SetStatus(ctx context.Context, id string, from, to model.Status) (model.Ticket, error)
	// Delete removes one ticket or returns ErrTicketNotFound.
	Delete(ctx context.Context, id string) error
	// DeleteMany removes exactly the listed ids and reports how many
	// existed.  Unknown ids are ignored.
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

// SettingsStore persists the EventSettings singleton.
type SettingsStore interface {
	// GetSettings returns the saved settings, or the defaults when
	// nothing has been saved yet.
	GetSettings(ctx context.Context) (model.EventSettings, error)
	SaveSettings(ctx context.Context, s model.EventSettings) error
}
