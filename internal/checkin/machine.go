// Package checkin decides whether a scanned ticket id is admitted.
//
// The decision is a single conditional transition booked -> arrived
// against the store.  There is no read-then-write: two door devices
// scanning the same ticket at the same moment race inside the store,
// one wins with OutcomeGranted and the other gets
// OutcomeAlreadyArrived.
package checkin

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
)

// Store is the part of repository.TicketStore the machine needs.
type Store interface {
	SetStatus(ctx context.Context, id string, from, to model.Status) (model.Ticket, error)
}

// Publisher announces the status change to other devices.
type Publisher interface {
	Publish(ctx context.Context, ev model.ChangeEvent) error
}

// Machine is the check-in state machine.
type Machine struct {
	store Store
	feed  Publisher
	log   *zap.Logger
}

// New returns a Machine.  feed may be nil when nothing listens for
// changes.
func New(store Store, feed Publisher, log *zap.Logger) *Machine {
	if store == nil {
		panic("nil store passed to checkin.New")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{store: store, feed: feed, log: log}
}

// CheckIn admits the ticket with the given id.  The only state change
// happens on OutcomeGranted.  A non-nil error means the store could not
// be reached and nothing is known about the ticket; the caller should
// report it and let the operator retry.
func (m *Machine) CheckIn(ctx context.Context, id string) (model.CheckInOutcome, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.CheckInOutcome{Kind: model.OutcomeNotFound}, nil
	}

	t, err := m.store.SetStatus(ctx, id, model.StatusBooked, model.StatusArrived)
	switch {
	case err == nil:
		m.publish(ctx, t)
		m.log.Info("ticket checked in", zap.String("ticket_id", t.ID))
		return model.CheckInOutcome{Kind: model.OutcomeGranted, Ticket: &t}, nil
	case errors.Is(err, repository.ErrTicketNotFound):
		m.log.Info("unknown ticket scanned", zap.String("ticket_id", id))
		return model.CheckInOutcome{Kind: model.OutcomeNotFound}, nil
	case errors.Is(err, repository.ErrStatusMismatch):
		m.log.Info("duplicate entry rejected", zap.String("ticket_id", t.ID))
		return model.CheckInOutcome{Kind: model.OutcomeAlreadyArrived, Ticket: &t}, nil
	default:
		m.log.Error("check-in failed", zap.String("ticket_id", id), zap.Error(err))
		return model.CheckInOutcome{}, err
	}
}

func (m *Machine) publish(ctx context.Context, t model.Ticket) {
	if m.feed == nil {
		return
	}
	ev := model.ChangeEvent{Type: model.ChangeUpdate, TicketID: t.ID, Ticket: &t}
	if err := m.feed.Publish(ctx, ev); err != nil {
		// The store already committed; peers resync on reconnect.
		m.log.Warn("publish check-in change failed", zap.String("ticket_id", t.ID), zap.Error(err))
	}
}
