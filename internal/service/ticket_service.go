// Package service holds the application logic that sits between the
// HTTP handlers and the stores: ticket creation with id regeneration,
// deletion with change events, settings and the scan pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/clock"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/syncbridge"
)

// ErrInvalidTicket is returned when the submitted ticket form is incomplete.
var ErrInvalidTicket = errors.New("invalid ticket")

// MaxCreateAttempts bounds id regeneration after ErrDuplicateID.
const MaxCreateAttempts = 5

var genders = map[string]struct{}{"male": {}, "female": {}, "other": {}}

// NewTicket is the organizer's ticket form.
type NewTicket struct {
	FullName    string `json:"full_name"`
	Gender      string `json:"gender"`
	Age         int    `json:"age"`
	PhoneNumber string `json:"phone_number"`
}

// Normalize trims the text fields and lowercases the gender.
func (n NewTicket) Normalize() NewTicket {
	n.FullName = strings.TrimSpace(n.FullName)
	n.Gender = strings.ToLower(strings.TrimSpace(n.Gender))
	n.PhoneNumber = strings.TrimSpace(n.PhoneNumber)
	return n
}

// Validate checks a normalized form.
func (n NewTicket) Validate() error {
	switch {
	case n.FullName == "":
		return fmt.Errorf("%w: full_name is required", ErrInvalidTicket)
	case n.Age <= 0:
		return fmt.Errorf("%w: age must be a positive number", ErrInvalidTicket)
	case n.PhoneNumber == "":
		return fmt.Errorf("%w: phone_number is required", ErrInvalidTicket)
	}
	if _, ok := genders[n.Gender]; !ok {
		return fmt.Errorf("%w: gender must be male, female or other", ErrInvalidTicket)
	}
	return nil
}

// IDGenerator mints candidate ticket ids.
type IDGenerator interface {
	Generate() string
}

// TicketService creates, reads and deletes tickets and announces every
// committed change on the feed.
type TicketService struct {
	store   repository.TicketStore
	ids     IDGenerator
	feed    syncbridge.Feed
	clock   clock.Clock
	eventID string
	log     *zap.Logger
}

// NewTicketService wires a TicketService.  eventID defaults to
// model.DefaultEventID.
func NewTicketService(store repository.TicketStore, ids IDGenerator, feed syncbridge.Feed, clk clock.Clock, eventID string, log *zap.Logger) *TicketService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if eventID == "" {
		eventID = model.DefaultEventID
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TicketService{store: store, ids: ids, feed: feed, clock: clk, eventID: eventID, log: log}
}

func (s *TicketService) publish(ctx context.Context, ev model.ChangeEvent) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.log.Warn("change event not delivered", zap.String("type", string(ev.Type)), zap.String("ticket_id", ev.TicketID), zap.Error(err))
	}
}

// Create validates the form and stores a new booked ticket.  An id
// collision is never overwritten: a fresh id is minted and the insert
// retried, up to MaxCreateAttempts times.
func (s *TicketService) Create(ctx context.Context, in NewTicket) (model.Ticket, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return model.Ticket{}, err
	}
	t := model.Ticket{
		FullName:    in.FullName,
		Gender:      in.Gender,
		Age:         in.Age,
		PhoneNumber: in.PhoneNumber,
		Status:      model.StatusBooked,
		CreatedAt:   s.clock.Now().Truncate(time.Millisecond), // DATETIME(3)
		EventID:     s.eventID,
	}
	for attempt := 1; attempt <= MaxCreateAttempts; attempt++ {
		t.ID = s.ids.Generate()
		err := s.store.Create(ctx, t)
		if err == nil {
			s.publish(ctx, model.ChangeEvent{Type: model.ChangeInsert, TicketID: t.ID, Ticket: &t})
			return t, nil
		}
		if !errors.Is(err, repository.ErrDuplicateID) {
			return model.Ticket{}, err
		}
		s.log.Warn("ticket id collision, regenerating", zap.String("ticket_id", t.ID), zap.Int("attempt", attempt))
	}
	return model.Ticket{}, fmt.Errorf("create ticket after %d attempts: %w", MaxCreateAttempts, repository.ErrDuplicateID)
}

// Get reads one ticket from the store.
func (s *TicketService) Get(ctx context.Context, id string) (model.Ticket, error) {
	return s.store.Get(ctx, strings.TrimSpace(id))
}

// List reads every ticket, newest first.
func (s *TicketService) List(ctx context.Context) ([]model.Ticket, error) {
	return s.store.ListAll(ctx)
}

// Delete removes one ticket.
func (s *TicketService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, model.ChangeEvent{Type: model.ChangeDelete, TicketID: id})
	return nil
}

// DeleteMany removes the listed tickets and returns how many were
// removed.  Blank and repeated ids are dropped.  A delete event is
// published for every requested id once anything was removed; caches
// ignore deletes for ids they do not hold.
func (s *TicketService) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	uniq := dedupe(ids)
	if len(uniq) == 0 {
		return 0, nil
	}
	n, err := s.store.DeleteMany(ctx, uniq)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		for _, id := range uniq {
			s.publish(ctx, model.ChangeEvent{Type: model.ChangeDelete, TicketID: id})
		}
	}
	return n, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
