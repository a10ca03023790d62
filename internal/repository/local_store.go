package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/iliyamo/event-checkin/internal/model"
)

// Storage keys of the local variant.  Each key is persisted as one JSON
// document named <key>.json inside the data directory.
const (
	TicketsKey  = "tickets"
	SettingsKey = "eventSettings"
)

// LocalStore is the single-process backend.  It implements both
// TicketStore and SettingsStore on top of two JSON documents.  Every
// operation runs under one mutex, which is what makes SetStatus atomic
// here; the whole document is rewritten after each mutation.
type LocalStore struct {
	dir string

	mu       sync.Mutex
	tickets  []model.Ticket // newest first
	settings *model.EventSettings
}

// OpenLocalStore loads (or initialises) the documents under dir.
func OpenLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, unavailable("open local store", err)
	}
	s := &LocalStore{dir: dir}
	if err := s.load(TicketsKey, &s.tickets); err != nil {
		return nil, err
	}
	var settings model.EventSettings
	if err := s.load(SettingsKey, &settings); err != nil {
		return nil, err
	}
	if settings != (model.EventSettings{}) {
		s.settings = &settings
	}
	if s.tickets == nil {
		s.tickets = []model.Ticket{}
	}
	return s, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *LocalStore) load(key string, dst any) error {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return unavailable("read "+key, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return unavailable("decode "+key, err)
	}
	return nil
}

// persist writes the document through a temp file and rename so a
// crash never leaves a truncated document behind.  Callers hold s.mu.
func (s *LocalStore) persist(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return unavailable("encode "+key, err)
	}
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return unavailable("write "+key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return unavailable("write "+key, err)
	}
	return nil
}

func (s *LocalStore) indexOf(id string) int {
	for i := range s.tickets {
		if s.tickets[i].ID == id {
			return i
		}
	}
	return -1
}

// Create prepends the ticket, matching the newest-first order.
func (s *LocalStore) Create(_ context.Context, t model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(t.ID) >= 0 {
		return ErrDuplicateID
	}
	next := make([]model.Ticket, 0, len(s.tickets)+1)
	next = append(next, t)
	next = append(next, s.tickets...)
	if err := s.persist(TicketsKey, next); err != nil {
		return err
	}
	s.tickets = next
	return nil
}

// Get returns the ticket with the given id.
func (s *LocalStore) Get(_ context.Context, id string) (model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.Ticket{}, ErrTicketNotFound
	}
	return s.tickets[i], nil
}

// ListAll returns a copy of all tickets ordered by created_at desc,
// then id desc, the same order TicketRepo uses.
func (s *LocalStore) ListAll(_ context.Context) ([]model.Ticket, error) {
	s.mu.Lock()
	out := make([]model.Ticket, len(s.tickets))
	copy(out, s.tickets)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// SetStatus applies the transition while holding the store lock.
func (s *LocalStore) SetStatus(_ context.Context, id string, from, to model.Status) (model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.Ticket{}, ErrTicketNotFound
	}
	current := s.tickets[i]
	if current.Status != from {
		return current, ErrStatusMismatch
	}
	next := make([]model.Ticket, len(s.tickets))
	copy(next, s.tickets)
	next[i].Status = to
	if err := s.persist(TicketsKey, next); err != nil {
		return model.Ticket{}, err
	}
	s.tickets = next
	return next[i], nil
}

// Delete removes one ticket.
func (s *LocalStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ErrTicketNotFound
	}
	next := make([]model.Ticket, 0, len(s.tickets)-1)
	next = append(next, s.tickets[:i]...)
	next = append(next, s.tickets[i+1:]...)
	if err := s.persist(TicketsKey, next); err != nil {
		return err
	}
	s.tickets = next
	return nil
}

// DeleteMany removes every listed id that exists.
func (s *LocalStore) DeleteMany(_ context.Context, ids []string) (int64, error) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]model.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		if _, ok := drop[t.ID]; !ok {
			next = append(next, t)
		}
	}
	removed := int64(len(s.tickets) - len(next))
	if removed == 0 {
		return 0, nil
	}
	if err := s.persist(TicketsKey, next); err != nil {
		return 0, err
	}
	s.tickets = next
	return removed, nil
}

// GetSettings returns the saved settings or the defaults.
func (s *LocalStore) GetSettings(_ context.Context) (model.EventSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return model.DefaultSettings(), nil
	}
	return *s.settings, nil
}

// SaveSettings replaces the settings document.
func (s *LocalStore) SaveSettings(_ context.Context, settings model.EventSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(SettingsKey, settings); err != nil {
		return err
	}
	s.settings = &settings
	return nil
}
