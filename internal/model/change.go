package model

import "time"

// ChangeType names the kind of row change carried on the change feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
	// ChangeReset tells listeners the whole list was reloaded.
	ChangeReset ChangeType = "reset"
)

// ChangeEvent describes one ticket row change.  Ticket is set for
// insert and update; delete only carries TicketID.  Origin identifies
// the instance that performed the write.
type ChangeEvent struct {
	ID       string     `json:"id"`
	Type     ChangeType `json:"type"`
	TicketID string     `json:"ticket_id"`
	Ticket   *Ticket    `json:"ticket,omitempty"`
	Origin   string     `json:"origin"`
	At       time.Time  `json:"at"`
}
