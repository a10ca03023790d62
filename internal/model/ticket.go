package model

import "time"

// Status is the lifecycle state of a ticket.  A ticket starts as
// StatusBooked and moves to StatusArrived exactly once, at the door.
// There is no transition out of StatusArrived.
type Status string

const (
	StatusBooked  Status = "booked"
	StatusArrived Status = "arrived"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusBooked || s == StatusArrived
}

// DefaultEventID groups tickets until multi-event support exists.
const DefaultEventID = "default"

// Ticket represents a single admission issued to an attendee.  It
// corresponds to a row in the `tickets` table (remote variant) or an
// element of the `tickets` document (local variant).
//
// Fields:
//  ID          – globally unique identifier, also the QR payload.
//  FullName    – attendee name shown at the door.
//  Gender      – male, female or other.
//  Age         – positive integer.
//  PhoneNumber – contact number used for sharing the ticket.
//  Status      – booked or arrived.
//  CreatedAt   – creation timestamp (UTC), immutable.
//  EventID     – event grouping key.
type Ticket struct {
	ID          string    `json:"id"`           // tickets.id
	FullName    string    `json:"full_name"`    // tickets.full_name
	Gender      string    `json:"gender"`       // tickets.gender
	Age         int       `json:"age"`          // tickets.age
	PhoneNumber string    `json:"phone_number"` // tickets.phone_number
	Status      Status    `json:"status"`       // tickets.status
	CreatedAt   time.Time `json:"created_at"`   // tickets.created_at
	EventID     string    `json:"event_id"`     // tickets.event_id
}

// Arrived reports whether the ticket has already been used.
func (t Ticket) Arrived() bool { return t.Status == StatusArrived }
