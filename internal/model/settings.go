package model

import "time"

// EventSettings is the singleton describing the event printed on every
// ticket.  ArrivalDeadline is informational only; check-in never
// enforces it.
type EventSettings struct {
	EventName       string     `json:"event_name"`
	EventPlace      string     `json:"event_place"`
	ArrivalDeadline *time.Time `json:"arrival_deadline"`
}

// DefaultSettings returns the settings used before an organizer saves any.
func DefaultSettings() EventSettings {
	return EventSettings{
		EventName:  "My Event",
		EventPlace: "Event Venue",
	}
}

// Merge overlays the non-empty fields of patch onto s.
func (s EventSettings) Merge(patch EventSettings) EventSettings {
	if patch.EventName != "" {
		s.EventName = patch.EventName
	}
	if patch.EventPlace != "" {
		s.EventPlace = patch.EventPlace
	}
	if patch.ArrivalDeadline != nil {
		d := patch.ArrivalDeadline.UTC()
		s.ArrivalDeadline = &d
	}
	return s
}
