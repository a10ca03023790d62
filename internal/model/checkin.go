package model

// OutcomeKind classifies the result of presenting a ticket at the door.
type OutcomeKind string

const (
	OutcomeGranted        OutcomeKind = "granted"
	OutcomeAlreadyArrived OutcomeKind = "already_arrived"
	OutcomeNotFound       OutcomeKind = "not_found"
)

// CheckInOutcome is the business result of a check-in.  Ticket is nil
// for OutcomeNotFound.  None of the kinds is an error; store failures
// are reported separately.
type CheckInOutcome struct {
	Kind   OutcomeKind `json:"outcome"`
	Ticket *Ticket     `json:"ticket,omitempty"`
}

// Message returns the line shown to the door operator.
func (o CheckInOutcome) Message() string {
	var name string
	if o.Ticket != nil {
		name = o.Ticket.FullName
	}
	switch o.Kind {
	case OutcomeGranted:
		if name == "" {
			return "Welcome!"
		}
		return "Welcome, " + name + "!"
	case OutcomeAlreadyArrived:
		if name == "" {
			return "Already Used"
		}
		return "Already Used: " + name
	default:
		return "Invalid Ticket!"
	}
}

// Tone returns the feedback sound a client should play.
func (o CheckInOutcome) Tone() string {
	if o.Kind == OutcomeGranted {
		return "success"
	}
	return "error"
}
