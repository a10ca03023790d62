// Package export builds the artifacts an organizer sends to an
// attendee: the download name of the ticket image and a chat share link.
package export

import (
	"net/url"
	"strings"
)

const shareBase = "https://wa.me/"

// Message is the text pre-filled in the share link.
func Message(eventName string) string {
	return "Here is your ticket for " + eventName + "!"
}

// ShareLink returns a wa.me link carrying Message.  When phone is
// non-empty the link targets that number (digits only).
func ShareLink(eventName, phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	q := url.Values{"text": {Message(eventName)}}
	return shareBase + digits + "?" + q.Encode()
}

// FileName is the download name of a ticket image.
func FileName(ticketID string) string {
	return "ticket-#" + ticketID + ".png"
}
