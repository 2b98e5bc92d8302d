package protocol

import "time"

// TicketState represents the lifecycle state of a purchase ticket.
type TicketState string

const (
	TicketOpen      TicketState = "open"
	TicketConfirmed TicketState = "confirmed"
	TicketClosed    TicketState = "closed"
)

// Ticket is one purchase attempt: a private conversation bound to a
// product in its origin scope. Tickets are ephemeral; the conversation's
// existence is the lifecycle signal, so nothing here is persisted.
type Ticket struct {
	ID           string      `json:"id"`
	Scope        string      `json:"scope"`
	Product      string      `json:"product"`
	Conversation string      `json:"conversation"`
	Buyer        Actor       `json:"buyer"`
	State        TicketState `json:"state"`
	OpenedAt     time.Time   `json:"opened_at"`
}
