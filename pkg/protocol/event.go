package protocol

// Actor is the user behind an inbound event. The ID is prefixed with the
// platform name (e.g. "telegram:12345", "slack:U0A1B2C") so identities
// never collide across gateways.
type Actor struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// EventKind classifies an inbound gateway event.
type EventKind string

const (
	// EventCommand is a text command invocation (e.g. a slash command).
	EventCommand EventKind = "command"
	// EventMenuSelect is a product picked from a catalog menu.
	EventMenuSelect EventKind = "menu_select"
	// EventButton is a press of a confirm or close control.
	EventButton EventKind = "button"
)

// Control actions carried by button events.
const (
	ActionConfirm = "confirm"
	ActionClose   = "close"
)

// NoProductValue is the reserved menu value rendered when a scope has no
// products. Selecting it never opens a ticket.
const NoProductValue = "-"

// Event is one inbound gateway event, normalized across platforms.
type Event struct {
	Kind  EventKind `json:"kind"`
	Actor Actor     `json:"actor"`

	// Scope is the catalog namespace the event refers to. For commands
	// and menu selections this is the conversation the menu lives in;
	// for button presses it comes from the control's bound payload.
	Scope string `json:"scope"`

	// Conversation is where the event arrived and where replies go.
	Conversation string `json:"conversation"`

	// Command fields (Kind == EventCommand).
	Command string `json:"command,omitempty"`
	Args    string `json:"args,omitempty"`

	// Product is the selected product name (menu) or the control's bound
	// product (button).
	Product string `json:"product,omitempty"`

	// Action is the control action for button events.
	Action string `json:"action,omitempty"`
}
