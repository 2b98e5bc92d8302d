// Package gateway defines the interface to external messaging platforms
// (Telegram, Slack, etc.). The core never implements transport itself; it
// consumes these primitives and receives normalized events back.
package gateway

import (
	"context"
	"errors"

	"github.com/vitrine-io/vitrine/pkg/protocol"
)

// ErrDelivery marks a failed platform call (conversation create, send or
// destroy). It is recoverable: callers log it and notify the actor on a
// best-effort basis.
var ErrDelivery = errors.New("gateway: delivery failed")

// Conversation is a handle to a platform conversation hosting a ticket.
type Conversation struct {
	ID    string // gateway-specific conversation identifier
	Owner string // actor id of the buyer the conversation was opened for
}

// Field is a labeled value rendered in a structured message.
type Field struct {
	Name  string
	Value string
}

// MenuOption is one selectable entry of a catalog menu.
type MenuOption struct {
	Label       string
	Value       string // product name, or protocol.NoProductValue
	Description string
}

// Control is an interactive button bound to a (scope, product) pair.
type Control struct {
	Action  string // protocol.ActionConfirm or protocol.ActionClose
	Label   string
	Scope   string
	Product string
}

// Message is structured outbound content. Text is always set; Fields,
// Menu and Controls are optional attachments the gateway renders in its
// platform's native form.
type Message struct {
	Conversation string
	Text         string
	Fields       []Field
	Menu         []MenuOption
	MenuScope    string // scope bound to menu selections
	Controls     []Control
}

// EventHandler processes normalized events received from a platform.
type EventHandler func(ctx context.Context, ev protocol.Event) error

// Gateway is the messaging platform abstraction the storefront consumes.
type Gateway interface {
	// Name returns the gateway type (e.g. "telegram", "slack").
	Name() string
	// Start begins listening for inbound events. Blocks until the context
	// is cancelled.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the gateway.
	Stop() error
	// Send delivers a message into a conversation.
	Send(ctx context.Context, msg Message) error
	// CreateConversation opens a private conversation visible to the
	// owner and the administrators.
	CreateConversation(ctx context.Context, owner protocol.Actor) (Conversation, error)
	// DestroyConversation tears the conversation down. Events for it are
	// never delivered afterwards.
	DestroyConversation(ctx context.Context, id string) error
}
