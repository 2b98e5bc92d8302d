// Package ticket runs the purchase state machine: menu selection opens a
// private conversation, an administrator then confirms the sale or closes
// the ticket.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitrine-io/vitrine/internal/catalog"
	"github.com/vitrine-io/vitrine/internal/gateway"
	"github.com/vitrine-io/vitrine/internal/policy"
	"github.com/vitrine-io/vitrine/pkg/protocol"
)

// ErrConfirmed is returned when a confirm lands on an already confirmed
// ticket. Stock is decremented exactly once per ticket.
var ErrConfirmed = errors.New("ticket: already confirmed")

// entry wraps a ticket with its own mutex so concurrent confirms on one
// ticket serialize without blocking other tickets.
type entry struct {
	mu sync.Mutex
	t  *protocol.Ticket
}

// Workflow owns the open-ticket registry and the open → confirmed|closed
// transitions. Tickets are not persisted: the registry is rebuilt from
// control payloads when an event references an unknown conversation.
type Workflow struct {
	catalog *catalog.Repository
	gw      gateway.Gateway
	policy  policy.Policy
	logger  *slog.Logger

	mu   sync.Mutex
	open map[string]*entry // conversation id → ticket
}

// NewWorkflow creates a workflow bound to one gateway.
func NewWorkflow(cat *catalog.Repository, gw gateway.Gateway, pol policy.Policy, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		catalog: cat,
		gw:      gw,
		policy:  pol,
		logger:  logger,
		open:    make(map[string]*entry),
	}
}

// SelectProduct opens a ticket for the buyer's selection. The product is
// re-resolved first: menus are rendered from a snapshot that may be stale,
// and no conversation is created for a vanished product.
func (w *Workflow) SelectProduct(ctx context.Context, scope, name string, buyer protocol.Actor) (*protocol.Ticket, error) {
	p, err := w.catalog.GetProduct(scope, name)
	if err != nil {
		return nil, err
	}

	conv, err := w.gw.CreateConversation(ctx, buyer)
	if err != nil {
		return nil, err
	}

	t := &protocol.Ticket{
		ID:           uuid.NewString(),
		Scope:        scope,
		Product:      name,
		Conversation: conv.ID,
		Buyer:        buyer,
		State:        protocol.TicketOpen,
		OpenedAt:     time.Now(),
	}

	coupon := p.Coupon
	if coupon == "" {
		coupon = "none"
	}
	msg := gateway.Message{
		Conversation: conv.ID,
		Text:         "Purchase opened",
		Fields: []gateway.Field{
			{Name: "Product", Value: p.Name},
			{Name: "Price", Value: p.Price},
			{Name: "Stock", Value: fmt.Sprintf("%d", p.Stock)},
			{Name: "Coupon", Value: coupon},
		},
		Controls: []gateway.Control{
			{Action: protocol.ActionConfirm, Label: "Confirm sale", Scope: scope, Product: name},
			{Action: protocol.ActionClose, Label: "Close ticket", Scope: scope, Product: name},
		},
	}
	if err := w.gw.Send(ctx, msg); err != nil {
		// Without its controls the conversation is dead weight; tear it
		// down and report the failure.
		if derr := w.gw.DestroyConversation(ctx, conv.ID); derr != nil {
			w.logger.Warn("orphaned ticket conversation", "conversation", conv.ID, "error", derr)
		}
		return nil, err
	}

	w.mu.Lock()
	w.open[conv.ID] = &entry{t: t}
	w.mu.Unlock()

	w.logger.Info("ticket opened",
		"ticket", t.ID,
		"scope", scope,
		"product", name,
		"buyer", buyer.ID,
	)
	return t, nil
}

// Confirm records the sale for the ticket in conversation: it decrements
// stock once and announces the sale. Out-of-stock leaves the ticket open;
// closing it remains an explicit admin action.
func (w *Workflow) Confirm(ctx context.Context, conversation, scope, name string, actor protocol.Actor) (int, error) {
	if err := policy.Require(w.policy, actor); err != nil {
		return 0, err
	}

	e := w.lookup(conversation, scope, name)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.t.State == protocol.TicketConfirmed {
		return 0, ErrConfirmed
	}

	left, err := w.catalog.DecrementStock(scope, name)
	if err != nil {
		return 0, err
	}
	e.t.State = protocol.TicketConfirmed

	announce := gateway.Message{
		Conversation: conversation,
		Text:         fmt.Sprintf("Sale confirmed by %s — %s (%d left)", actorLabel(actor), name, left),
	}
	if err := w.gw.Send(ctx, announce); err != nil {
		// The decrement already committed; the announcement is best effort.
		w.logger.Warn("sale announcement failed", "conversation", conversation, "error", err)
	}

	w.logger.Info("ticket confirmed",
		"ticket", e.t.ID,
		"scope", scope,
		"product", name,
		"stock_left", left,
		"by", actor.ID,
	)
	return left, nil
}

// Close destroys the ticket conversation. Valid from open or confirmed.
func (w *Workflow) Close(ctx context.Context, conversation, scope, name string, actor protocol.Actor) error {
	if err := policy.Require(w.policy, actor); err != nil {
		return err
	}

	e := w.lookup(conversation, scope, name)
	e.mu.Lock()
	defer e.mu.Unlock()

	// Deregister either way: a conversation the gateway failed to
	// destroy can be rebuilt from its control payload, while a stranded
	// registry entry can never be closed again.
	err := w.gw.DestroyConversation(ctx, conversation)
	w.mu.Lock()
	delete(w.open, conversation)
	w.mu.Unlock()
	if err != nil {
		w.logger.Warn("conversation destroy failed", "conversation", conversation, "error", err)
		return err
	}
	e.t.State = protocol.TicketClosed

	w.logger.Info("ticket closed", "ticket", e.t.ID, "scope", scope, "product", name, "by", actor.ID)
	return nil
}

// OpenTickets returns a snapshot of currently open or confirmed tickets.
func (w *Workflow) OpenTickets() []protocol.Ticket {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]protocol.Ticket, 0, len(w.open))
	for _, e := range w.open {
		out = append(out, *e.t)
	}
	return out
}

// lookup finds the ticket for a conversation, reconstructing an open one
// from the control payload when the registry does not know it (the daemon
// restarted after the controls were posted).
func (w *Workflow) lookup(conversation, scope, name string) *entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.open[conversation]
	if !ok {
		e = &entry{t: &protocol.Ticket{
			ID:           uuid.NewString(),
			Scope:        scope,
			Product:      name,
			Conversation: conversation,
			State:        protocol.TicketOpen,
			OpenedAt:     time.Now(),
		}}
		w.open[conversation] = e
	}
	return e
}

func actorLabel(a protocol.Actor) string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
