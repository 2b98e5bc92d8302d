// Package dispatch routes inbound gateway events to the catalog, policy
// and ticket workflow, and renders outcomes back through the gateway.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vitrine-io/vitrine/internal/catalog"
	"github.com/vitrine-io/vitrine/internal/gateway"
	"github.com/vitrine-io/vitrine/internal/policy"
	"github.com/vitrine-io/vitrine/internal/ticket"
	"github.com/vitrine-io/vitrine/pkg/protocol"
)

// ErrInvalidInput is returned for malformed command arguments. No
// mutation happens; the actor gets a usage message.
var ErrInvalidInput = errors.New("dispatch: invalid command input")

const addUsage = "usage: add <name> | <price> | <stock> [| <coupon>]"

// Dispatcher sequences the storefront state machine for one gateway.
type Dispatcher struct {
	catalog *catalog.Repository
	tickets *ticket.Workflow
	policy  policy.Policy
	gw      gateway.Gateway
	logger  *slog.Logger
}

// New creates a dispatcher. Its Handle method is the gateway's event
// handler.
func New(cat *catalog.Repository, tk *ticket.Workflow, pol policy.Policy, gw gateway.Gateway, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{catalog: cat, tickets: tk, policy: pol, gw: gw, logger: logger}
}

// Handle processes one inbound event. Expected domain failures (stale
// product, stock-out, missing permission, bad input) are reported to the
// actor and not returned; persistence and gateway failures are reported
// best-effort and returned for logging.
func (d *Dispatcher) Handle(ctx context.Context, ev protocol.Event) error {
	switch ev.Kind {
	case protocol.EventCommand:
		return d.handleCommand(ctx, ev)
	case protocol.EventMenuSelect:
		return d.handleSelect(ctx, ev)
	case protocol.EventButton:
		return d.handleButton(ctx, ev)
	default:
		d.logger.Warn("unknown event kind", "kind", ev.Kind)
		return nil
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev protocol.Event) error {
	switch ev.Command {
	case "catalog":
		return d.publishCatalog(ctx, ev)
	case "add":
		return d.addProduct(ctx, ev)
	case "stock":
		return d.listStock(ctx, ev)
	case "reset":
		return d.resetStock(ctx, ev)
	case "clear":
		return d.clearProducts(ctx, ev)
	default:
		d.reply(ctx, ev, "commands: catalog, add, stock, reset, clear")
		return nil
	}
}

// publishCatalog posts the product menu into the invoking conversation.
func (d *Dispatcher) publishCatalog(ctx context.Context, ev protocol.Event) error {
	if err := policy.Require(d.policy, ev.Actor); err != nil {
		d.reply(ctx, ev, "Administrators only.")
		return nil
	}

	products, err := d.catalog.ListProducts(ev.Scope)
	if err != nil {
		d.reply(ctx, ev, "Something went wrong, try again.")
		return err
	}

	menu := make([]gateway.MenuOption, 0, len(products))
	for _, p := range products {
		menu = append(menu, gateway.MenuOption{
			Label:       p.Name,
			Value:       p.Name,
			Description: fmt.Sprintf("Price: %s | Stock: %d", p.Price, p.Stock),
		})
	}
	if len(menu) == 0 {
		menu = append(menu, gateway.MenuOption{
			Label:       "No products",
			Value:       protocol.NoProductValue,
			Description: "Nothing on sale yet",
		})
	}

	msg := gateway.Message{
		Conversation: ev.Conversation,
		Text:         "Pick a product to open a purchase ticket:",
		Menu:         menu,
		MenuScope:    ev.Scope,
	}
	if err := d.gw.Send(ctx, msg); err != nil {
		d.logger.Error("catalog publish failed", "scope", ev.Scope, "error", err)
		return err
	}
	return nil
}

// addProduct parses "name | price | stock [| coupon]" and stores the
// product. Malformed input mutates nothing.
func (d *Dispatcher) addProduct(ctx context.Context, ev protocol.Event) error {
	if err := policy.Require(d.policy, ev.Actor); err != nil {
		d.reply(ctx, ev, "Administrators only.")
		return nil
	}

	p, err := parseProduct(ev.Args)
	if err != nil {
		d.reply(ctx, ev, addUsage)
		return nil
	}

	if err := d.catalog.AddProduct(ev.Scope, p); err != nil {
		d.reply(ctx, ev, "Could not save the product, try again.")
		return err
	}
	d.reply(ctx, ev, fmt.Sprintf("Product %q added (price %s, stock %d).", p.Name, p.Price, p.Stock))
	return nil
}

func parseProduct(args string) (protocol.Product, error) {
	fields := strings.Split(args, "|")
	if len(fields) < 3 || len(fields) > 4 {
		return protocol.Product{}, fmt.Errorf("%w: want 3 or 4 fields, got %d", ErrInvalidInput, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if fields[0] == "" || fields[0] == protocol.NoProductValue {
		return protocol.Product{}, fmt.Errorf("%w: bad product name %q", ErrInvalidInput, fields[0])
	}
	stock, err := strconv.Atoi(fields[2])
	if err != nil || stock < 0 {
		return protocol.Product{}, fmt.Errorf("%w: bad stock %q", ErrInvalidInput, fields[2])
	}

	p := protocol.Product{Name: fields[0], Price: fields[1], Stock: stock}
	if len(fields) == 4 {
		p.Coupon = fields[3]
	}
	return p, nil
}

func (d *Dispatcher) listStock(ctx context.Context, ev protocol.Event) error {
	products, err := d.catalog.ListProducts(ev.Scope)
	if err != nil {
		d.reply(ctx, ev, "Something went wrong, try again.")
		return err
	}
	if len(products) == 0 {
		d.reply(ctx, ev, "No products registered.")
		return nil
	}

	var b strings.Builder
	b.WriteString("Current stock:\n")
	for _, p := range products {
		fmt.Fprintf(&b, "• %s — %s — %d in stock", p.Name, p.Price, p.Stock)
		if p.Coupon != "" {
			fmt.Fprintf(&b, " — coupon %s", p.Coupon)
		}
		b.WriteByte('\n')
	}
	d.reply(ctx, ev, b.String())
	return nil
}

func (d *Dispatcher) resetStock(ctx context.Context, ev protocol.Event) error {
	if err := policy.Require(d.policy, ev.Actor); err != nil {
		d.reply(ctx, ev, "Administrators only.")
		return nil
	}
	if err := d.catalog.ResetScope(ev.Scope); err != nil {
		d.reply(ctx, ev, "Could not reset stock, try again.")
		return err
	}
	d.reply(ctx, ev, "All stock set to zero.")
	return nil
}

func (d *Dispatcher) clearProducts(ctx context.Context, ev protocol.Event) error {
	if err := policy.Require(d.policy, ev.Actor); err != nil {
		d.reply(ctx, ev, "Administrators only.")
		return nil
	}
	if err := d.catalog.ClearScope(ev.Scope); err != nil {
		d.reply(ctx, ev, "Could not clear the catalog, try again.")
		return err
	}
	d.reply(ctx, ev, "All products removed.")
	return nil
}

func (d *Dispatcher) handleSelect(ctx context.Context, ev protocol.Event) error {
	if ev.Product == protocol.NoProductValue {
		d.reply(ctx, ev, "No products available.")
		return nil
	}

	tk, err := d.tickets.SelectProduct(ctx, ev.Scope, ev.Product, ev.Actor)
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		d.reply(ctx, ev, "That product is no longer available.")
		return nil
	case err != nil:
		d.reply(ctx, ev, "Could not open a ticket, try again.")
		return err
	}

	d.reply(ctx, ev, "Ticket created!")
	d.logger.Debug("ticket opened via menu", "ticket", tk.ID)
	return nil
}

func (d *Dispatcher) handleButton(ctx context.Context, ev protocol.Event) error {
	switch ev.Action {
	case protocol.ActionConfirm:
		left, err := d.tickets.Confirm(ctx, ev.Conversation, ev.Scope, ev.Product, ev.Actor)
		switch {
		case errors.Is(err, policy.ErrUnauthorized):
			d.reply(ctx, ev, "Administrators only.")
			return nil
		case errors.Is(err, catalog.ErrOutOfStock):
			d.reply(ctx, ev, "Out of stock!")
			return nil
		case errors.Is(err, catalog.ErrProductNotFound):
			d.reply(ctx, ev, "That product is no longer available.")
			return nil
		case errors.Is(err, ticket.ErrConfirmed):
			d.reply(ctx, ev, "This sale was already confirmed.")
			return nil
		case err != nil:
			d.reply(ctx, ev, "Could not confirm the sale, try again.")
			return err
		}
		d.reply(ctx, ev, fmt.Sprintf("Stock updated, %d left.", left))
		return nil

	case protocol.ActionClose:
		err := d.tickets.Close(ctx, ev.Conversation, ev.Scope, ev.Product, ev.Actor)
		switch {
		case errors.Is(err, policy.ErrUnauthorized):
			d.reply(ctx, ev, "Administrators only.")
			return nil
		case err != nil:
			// Conversation may already be gone; nothing left to close.
			d.logger.Warn("close failed", "conversation", ev.Conversation, "error", err)
			return err
		}
		return nil

	default:
		d.logger.Warn("unknown control action", "action", ev.Action)
		return nil
	}
}

// reply sends a best-effort response into the event's conversation.
func (d *Dispatcher) reply(ctx context.Context, ev protocol.Event, text string) {
	msg := gateway.Message{Conversation: ev.Conversation, Text: text}
	if err := d.gw.Send(ctx, msg); err != nil {
		d.logger.Warn("reply failed", "conversation", ev.Conversation, "error", err)
	}
}
