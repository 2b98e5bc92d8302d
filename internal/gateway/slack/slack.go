// Package slackgw implements the storefront gateway for Slack using
// Socket Mode. Ticket conversations are private channels created per
// purchase and archived on close.
package slackgw

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/vitrine-io/vitrine/internal/gateway"
	"github.com/vitrine-io/vitrine/pkg/protocol"
)

// Config holds Slack gateway configuration.
type Config struct {
	BotToken string   // xoxb-... Bot User OAuth Token
	AppToken string   // xapp-... App-Level Token (for Socket Mode)
	Admins   []string // Slack user IDs invited into every ticket channel
}

// Gateway implements gateway.Gateway for Slack via Socket Mode.
type Gateway struct {
	api     *slack.Client
	socket  *socketmode.Client
	config  Config
	handler gateway.EventHandler
	logger  *slog.Logger
	cancel  context.CancelFunc
	botID   string
}

// New creates a Slack gateway.
func New(cfg Config, handler gateway.EventHandler, logger *slog.Logger) (*Gateway, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack: bot_token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("slack: app_token is required (Socket Mode)")
	}

	if logger == nil {
		logger = slog.Default()
	}

	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))

	// Test auth and get bot user ID
	authResp, err := api.AuthTest()
	if err != nil {
		return nil, fmt.Errorf("slack: auth test: %w", err)
	}

	logger.Info("slack bot authorized", "user", authResp.User, "team", authResp.Team)

	return &Gateway{
		api:     api,
		socket:  socketmode.New(api),
		config:  cfg,
		handler: handler,
		logger:  logger,
		botID:   authResp.UserID,
	}, nil
}

func (g *Gateway) Name() string { return "slack" }

// Start begins listening for events via Socket Mode. Blocks until context
// is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	ctx, g.cancel = context.WithCancel(ctx)

	go g.handleEvents(ctx)

	g.logger.Info("slack gateway started (socket mode)")
	return g.socket.RunContext(ctx)
}

// Stop gracefully shuts down the gateway.
func (g *Gateway) Stop() error {
	if g.cancel != nil {
		g.cancel()
	}
	return nil
}

// Send delivers a message to a Slack conversation.
func (g *Gateway) Send(_ context.Context, msg gateway.Message) error {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if blocks := buildBlocks(msg); len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}

	if _, _, err := g.api.PostMessage(msg.Conversation, opts...); err != nil {
		return fmt.Errorf("%w: slack send: %v", gateway.ErrDelivery, err)
	}
	return nil
}

// CreateConversation opens a private channel for the buyer and invites
// the configured administrators.
func (g *Gateway) CreateConversation(_ context.Context, owner protocol.Actor) (gateway.Conversation, error) {
	name := channelName(owner)
	ch, err := g.api.CreateConversation(slack.CreateConversationParams{
		ChannelName: name,
		IsPrivate:   true,
	})
	if err != nil {
		return gateway.Conversation{}, fmt.Errorf("%w: slack create conversation: %v", gateway.ErrDelivery, err)
	}

	invitees := append([]string{}, g.config.Admins...)
	if id := rawID(owner.ID); id != "" {
		invitees = append(invitees, id)
	}
	if len(invitees) > 0 {
		if _, err := g.api.InviteUsersToConversation(ch.ID, invitees...); err != nil {
			// Channel exists and controls still work for members; log and go on.
			g.logger.Warn("ticket channel invite failed", "channel", ch.ID, "error", err)
		}
	}

	return gateway.Conversation{ID: ch.ID, Owner: owner.ID}, nil
}

// DestroyConversation archives the ticket channel. Slack bots cannot
// delete channels outright; archiving removes it from everyone's list and
// stops event delivery.
func (g *Gateway) DestroyConversation(_ context.Context, id string) error {
	if err := g.api.ArchiveConversation(id); err != nil {
		return fmt.Errorf("%w: slack archive conversation: %v", gateway.ErrDelivery, err)
	}
	return nil
}

func (g *Gateway) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-g.socket.Events:
			switch event.Type {
			case socketmode.EventTypeSlashCommand:
				g.handleSlashCommand(ctx, event)
			case socketmode.EventTypeInteractive:
				g.handleInteractive(ctx, event)
			}
		}
	}
}

func (g *Gateway) handleSlashCommand(ctx context.Context, event socketmode.Event) {
	cmd, ok := event.Data.(slack.SlashCommand)
	if !ok {
		return
	}
	g.socket.Ack(*event.Request)

	ev := protocol.Event{
		Kind:         protocol.EventCommand,
		Actor:        protocol.Actor{ID: "slack:" + cmd.UserID, Name: cmd.UserName},
		Scope:        cmd.ChannelID,
		Conversation: cmd.ChannelID,
		Command:      strings.TrimPrefix(cmd.Command, "/"),
		Args:         cmd.Text,
	}
	if err := g.handler(ctx, ev); err != nil {
		g.logger.Error("event handler error", "channel", cmd.ChannelID, "command", ev.Command, "error", err)
	}
}

func (g *Gateway) handleInteractive(ctx context.Context, event socketmode.Event) {
	callback, ok := event.Data.(slack.InteractionCallback)
	if !ok {
		return
	}
	g.socket.Ack(*event.Request)

	if callback.Type != slack.InteractionTypeBlockActions || len(callback.ActionCallback.BlockActions) == 0 {
		return
	}
	action := callback.ActionCallback.BlockActions[0]

	value := action.Value
	if value == "" {
		value = action.SelectedOption.Value
	}

	ev, err := eventFromAction(value, callback)
	if err != nil {
		g.logger.Warn("bad action payload", "action_id", action.ActionID, "value", value, "error", err)
		return
	}

	if err := g.handler(ctx, ev); err != nil {
		g.logger.Error("event handler error", "conversation", ev.Conversation, "action", ev.Action, "error", err)
	}
}

// eventFromAction decodes a control payload into a normalized event. The
// delivering channel wins over the encoded conversation: for menus both
// are the origin channel, for ticket controls they match by construction.
func eventFromAction(value string, callback slack.InteractionCallback) (protocol.Event, error) {
	action, conv, scope, product, err := gateway.DecodePayload(value)
	if err != nil {
		return protocol.Event{}, err
	}
	if callback.Channel.ID != "" {
		conv = callback.Channel.ID
	}

	ev := protocol.Event{
		Actor:        protocol.Actor{ID: "slack:" + callback.User.ID, Name: callback.User.Name},
		Scope:        scope,
		Conversation: conv,
		Product:      product,
	}
	switch action {
	case gateway.ActionPick:
		ev.Kind = protocol.EventMenuSelect
	case protocol.ActionConfirm, protocol.ActionClose:
		ev.Kind = protocol.EventButton
		ev.Action = action
	default:
		return protocol.Event{}, fmt.Errorf("slack: unknown action %q", action)
	}
	return ev, nil
}

// buildBlocks renders fields, menus and controls as Block Kit blocks.
func buildBlocks(msg gateway.Message) []slack.Block {
	var blocks []slack.Block

	if len(msg.Fields) > 0 {
		fields := make([]*slack.TextBlockObject, 0, len(msg.Fields))
		for _, f := range msg.Fields {
			fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("*%s*\n%s", f.Name, f.Value), false, false))
		}
		text := slack.NewTextBlockObject(slack.MarkdownType, msg.Text, false, false)
		blocks = append(blocks, slack.NewSectionBlock(text, fields, nil))
	}

	if len(msg.Menu) > 0 {
		options := make([]*slack.OptionBlockObject, 0, len(msg.Menu))
		for _, opt := range msg.Menu {
			var desc *slack.TextBlockObject
			if opt.Description != "" {
				desc = slack.NewTextBlockObject(slack.PlainTextType, opt.Description, false, false)
			}
			value := gateway.EncodePayload(gateway.ActionPick, msg.Conversation, msg.MenuScope, opt.Value)
			options = append(options, slack.NewOptionBlockObject(value,
				slack.NewTextBlockObject(slack.PlainTextType, opt.Label, false, false), desc))
		}
		placeholder := slack.NewTextBlockObject(slack.PlainTextType, "Choose a product", false, false)
		sel := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, placeholder, gateway.ActionPick, options...)
		blocks = append(blocks, slack.NewActionBlock("catalog-menu", sel))
	}

	if len(msg.Controls) > 0 {
		elements := make([]slack.BlockElement, 0, len(msg.Controls))
		for _, c := range msg.Controls {
			value := gateway.EncodePayload(c.Action, msg.Conversation, c.Scope, c.Product)
			label := slack.NewTextBlockObject(slack.PlainTextType, c.Label, false, false)
			elements = append(elements, slack.NewButtonBlockElement(c.Action, value, label))
		}
		blocks = append(blocks, slack.NewActionBlock("ticket-controls", elements...))
	}

	return blocks
}

// channelName derives a valid Slack channel name for a ticket: lowercase,
// [a-z0-9-], capped well under Slack's 80-char limit.
func channelName(owner protocol.Actor) string {
	base := owner.Name
	if base == "" {
		base = rawID(owner.ID)
	}
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "buyer"
	}
	if len(name) > 40 {
		name = name[:40]
	}
	return fmt.Sprintf("ticket-%s-%s", name, uuid.NewString()[:8])
}

// rawID strips the platform prefix from an actor id.
func rawID(id string) string {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[i+1:]
	}
	return id
}
