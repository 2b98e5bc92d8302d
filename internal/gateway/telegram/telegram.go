// Package telegram implements the storefront gateway for Telegram.
//
// Telegram bots cannot open new chats, so a ticket "conversation" is a
// tracked group of messages in the configured staff chat: created when a
// ticket opens, deleted when it closes.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/vitrine-io/vitrine/internal/gateway"
	"github.com/vitrine-io/vitrine/pkg/protocol"
)

// Config holds Telegram gateway configuration.
type Config struct {
	Token       string  // Bot token from @BotFather
	StaffChatID int64   // Chat where ticket conversations live
	AllowFrom   []int64 // Allowed Telegram user IDs (empty = allow all)
}

type msgRef struct {
	chatID    int64
	messageID int
}

// Gateway implements gateway.Gateway for Telegram via long polling.
type Gateway struct {
	bot     *tgbotapi.BotAPI
	config  Config
	handler gateway.EventHandler
	logger  *slog.Logger
	cancel  context.CancelFunc

	mu    sync.Mutex
	convs map[string][]msgRef // conversation id → posted messages
}

// New creates a Telegram gateway.
func New(cfg Config, handler gateway.EventHandler, logger *slog.Logger) (*Gateway, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Gateway{
		bot:     bot,
		config:  cfg,
		handler: handler,
		logger:  logger,
		convs:   make(map[string][]msgRef),
	}, nil
}

func (g *Gateway) Name() string { return "telegram" }

// Start begins long-polling for updates. Blocks until context is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	ctx, g.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := g.bot.GetUpdatesChan(u)

	g.logger.Info("telegram gateway started", "bot", g.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			g.handleUpdate(ctx, update)

		case <-ctx.Done():
			g.bot.StopReceivingUpdates()
			g.logger.Info("telegram gateway stopped")
			return ctx.Err()
		}
	}
}

// Stop gracefully shuts down the gateway.
func (g *Gateway) Stop() error {
	if g.cancel != nil {
		g.cancel()
	}
	return nil
}

// Send delivers a message. The conversation is either a ticket handle
// (resolved to the staff chat) or a raw Telegram chat id.
func (g *Gateway) Send(_ context.Context, msg gateway.Message) error {
	chatID, ticket, err := g.resolve(msg.Conversation)
	if err != nil {
		return err
	}

	tgMsg := tgbotapi.NewMessage(chatID, messageText(msg))
	if kb, ok := buildKeyboard(msg); ok {
		tgMsg.ReplyMarkup = kb
	}

	sent, err := g.bot.Send(tgMsg)
	if err != nil {
		return fmt.Errorf("%w: telegram send: %v", gateway.ErrDelivery, err)
	}

	if ticket {
		g.mu.Lock()
		g.convs[msg.Conversation] = append(g.convs[msg.Conversation], msgRef{chatID, sent.MessageID})
		g.mu.Unlock()
	}
	return nil
}

// CreateConversation opens a ticket conversation in the staff chat.
func (g *Gateway) CreateConversation(_ context.Context, owner protocol.Actor) (gateway.Conversation, error) {
	if g.config.StaffChatID == 0 {
		return gateway.Conversation{}, fmt.Errorf("%w: telegram: no staff chat configured", gateway.ErrDelivery)
	}

	id := newConversationID()
	header := tgbotapi.NewMessage(g.config.StaffChatID, fmt.Sprintf("🎫 Ticket for %s", actorLabel(owner)))
	sent, err := g.bot.Send(header)
	if err != nil {
		return gateway.Conversation{}, fmt.Errorf("%w: telegram create conversation: %v", gateway.ErrDelivery, err)
	}

	g.mu.Lock()
	g.convs[id] = []msgRef{{g.config.StaffChatID, sent.MessageID}}
	g.mu.Unlock()

	return gateway.Conversation{ID: id, Owner: owner.ID}, nil
}

// DestroyConversation deletes every message posted under the ticket.
// On partial failure the undeleted messages stay registered so a retry
// only touches what is left.
func (g *Gateway) DestroyConversation(_ context.Context, id string) error {
	g.mu.Lock()
	refs, ok := g.convs[id]
	g.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: telegram: unknown conversation %s", gateway.ErrDelivery, id)
	}

	var remaining []msgRef
	for _, ref := range refs {
		if _, err := g.bot.Request(tgbotapi.NewDeleteMessage(ref.chatID, ref.messageID)); err != nil {
			remaining = append(remaining, ref)
			g.logger.Warn("message delete failed", "chat_id", ref.chatID, "message_id", ref.messageID, "error", err)
		}
	}

	g.mu.Lock()
	if len(remaining) > 0 {
		g.convs[id] = remaining
	} else {
		delete(g.convs, id)
	}
	g.mu.Unlock()

	if len(remaining) > 0 {
		return fmt.Errorf("%w: telegram: %d of %d messages not deleted", gateway.ErrDelivery, len(remaining), len(refs))
	}
	return nil
}

// newConversationID returns a ticket handle. Telegram caps callback
// data at 64 bytes, and the handle rides in every control payload next
// to the scope and product name, so 8 uuid chars is all it gets.
func newConversationID() string {
	return uuid.NewString()[:8]
}

// resolve maps a conversation id to a chat id. Ticket handles route to
// the staff chat; anything else must be a numeric Telegram chat id.
func (g *Gateway) resolve(conversation string) (chatID int64, ticket bool, err error) {
	g.mu.Lock()
	_, ok := g.convs[conversation]
	g.mu.Unlock()
	if ok {
		return g.config.StaffChatID, true, nil
	}

	chatID, perr := strconv.ParseInt(conversation, 10, 64)
	if perr != nil {
		return 0, false, fmt.Errorf("%w: telegram: unknown conversation %q", gateway.ErrDelivery, conversation)
	}
	return chatID, false, nil
}

func (g *Gateway) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		g.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		g.handleCommand(ctx, update.Message)
	}
}

func (g *Gateway) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !g.allowed(msg.From.ID) {
		g.logger.Warn("unauthorized user", "user_id", msg.From.ID, "username", msg.From.UserName)
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	ev := protocol.Event{
		Kind:         protocol.EventCommand,
		Actor:        actorFrom(msg.From),
		Scope:        chatID,
		Conversation: chatID,
		Command:      msg.Command(),
		Args:         msg.CommandArguments(),
	}
	if err := g.handler(ctx, ev); err != nil {
		g.logger.Error("event handler error", "chat_id", chatID, "command", ev.Command, "error", err)
	}
}

func (g *Gateway) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Dismiss the client-side spinner regardless of outcome.
	if _, err := g.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		g.logger.Warn("callback ack failed", "error", err)
	}

	if !g.allowed(cq.From.ID) {
		g.logger.Warn("unauthorized user", "user_id", cq.From.ID, "username", cq.From.UserName)
		return
	}

	action, conv, scope, product, err := gateway.DecodePayload(cq.Data)
	if err != nil {
		g.logger.Warn("bad callback payload", "data", cq.Data, "error", err)
		return
	}

	ev := protocol.Event{
		Actor:        actorFrom(cq.From),
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
		g.logger.Warn("unknown callback action", "action", action)
		return
	}

	if err := g.handler(ctx, ev); err != nil {
		g.logger.Error("event handler error", "conversation", conv, "action", action, "error", err)
	}
}

func (g *Gateway) allowed(userID int64) bool {
	if len(g.config.AllowFrom) == 0 {
		return true
	}
	for _, id := range g.config.AllowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// messageText renders text plus fields as plain lines.
func messageText(msg gateway.Message) string {
	if len(msg.Fields) == 0 {
		return msg.Text
	}
	var b strings.Builder
	b.WriteString(msg.Text)
	for _, f := range msg.Fields {
		b.WriteByte('\n')
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
	return b.String()
}

// buildKeyboard renders menu options and controls as inline keyboard
// rows. Callback data is capped at 64 bytes by Telegram; payloads use
// short ids so realistic product names fit.
func buildKeyboard(msg gateway.Message) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, opt := range msg.Menu {
		label := opt.Label
		if opt.Description != "" {
			label = fmt.Sprintf("%s (%s)", opt.Label, opt.Description)
		}
		data := gateway.EncodePayload(gateway.ActionPick, msg.Conversation, msg.MenuScope, opt.Value)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, data),
		))
	}

	if len(msg.Controls) > 0 {
		var row []tgbotapi.InlineKeyboardButton
		for _, c := range msg.Controls {
			data := gateway.EncodePayload(c.Action, msg.Conversation, c.Scope, c.Product)
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(c.Label, data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}

	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func actorFrom(u *tgbotapi.User) protocol.Actor {
	name := u.UserName
	if name == "" {
		name = u.FirstName
	}
	return protocol.Actor{
		ID:   "telegram:" + strconv.FormatInt(u.ID, 10),
		Name: name,
	}
}

func actorLabel(a protocol.Actor) string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
