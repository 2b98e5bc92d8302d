package telegram

import (
	"strings"
	"testing"

	"github.com/vitrine-io/vitrine/internal/gateway"
	"github.com/vitrine-io/vitrine/pkg/protocol"
)

func TestMessageText(t *testing.T) {
	msg := gateway.Message{
		Text: "Purchase opened",
		Fields: []gateway.Field{
			{Name: "Product", Value: "Sword"},
			{Name: "Price", Value: "$10"},
		},
	}
	got := messageText(msg)
	want := "Purchase opened\nProduct: Sword\nPrice: $10"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if got := messageText(gateway.Message{Text: "plain"}); got != "plain" {
		t.Errorf("plain text mangled: %q", got)
	}
}

func TestBuildKeyboardMenu(t *testing.T) {
	msg := gateway.Message{
		Conversation: "123",
		MenuScope:    "123",
		Menu: []gateway.MenuOption{
			{Label: "Sword", Value: "Sword", Description: "Price: $10 | Stock: 3"},
			{Label: "No products", Value: protocol.NoProductValue},
		},
	}

	kb, ok := buildKeyboard(msg)
	if !ok {
		t.Fatal("expected a keyboard")
	}
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(kb.InlineKeyboard))
	}

	data := *kb.InlineKeyboard[0][0].CallbackData
	action, conv, scope, product, err := gateway.DecodePayload(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if action != gateway.ActionPick || conv != "123" || scope != "123" || product != "Sword" {
		t.Errorf("payload %q %q %q %q", action, conv, scope, product)
	}
	if !strings.Contains(kb.InlineKeyboard[0][0].Text, "Stock: 3") {
		t.Errorf("label lost description: %q", kb.InlineKeyboard[0][0].Text)
	}
}

func TestBuildKeyboardControls(t *testing.T) {
	msg := gateway.Message{
		Conversation: "conv-1",
		Controls: []gateway.Control{
			{Action: protocol.ActionConfirm, Label: "Confirm sale", Scope: "123", Product: "Sword"},
			{Action: protocol.ActionClose, Label: "Close ticket", Scope: "123", Product: "Sword"},
		},
	}

	kb, ok := buildKeyboard(msg)
	if !ok {
		t.Fatal("expected a keyboard")
	}
	if len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("expected one row of two buttons, got %v", kb.InlineKeyboard)
	}

	action, conv, _, _, err := gateway.DecodePayload(*kb.InlineKeyboard[0][0].CallbackData)
	if err != nil || action != protocol.ActionConfirm || conv != "conv-1" {
		t.Errorf("confirm payload wrong: %q %q %v", action, conv, err)
	}
}

func TestControlPayloadWithinCallbackDataCap(t *testing.T) {
	// Supergroup-scoped catalogs carry the longest scope keys; the
	// payload must still fit Telegram's 64-byte callback data cap for
	// realistic product names.
	msg := gateway.Message{
		Conversation: newConversationID(),
		Controls: []gateway.Control{
			{Action: protocol.ActionConfirm, Label: "Confirm sale", Scope: "-1001234567890", Product: "Sword"},
			{Action: protocol.ActionClose, Label: "Close ticket", Scope: "-1001234567890", Product: "Lifetime premium membership"},
		},
	}

	kb, ok := buildKeyboard(msg)
	if !ok {
		t.Fatal("expected a keyboard")
	}
	for _, btn := range kb.InlineKeyboard[0] {
		if n := len(*btn.CallbackData); n > 64 {
			t.Errorf("callback data %q is %d bytes, cap is 64", *btn.CallbackData, n)
		}
	}
}

func TestBuildKeyboardNone(t *testing.T) {
	if _, ok := buildKeyboard(gateway.Message{Text: "hi"}); ok {
		t.Error("keyboard built for plain message")
	}
}
