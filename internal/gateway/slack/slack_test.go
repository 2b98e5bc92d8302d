package slackgw

import (
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/vitrine-io/vitrine/internal/gateway"
	"github.com/vitrine-io/vitrine/pkg/protocol"
)

func TestChannelName(t *testing.T) {
	name := channelName(protocol.Actor{ID: "slack:U123", Name: "Jo Lee!"})
	if !strings.HasPrefix(name, "ticket-jo-lee-") {
		t.Errorf("name %q", name)
	}
	if len(name) > 80 {
		t.Errorf("name too long: %d", len(name))
	}

	anon := channelName(protocol.Actor{ID: "slack:U456"})
	if !strings.HasPrefix(anon, "ticket-u456-") {
		t.Errorf("fallback name %q", anon)
	}
}

func TestRawID(t *testing.T) {
	if got := rawID("slack:U123"); got != "U123" {
		t.Errorf("got %q", got)
	}
	if got := rawID("U123"); got != "U123" {
		t.Errorf("unprefixed id mangled: %q", got)
	}
}

func TestBuildBlocks(t *testing.T) {
	msg := gateway.Message{
		Conversation: "C1",
		Text:         "Purchase opened",
		Fields:       []gateway.Field{{Name: "Product", Value: "Sword"}},
		Menu: []gateway.MenuOption{
			{Label: "Sword", Value: "Sword", Description: "Price: $10 | Stock: 3"},
		},
		MenuScope: "C1",
		Controls: []gateway.Control{
			{Action: protocol.ActionConfirm, Label: "Confirm sale", Scope: "C1", Product: "Sword"},
		},
	}

	blocks := buildBlocks(msg)
	if len(blocks) != 3 {
		t.Fatalf("expected section+menu+controls, got %d blocks", len(blocks))
	}
	if _, ok := blocks[0].(*slack.SectionBlock); !ok {
		t.Errorf("first block %T", blocks[0])
	}
	if _, ok := blocks[1].(*slack.ActionBlock); !ok {
		t.Errorf("second block %T", blocks[1])
	}
}

func TestEventFromAction(t *testing.T) {
	callback := slack.InteractionCallback{}
	callback.User.ID = "U9"
	callback.User.Name = "admin"
	callback.Channel.ID = "C-ticket"

	value := gateway.EncodePayload(protocol.ActionConfirm, "C-stale", "C-origin", "Sword")
	ev, err := eventFromAction(value, callback)
	if err != nil {
		t.Fatalf("eventFromAction: %v", err)
	}
	if ev.Kind != protocol.EventButton || ev.Action != protocol.ActionConfirm {
		t.Errorf("kind %q action %q", ev.Kind, ev.Action)
	}
	if ev.Conversation != "C-ticket" {
		t.Errorf("delivering channel should win: %q", ev.Conversation)
	}
	if ev.Scope != "C-origin" || ev.Product != "Sword" {
		t.Errorf("binding lost: %q %q", ev.Scope, ev.Product)
	}
	if ev.Actor.ID != "slack:U9" {
		t.Errorf("actor %q", ev.Actor.ID)
	}

	pick := gateway.EncodePayload(gateway.ActionPick, "C1", "C1", "Sword")
	ev, err = eventFromAction(pick, callback)
	if err != nil || ev.Kind != protocol.EventMenuSelect {
		t.Errorf("pick: kind %q err %v", ev.Kind, err)
	}

	if _, err := eventFromAction("garbage", callback); err == nil {
		t.Error("expected error for malformed payload")
	}
	bad := gateway.EncodePayload("explode", "c", "s", "p")
	if _, err := eventFromAction(bad, callback); err == nil {
		t.Error("expected error for unknown action")
	}
}
