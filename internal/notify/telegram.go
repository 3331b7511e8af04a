package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Telegram posts events to an admin chat.
type Telegram struct {
	Bot    *telego.Bot
	ChatID int64
	Events map[string]bool
}

func NewTelegram(token string, chatID int64, events ...string) (*Telegram, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	filter := make(map[string]bool, len(events))
	for _, e := range events {
		filter[e] = true
	}
	return &Telegram{Bot: bot, ChatID: chatID, Events: filter}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Handle(ctx context.Context, ev Event) error {
	if len(t.Events) > 0 && !t.Events[ev.Name] {
		return nil
	}
	_, err := t.Bot.SendMessage(ctx, tu.Message(tu.ID(t.ChatID), FormatEvent(ev)))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// FormatEvent renders an event as a short plain-text message with sorted fields.
func FormatEvent(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nuser: %d", ev.Name, ev.UserID)
	if ev.TransactionID != 0 {
		fmt.Fprintf(&b, "\ntransaction: %d", ev.TransactionID)
	}
	keys := make([]string, 0, len(ev.Fields))
	for k := range ev.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, ev.Fields[k])
	}
	return b.String()
}
