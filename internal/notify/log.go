package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Handle(ctx context.Context, ev Event) error {
	entry := log.Info().
		Str("event", ev.Name).
		Uint("user_id", ev.UserID).
		Uint("transaction_id", ev.TransactionID).
		Time("at", ev.At)
	for k, v := range ev.Fields {
		entry = entry.Str(k, v)
	}
	entry.Msg("notification")
	return nil
}
