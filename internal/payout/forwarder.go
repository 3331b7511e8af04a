package payout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"binarymlm/internal/models"
	"binarymlm/internal/notify"
)

const Currency = "USDT"

// Forwarder is a notification sink that hands completed payouts to the gateway.
type Forwarder struct {
	Client *Client
}

func NewForwarder(client *Client) *Forwarder {
	return &Forwarder{Client: client}
}

func (f *Forwarder) Name() string { return "payout-gateway" }

func (f *Forwarder) Handle(ctx context.Context, ev notify.Event) error {
	if ev.Name != notify.EventTransactionCompleted || ev.Fields["type"] != string(models.TxPayout) {
		return nil
	}
	reference := ev.Fields["reference"]
	if reference == "" {
		reference = uuid.NewString()
	}

	resp, err := f.Client.Submit(ctx, SubmitRequest{
		Reference:     reference,
		UserID:        ev.UserID,
		TransactionID: ev.TransactionID,
		Amount:        Amount{Value: ev.Fields["net"], Currency: Currency},
		Description:   "Income wallet withdrawal",
	})
	if err != nil {
		return fmt.Errorf("forward payout %d: %w", ev.TransactionID, err)
	}
	log.Info().
		Uint("transaction_id", ev.TransactionID).
		Str("gateway_id", resp.ID).
		Str("status", resp.Status).
		Msg("payout forwarded")
	return nil
}
