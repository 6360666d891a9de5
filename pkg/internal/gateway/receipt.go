package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	ReceiptStatusPending   = "pending"
	ReceiptStatusConfirmed = "confirmed"
	ReceiptStatusReverted  = "reverted"
)

type Receipt struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (v *Client) Receipt(ctx context.Context, handle TxHandle) (*Receipt, error) {
	var out Receipt
	if err := v.read(ctx, OpGetReceipt, []any{string(handle)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitReceipt polls the ledger until the submitted transaction is confirmed.
// It stops waiting when the context is canceled. A reverted transaction
// comes back as a classified error carrying the ledger's revert reason.
func (v *Client) WaitReceipt(ctx context.Context, handle TxHandle) error {
	interval := viper.GetDuration("ledger.receipt_interval")
	if interval <= 0 {
		interval = time.Second
	}

	queryTicker := time.NewTicker(interval)
	defer queryTicker.Stop()

	for {
		receipt, err := v.Receipt(ctx, handle)
		if err != nil {
			return err
		}
		switch receipt.Status {
		case ReceiptStatusConfirmed:
			return nil
		case ReceiptStatusReverted:
			return &Error{Op: OpGetReceipt, Short: receipt.Reason, Message: "transaction reverted: " + receipt.Reason}
		default:
			log.Debug().Str("tx", string(handle)).Msg("Transaction not yet mined...")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-queryTicker.C:
		}
	}
}
