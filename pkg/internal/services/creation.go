package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pollbridge/pollbridge/pkg/internal/gateway"
	"github.com/pollbridge/pollbridge/pkg/internal/models"
	"github.com/pollbridge/pollbridge/pkg/internal/wallet"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// PollDraft is a new-poll request before any remote call happens.
type PollDraft struct {
	Title        string   `json:"title" validate:"required"`
	Options      []string `json:"options" validate:"required"`
	DurationDays int      `json:"duration_days" validate:"required"`
}

// ValidateDraft enforces the client-side rules: non-blank title, at least
// two non-blank options, a positive whole number of days. No gateway call
// is made until these pass.
func ValidateDraft(draft PollDraft) error {
	if len(strings.TrimSpace(draft.Title)) == 0 {
		return fmt.Errorf("poll title cannot be blank")
	}

	options := lo.Filter(draft.Options, func(item string, _ int) bool {
		return len(strings.TrimSpace(item)) > 0
	})
	if len(options) != len(draft.Options) {
		return fmt.Errorf("poll options cannot be blank")
	}
	if len(options) < 2 {
		return fmt.Errorf("a poll needs at least two options")
	}

	if draft.DurationDays <= 0 {
		return fmt.Errorf("poll duration must be a positive number of days")
	}

	return nil
}

// CreatePoll validates and submits a new poll. Once the ledger confirms the
// receipt, the poll joins the collection under a provisional id; the next
// full refresh reconciles it against the server-assigned one. On failure
// the collection is left untouched.
func CreatePoll(ctx context.Context, account string, draft PollDraft) (models.Poll, error) {
	if err := ValidateDraft(draft); err != nil {
		return models.Poll{}, err
	}

	fee := opFee("create_fee")
	if fee.IsPositive() {
		balance, err := wallet.FetchBalance(ctx, board.ledger, wallet.Session{Address: account, Connected: true})
		if err == nil && balance.LessThan(fee) {
			err = fmt.Errorf("insufficient funds to cover the creation fee")
		}
		if err != nil {
			return models.Poll{}, err
		}
	}

	days := uint32(draft.DurationDays)

	handle, err := board.ledger.CreatePoll(ctx, account, fee, draft.Title, draft.Options, days)
	if err == nil {
		rctx, cancel := receiptContext(ctx)
		err = board.ledger.WaitReceipt(rctx, handle)
		cancel()
	}
	if err != nil {
		PushNotification(account, NotifyError, fmt.Sprintf("Failed to create the poll: %s", gateway.ShortMessage(err)))
		log.Warn().Err(err).Str("account", account).Msg("An error occurred when creating poll...")
		return models.Poll{}, err
	}

	board.mutex.Lock()

	board.lastId++
	poll := models.Poll{
		ID:          board.lastId,
		Owner:       account,
		Title:       draft.Title,
		Options:     append([]string(nil), draft.Options...),
		EndAt:       board.now().Add(time.Duration(days) * 24 * time.Hour),
		Provisional: true,
	}
	board.polls = append(board.polls, poll)

	board.mutex.Unlock()

	// Not persisted yet: the snapshot store only keeps server-confirmed
	// rows, and the provisional id may still be rebound on the next refresh.
	PushNotification(account, NotifySuccess, "Poll has been created successfully")

	log.Info().Str("account", account).Uint32("poll", poll.ID).Msg("Poll created.")

	return poll, nil
}
