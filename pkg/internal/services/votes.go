package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pollbridge/pollbridge/pkg/internal/gateway"
	"github.com/pollbridge/pollbridge/pkg/internal/models"
	"github.com/pollbridge/pollbridge/pkg/internal/wallet"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type VoteStage int

const (
	StageIdle VoteStage = iota
	StageAwaitingConfirmation
	StageSubmitting
	StageCommitted
	StageFailed
)

func (s VoteStage) String() string {
	switch s {
	case StageAwaitingConfirmation:
		return "awaiting_confirmation"
	case StageSubmitting:
		return "submitting"
	case StageCommitted:
		return "committed"
	case StageFailed:
		return "failed"
	default:
		return "idle"
	}
}

// ErrStillSubmitting reports a vote attempt colliding with one already on
// the wire for the same poll.
var ErrStillSubmitting = errors.New("a vote on this poll is still submitting")

// voteFlow is one account's vote attempt on one poll. It only ever moves
// through the defined transitions; nothing outside this file mutates it.
type voteFlow struct {
	Stage    VoteStage
	OptionID uint32
}

func opFee(key string) decimal.Decimal {
	fee, err := decimal.NewFromString(viper.GetString("ledger." + key))
	if err != nil {
		return decimal.Zero
	}
	return fee
}

func receiptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := viper.GetDuration("ledger.receipt_timeout")
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// StageVote holds a selection pending explicit confirmation. The selection
// is never applied directly; a vote is irreversible on the ledger, so the
// two-step commit is deliberate.
func StageVote(account string, pollId, optionId uint32) error {
	board.mutex.Lock()
	defer board.mutex.Unlock()

	idx, ok := board.findPollLocked(pollId)
	if !ok {
		return fmt.Errorf("poll %d not found", pollId)
	}
	poll := board.polls[idx]

	switch PollStatusOf(poll, board.now(), board.votedOptionLocked(account, pollId)) {
	case models.PollStatusEnded:
		return fmt.Errorf("poll has been ended")
	case models.PollStatusLocked:
		return fmt.Errorf("you have already voted on this poll")
	}

	if optionId < 1 || optionId > uint32(len(poll.Options)) {
		return fmt.Errorf("option %d does not exist on this poll", optionId)
	}
	if board.inflight[pollId] {
		return ErrStillSubmitting
	}

	key := flowKey{Account: account, PollID: pollId}
	if flow, ok := board.flows[key]; ok {
		if flow.Stage == StageSubmitting {
			return ErrStillSubmitting
		}
		if flow.Stage == StageAwaitingConfirmation {
			// Re-selecting before confirming just replaces the choice.
			flow.OptionID = optionId
			return nil
		}
	}

	board.flows[key] = &voteFlow{Stage: StageAwaitingConfirmation, OptionID: optionId}
	board.gates++

	return nil
}

// CancelVote abandons a staged selection. Only possible before confirming;
// once submitting, the wallet and ledger own cancellation.
func CancelVote(account string, pollId uint32) error {
	board.mutex.Lock()
	defer board.mutex.Unlock()

	key := flowKey{Account: account, PollID: pollId}
	flow, ok := board.flows[key]
	if !ok || flow.Stage != StageAwaitingConfirmation {
		return fmt.Errorf("no vote awaiting confirmation on this poll")
	}

	delete(board.flows, key)
	board.gates--

	return nil
}

// ConfirmVote drives a staged selection through submission. Local state
// commits only once the ledger confirms the receipt; any failure on the way
// restores the exact pre-attempt state.
func ConfirmVote(ctx context.Context, account string, pollId uint32) error {
	key := flowKey{Account: account, PollID: pollId}

	board.mutex.Lock()
	flow, ok := board.flows[key]
	if ok && flow.Stage == StageSubmitting {
		board.mutex.Unlock()
		return ErrStillSubmitting
	}
	if !ok || flow.Stage != StageAwaitingConfirmation {
		board.mutex.Unlock()
		return fmt.Errorf("no vote awaiting confirmation on this poll")
	}
	if board.inflight[pollId] {
		board.mutex.Unlock()
		return ErrStillSubmitting
	}

	idx, found := board.findPollLocked(pollId)
	if !found {
		delete(board.flows, key)
		board.gates--
		board.mutex.Unlock()
		return fmt.Errorf("poll %d not found", pollId)
	}
	if PollStatusOf(board.polls[idx], board.now(), 0) == models.PollStatusEnded {
		delete(board.flows, key)
		board.gates--
		board.mutex.Unlock()
		return fmt.Errorf("poll has been ended")
	}

	optionId := flow.OptionID
	flow.Stage = StageSubmitting
	board.inflight[pollId] = true
	board.mutex.Unlock()

	fee := opFee("vote_fee")
	if fee.IsPositive() {
		balance, err := wallet.FetchBalance(ctx, board.ledger, wallet.Session{Address: account, Connected: true})
		if err == nil && balance.LessThan(fee) {
			err = fmt.Errorf("insufficient funds to cover the voting fee")
		}
		if err != nil {
			failVote(account, pollId, err)
			return err
		}
	}

	handle, err := board.ledger.Vote(ctx, account, fee, pollId, optionId)
	if err == nil {
		rctx, cancel := receiptContext(ctx)
		err = board.ledger.WaitReceipt(rctx, handle)
		cancel()
	}
	if err != nil {
		failVote(account, pollId, err)
		return err
	}

	commitVote(account, pollId, optionId)
	return nil
}

// commitVote applies a confirmed vote: the record becomes permanent for
// this session and the poll locks for the voter.
func commitVote(account string, pollId, optionId uint32) {
	board.mutex.Lock()

	if board.votes[account] == nil {
		board.votes[account] = make(map[uint32]uint32)
	}
	board.votes[account][pollId] = optionId

	if idx, ok := board.findPollLocked(pollId); ok {
		board.polls[idx].VotesCount++
	}

	if flow, ok := board.flows[key(account, pollId)]; ok {
		flow.Stage = StageCommitted
		board.gates--
	}
	delete(board.inflight, pollId)

	board.mutex.Unlock()

	persistVoteSnapshots(account, []models.VoteRecord{{PollID: pollId, OptionID: optionId}})
	PushNotification(account, NotifySuccess, "Your vote has been cast successfully")

	log.Info().Str("account", account).Uint32("poll", pollId).Uint32("option", optionId).Msg("Vote committed.")
}

// failVote rolls the flow back to its pre-attempt state: no selection, poll
// unlocked. Identical to never having tried.
func failVote(account string, pollId uint32, cause error) {
	board.mutex.Lock()

	if flow, ok := board.flows[key(account, pollId)]; ok {
		flow.Stage = StageFailed
		flow.OptionID = 0
		board.gates--
	}
	delete(board.inflight, pollId)

	board.mutex.Unlock()

	PushNotification(account, NotifyError, fmt.Sprintf("Failed to cast vote: %s", gateway.ShortMessage(cause)))

	log.Warn().Err(cause).Str("account", account).Uint32("poll", pollId).Msg("An error occurred when casting vote...")
}

func key(account string, pollId uint32) flowKey {
	return flowKey{Account: account, PollID: pollId}
}
