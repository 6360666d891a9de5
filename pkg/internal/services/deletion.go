package services

import (
	"context"
	"fmt"

	"github.com/pollbridge/pollbridge/pkg/internal/gateway"
	"github.com/pollbridge/pollbridge/pkg/internal/wallet"
	"github.com/rs/zerolog/log"
)

// DeletePoll removes a poll the account owns. Unlike voting there is no
// optimistic window at all: the poll leaves the collection only after the
// ledger confirms the deletion.
func DeletePoll(ctx context.Context, account string, pollId uint32) error {
	board.mutex.Lock()

	idx, ok := board.findPollLocked(pollId)
	if !ok {
		board.mutex.Unlock()
		return fmt.Errorf("poll %d not found", pollId)
	}
	if board.polls[idx].Owner != account {
		board.mutex.Unlock()
		return fmt.Errorf("only the poll owner can delete it")
	}
	if board.inflight[pollId] {
		board.mutex.Unlock()
		return fmt.Errorf("another operation on this poll is still submitting")
	}
	board.inflight[pollId] = true

	board.mutex.Unlock()

	fee := opFee("delete_fee")
	var err error
	if fee.IsPositive() {
		balance, ferr := wallet.FetchBalance(ctx, board.ledger, wallet.Session{Address: account, Connected: true})
		if ferr != nil {
			err = ferr
		} else if balance.LessThan(fee) {
			err = fmt.Errorf("insufficient funds to cover the deletion fee")
		}
	}

	if err == nil {
		var handle gateway.TxHandle
		handle, err = board.ledger.DeletePoll(ctx, account, fee, pollId)
		if err == nil {
			rctx, cancel := receiptContext(ctx)
			err = board.ledger.WaitReceipt(rctx, handle)
			cancel()
		}
	}

	board.mutex.Lock()
	delete(board.inflight, pollId)

	if err != nil {
		board.mutex.Unlock()
		PushNotification(account, NotifyError, fmt.Sprintf("Failed to delete poll: %s", gateway.ShortMessage(err)))
		log.Warn().Err(err).Str("account", account).Uint32("poll", pollId).Msg("An error occurred when deleting poll...")
		return err
	}

	if idx, ok := board.findPollLocked(pollId); ok {
		board.polls = append(board.polls[:idx], board.polls[idx+1:]...)
	}
	delete(board.tallies, pollId)
	for flowId := range board.flows {
		if flowId.PollID == pollId {
			if board.flows[flowId].Stage == StageAwaitingConfirmation {
				board.gates--
			}
			delete(board.flows, flowId)
		}
	}
	for account := range board.votes {
		delete(board.votes[account], pollId)
	}

	board.mutex.Unlock()

	purgePollSnapshot(pollId)
	PushNotification(account, NotifySuccess, "Poll has been deleted successfully")

	log.Info().Str("account", account).Uint32("poll", pollId).Msg("Poll deleted.")

	return nil
}
