package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pollbridge/pollbridge/pkg/internal/gateway"
	"github.com/pollbridge/pollbridge/pkg/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

func refreshedBoard(t *testing.T, ledger *fakeLedger) {
	t.Helper()
	setupTestBoard(t, ledger)
	if err := RefreshBoard(context.Background()); err != nil {
		t.Fatalf("RefreshBoard() failed: %v", err)
	}
}

func TestVoteSequencerCommit(t *testing.T) {
	ledger := newFakeLedger()
	ledger.polls = []models.Poll{testPoll(7, "0xalice", time.Hour)}
	ledger.count = 7
	refreshedBoard(t, ledger)

	if err := StageVote("0xbob", 7, 2); err != nil {
		t.Fatalf("StageVote() failed: %v", err)
	}
	if !ConfirmationGateHeld() {
		t.Error("staging a vote should hold the confirmation gate")
	}

	if err := ConfirmVote(context.Background(), "0xbob", 7); err != nil {
		t.Fatalf("ConfirmVote() failed: %v", err)
	}
	if ConfirmationGateHeld() {
		t.Error("the confirmation gate should release after confirming")
	}

	view, err := GetPollView(context.Background(), "0xbob", 7)
	if err != nil {
		t.Fatalf("GetPollView() failed: %v", err)
	}
	if view.SelectedOptionID != 2 {
		t.Errorf("SelectedOptionID = %d, want 2", view.SelectedOptionID)
	}
	if view.Status != models.PollStatusLocked {
		t.Errorf("Status = %s, want locked", view.Status)
	}
	if view.VotesCount != 1 {
		t.Errorf("VotesCount = %d, want 1", view.VotesCount)
	}
	if view.VoteStage != "committed" {
		t.Errorf("VoteStage = %s, want committed", view.VoteStage)
	}

	backlog := DrainNotifications("0xbob")
	if len(backlog) != 1 || backlog[0].Level != NotifySuccess {
		t.Errorf("expected one success notification, got %+v", backlog)
	}
}

func TestVoteSequencerRollback(t *testing.T) {
	ledger := newFakeLedger()
	ledger.polls = []models.Poll{testPoll(7, "0xalice", time.Hour)}
	ledger.count = 7
	ledger.voteErr = &gateway.Error{Op: gateway.OpVote, Short: "user rejected", Message: "user rejected the request in the wallet"}
	refreshedBoard(t, ledger)

	if err := StageVote("0xbob", 7, 2); err != nil {
		t.Fatalf("StageVote() failed: %v", err)
	}
	if err := ConfirmVote(context.Background(), "0xbob", 7); err == nil {
		t.Fatal("expected the vote to fail")
	}

	// Rollback must restore the exact pre-attempt state.
	view, err := GetPollView(context.Background(), "0xbob", 7)
	if err != nil {
		t.Fatalf("GetPollView() failed: %v", err)
	}
	if view.SelectedOptionID != 0 {
		t.Errorf("SelectedOptionID = %d, want 0", view.SelectedOptionID)
	}
	if view.Status != models.PollStatusActive {
		t.Errorf("Status = %s, want active", view.Status)
	}
	if view.VotesCount != 0 {
		t.Errorf("VotesCount = %d, want 0", view.VotesCount)
	}
	if ConfirmationGateHeld() {
		t.Error("the confirmation gate should release after a failed vote")
	}

	backlog := DrainNotifications("0xbob")
	if len(backlog) != 1 || backlog[0].Level != NotifyError {
		t.Fatalf("expected one failure notification, got %+v", backlog)
	}
	if !strings.Contains(backlog[0].Message, "user rejected") {
		t.Errorf("notification should carry the short message, got %q", backlog[0].Message)
	}

	// A failed attempt can be retried through the full cycle.
	ledger.mu.Lock()
	ledger.voteErr = nil
	ledger.mu.Unlock()
	if err := StageVote("0xbob", 7, 1); err != nil {
		t.Fatalf("StageVote() after rollback failed: %v", err)
	}
	if err := ConfirmVote(context.Background(), "0xbob", 7); err != nil {
		t.Fatalf("ConfirmVote() after rollback failed: %v", err)
	}
}

func TestVoteRevertedReceiptRollsBack(t *testing.T) {
	ledger := newFakeLedger()
	ledger.polls = []models.Poll{testPoll(7, "0xalice", time.Hour)}
	ledger.count = 7
	ledger.receiptErr = &gateway.Error{Op: gateway.OpGetReceipt, Short: "already voted", Message: "transaction reverted: already voted"}
	refreshedBoard(t, ledger)

	if err := StageVote("0xbob", 7, 2); err != nil {
		t.Fatalf("StageVote() failed: %v", err)
	}
	if err := ConfirmVote(context.Background(), "0xbob", 7); err == nil {
		t.Fatal("expected the vote to fail on the reverted receipt")
	}

	view, _ := GetPollView(context.Background(), "0xbob", 7)
	if view.SelectedOptionID != 0 || view.Status != models.PollStatusActive {
		t.Error("a reverted receipt must roll the local state back")
	}
}

func TestVoteInsufficientFunds(t *testing.T) {
	ledger := newFakeLedger()
	ledger.polls = []models.Poll{testPoll(7, "0xalice", time.Hour)}
	ledger.count = 7
	ledger.balances["0xbob"] = decimal.RequireFromString("0.00001")
	refreshedBoard(t, ledger)

	viper.Set("ledger.vote_fee", "0.0001")
	defer viper.Set("ledger.vote_fee", "0")

	if err := StageVote("0xbob", 7, 2); err != nil {
		t.Fatalf("StageVote() failed: %v", err)
	}
	err := ConfirmVote(context.Background(), "0xbob", 7)
	if err == nil || !strings.Contains(err.Error(), "insufficient funds") {
		t.Fatalf("expected an insufficient funds failure, got %v", err)
	}

	if got := ledger.writes(); len(got) != 0 {
		t.Errorf("the gateway must not see a write when funds are short, saw %v", got)
	}
}

func TestNoConcurrentSubmissionsOnOnePoll(t *testing.T) {
	ledger := newFakeLedger()
	ledger.polls = []models.Poll{testPoll(7, "0xalice", time.Hour)}
	ledger.count = 7
	refreshedBoard(t, ledger)

	// Simulate an attempt stuck mid-submission.
	board.mutex.Lock()
	board.flows[flowKey{Account: "0xbob", PollID: 7}] = &voteFlow{Stage: StageSubmitting, OptionID: 1}
	board.inflight[7] = true
	board.mutex.Unlock()

	if err := StageVote("0xbob", 7, 2); !errors.Is(err, ErrStillSubmitting) {
		t.Errorf("staging must be rejected while a vote is submitting, got %v", err)
	}
	if err := StageVote("0xcarol", 7, 2); !errors.Is(err, ErrStillSubmitting) {
		t.Errorf("the per-poll lock applies across accounts too, got %v", err)
	}
	if err := ConfirmVote(context.Background(), "0xbob", 7); !errors.Is(err, ErrStillSubmitting) {
		t.Errorf("confirming must be rejected while a vote is submitting, got %v", err)
	}
}

func TestCancelVote(t *testing.T) {
	ledger := newFakeLedger()
	ledger.polls = []models.Poll{testPoll(7, "0xalice", time.Hour)}
	ledger.count = 7
	refreshedBoard(t, ledger)

	if err := CancelVote("0xbob", 7); err == nil {
		t.Error("cancel without a staged vote should fail")
	}

	if err := StageVote("0xbob", 7, 3); err != nil {
		t.Fatalf("StageVote() failed: %v", err)
	}
	if err := CancelVote("0xbob", 7); err != nil {
		t.Fatalf("CancelVote() failed: %v", err)
	}
	if ConfirmationGateHeld() {
		t.Error("the confirmation gate should release on cancel")
	}

	view, _ := GetPollView(context.Background(), "0xbob", 7)
	if view.StagedOptionID != 0 || view.SelectedOptionID != 0 {
		t.Error("cancel should revert the selection to 0")
	}

	if got := ledger.writes(); len(got) != 0 {
		t.Errorf("cancelled votes never reach the gateway, saw %v", got)
	}
}

func TestStageVoteGuards(t *testing.T) {
	ledger := newFakeLedger()
	ledger.polls = []models.Poll{
		testPoll(1, "0xalice", time.Hour),
		testPoll(2, "0xalice", -time.Hour),
	}
	ledger.count = 2
	ledger.votes["0xbob"] = []models.VoteRecord{{PollID: 1, OptionID: 1}}
	refreshedBoard(t, ledger)

	if err := RefreshBoard(context.Background(), "0xbob"); err != nil {
		t.Fatalf("RefreshBoard() failed: %v", err)
	}

	if err := StageVote("0xbob", 1, 2); err == nil {
		t.Error("voting on a locked poll should fail")
	}
	if err := StageVote("0xbob", 2, 1); err == nil {
		t.Error("voting on an ended poll should fail")
	}
	if err := StageVote("0xbob", 99, 1); err == nil {
		t.Error("voting on an unknown poll should fail")
	}
	if err := StageVote("0xcarol", 1, 9); err == nil {
		t.Error("voting for an option out of range should fail")
	}
}

func TestRestageReplacesSelection(t *testing.T) {
	ledger := newFakeLedger()
	ledger.polls = []models.Poll{testPoll(7, "0xalice", time.Hour)}
	ledger.count = 7
	refreshedBoard(t, ledger)

	if err := StageVote("0xbob", 7, 1); err != nil {
		t.Fatalf("StageVote() failed: %v", err)
	}
	if err := StageVote("0xbob", 7, 3); err != nil {
		t.Fatalf("re-staging before confirmation failed: %v", err)
	}

	view, _ := GetPollView(context.Background(), "0xbob", 7)
	if view.StagedOptionID != 3 {
		t.Errorf("StagedOptionID = %d, want 3", view.StagedOptionID)
	}

	if err := ConfirmVote(context.Background(), "0xbob", 7); err != nil {
		t.Fatalf("ConfirmVote() failed: %v", err)
	}
	view, _ = GetPollView(context.Background(), "0xbob", 7)
	if view.SelectedOptionID != 3 {
		t.Errorf("SelectedOptionID = %d, want 3", view.SelectedOptionID)
	}
}
