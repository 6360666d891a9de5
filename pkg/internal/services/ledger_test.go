package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pollbridge/pollbridge/pkg/internal/gateway"
	"github.com/pollbridge/pollbridge/pkg/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// fakeLedger implements Ledger in memory and records every write call.
type fakeLedger struct {
	mu sync.Mutex

	polls       []models.Poll
	count       uint32
	votes       map[string][]models.VoteRecord
	optionVotes map[[2]uint32]uint32
	balances    map[string]decimal.Decimal

	activePollsErr  error
	voteErr         error
	createErr       error
	deleteErr       error
	receiptErr      error
	optionVoteDelay time.Duration

	writeCalls      []string
	optionVoteCalls map[[2]uint32]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		votes:           make(map[string][]models.VoteRecord),
		optionVotes:     make(map[[2]uint32]uint32),
		balances:        make(map[string]decimal.Decimal),
		optionVoteCalls: make(map[[2]uint32]int),
	}
}

func (f *fakeLedger) ActivePolls(ctx context.Context) ([]models.Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activePollsErr != nil {
		return nil, f.activePollsErr
	}
	return append([]models.Poll(nil), f.polls...), nil
}

func (f *fakeLedger) AllPollsCount(ctx context.Context) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

func (f *fakeLedger) UserVotes(ctx context.Context, account string) ([]models.VoteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.VoteRecord(nil), f.votes[account]...), nil
}

func (f *fakeLedger) OptionVotes(ctx context.Context, pollId, optionId uint32) (uint32, error) {
	f.mu.Lock()
	delay := f.optionVoteDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uint32{pollId, optionId}
	f.optionVoteCalls[key]++
	return f.optionVotes[key], nil
}

func (f *fakeLedger) PollExists(ctx context.Context, pollId uint32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, poll := range f.polls {
		if poll.ID == pollId {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[account], nil
}

func (f *fakeLedger) CreatePoll(ctx context.Context, from string, value decimal.Decimal, title string, options []string, durationDays uint32) (gateway.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls = append(f.writeCalls, "createNewPoll")
	if f.createErr != nil {
		return "", f.createErr
	}
	return "0xcreate", nil
}

func (f *fakeLedger) Vote(ctx context.Context, from string, value decimal.Decimal, pollId, optionId uint32) (gateway.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls = append(f.writeCalls, "vote")
	if f.voteErr != nil {
		return "", f.voteErr
	}
	return "0xvote", nil
}

func (f *fakeLedger) DeletePoll(ctx context.Context, from string, value decimal.Decimal, pollId uint32) (gateway.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls = append(f.writeCalls, "deletePoll")
	if f.deleteErr != nil {
		return "", f.deleteErr
	}
	return "0xdelete", nil
}

func (f *fakeLedger) WaitReceipt(ctx context.Context, handle gateway.TxHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receiptErr
}

func (f *fakeLedger) writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writeCalls...)
}

var frozenNow = time.Unix(1700000000, 0)

// setupTestBoard wires a fresh board against the fake with a frozen clock
// and zeroed fees.
func setupTestBoard(t *testing.T, source *fakeLedger) {
	t.Helper()

	viper.Set("ledger.vote_fee", "0")
	viper.Set("ledger.create_fee", "0")
	viper.Set("ledger.delete_fee", "0")
	viper.Set("ledger.receipt_timeout", "5s")

	InitBoard(source)
	board.now = func() time.Time { return frozenNow }

	notifyLock.Lock()
	notifyBacklog = make(map[string][]Notification)
	notifyLock.Unlock()
}

func testPoll(id uint32, owner string, endOffset time.Duration) models.Poll {
	return models.Poll{
		ID:         id,
		Owner:      owner,
		Title:      "Test Poll",
		Options:    []string{"Red", "Green", "Blue"},
		EndAt:      frozenNow.Add(endOffset),
		VotesCount: 0,
	}
}
