package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pollbridge/pollbridge/pkg/internal/gateway"
	"github.com/pollbridge/pollbridge/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Ledger is the contract gateway surface the services consume. The concrete
// implementation is gateway.Client; tests plug in fakes.
type Ledger interface {
	ActivePolls(ctx context.Context) ([]models.Poll, error)
	AllPollsCount(ctx context.Context) (uint32, error)
	UserVotes(ctx context.Context, account string) ([]models.VoteRecord, error)
	OptionVotes(ctx context.Context, pollId, optionId uint32) (uint32, error)
	PollExists(ctx context.Context, pollId uint32) (bool, error)
	Balance(ctx context.Context, account string) (decimal.Decimal, error)
	CreatePoll(ctx context.Context, from string, value decimal.Decimal, title string, options []string, durationDays uint32) (gateway.TxHandle, error)
	Vote(ctx context.Context, from string, value decimal.Decimal, pollId, optionId uint32) (gateway.TxHandle, error)
	DeletePoll(ctx context.Context, from string, value decimal.Decimal, pollId uint32) (gateway.TxHandle, error)
	WaitReceipt(ctx context.Context, handle gateway.TxHandle) error
}

type flowKey struct {
	Account string
	PollID  uint32
}

// PollBoard is the reconciled in-memory collection: the last full ledger
// read, merged with locally created provisional polls and pending vote
// flows. One merge owns the lock at a time; readers only ever get copies.
type PollBoard struct {
	mutex  sync.Mutex
	ledger Ledger
	now    func() time.Time

	polls    []models.Poll
	lastId   uint32
	votes    map[string]map[uint32]uint32
	flows    map[flowKey]*voteFlow
	inflight map[uint32]bool
	tallies  map[uint32][]models.OptionTally
	fetching map[uint32]chan struct{}
	gates    int

	refreshedAt time.Time
}

var board *PollBoard

func InitBoard(source Ledger) {
	board = &PollBoard{
		ledger:   source,
		now:      time.Now,
		votes:    make(map[string]map[uint32]uint32),
		flows:    make(map[flowKey]*voteFlow),
		inflight: make(map[uint32]bool),
		tallies:  make(map[uint32][]models.OptionTally),
		fetching: make(map[uint32]chan struct{}),
	}

	seedBoardFromSnapshots()
}

// RefreshBoard pulls the active poll list, the poll counter, and the vote
// map of every known account, then merges them into the collection. A
// failed read keeps the previous state in place; the board serves stale but
// valid data until the next successful refresh.
func RefreshBoard(ctx context.Context, accounts ...string) error {
	serverPolls, err := board.ledger.ActivePolls(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh active polls: %v", err)
	}

	count, err := board.ledger.AllPollsCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh polls count: %v", err)
	}

	serverVotes := make(map[string][]models.VoteRecord)
	for _, account := range accounts {
		records, err := board.ledger.UserVotes(ctx, account)
		if err != nil {
			log.Warn().Err(err).Str("account", account).Msg("An error occurred when refreshing user votes...")
			continue
		}
		serverVotes[account] = records
	}

	board.mutex.Lock()
	defer board.mutex.Unlock()

	board.mergeLocked(serverPolls, count, serverVotes)
	board.refreshedAt = board.now()

	persistPollSnapshots(board.polls)
	for account, records := range serverVotes {
		persistVoteSnapshots(account, records)
	}

	return nil
}

// mergeLocked folds a full server read into the collection. Server rows win
// by id; provisional polls survive until the server confirms them, and a
// provisional id taken by a different poll gets rebound to the next free
// one instead of silently dropping the creation.
func (v *PollBoard) mergeLocked(serverPolls []models.Poll, count uint32, serverVotes map[string][]models.VoteRecord) {
	taken := make(map[uint32]models.Poll, len(serverPolls))
	for _, poll := range serverPolls {
		taken[poll.ID] = poll
	}

	var provisional []models.Poll
	for _, poll := range v.polls {
		if !poll.Provisional {
			continue
		}
		if remote, ok := taken[poll.ID]; ok {
			if remote.Owner == poll.Owner && remote.Title == poll.Title {
				// Confirmed; the server row replaces the local guess.
				continue
			}
			// Id collision with someone else's creation; rebind below.
			poll.ID = 0
		}
		provisional = append(provisional, poll)
	}

	merged := make([]models.Poll, 0, len(serverPolls)+len(provisional))
	merged = append(merged, serverPolls...)

	lastId := count
	for _, poll := range merged {
		if poll.ID > lastId {
			lastId = poll.ID
		}
	}

	for _, poll := range provisional {
		if poll.ID == 0 {
			lastId++
			poll.ID = lastId
		} else if poll.ID > lastId {
			lastId = poll.ID
		}
		merged = append(merged, poll)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ID < merged[j].ID
	})

	v.polls = merged
	v.lastId = lastId

	// Server vote maps replace the local ones, except a local non-zero
	// record the server has not caught up with yet. A refresh landing while
	// a vote is in flight must not wipe the optimistic state.
	for account, records := range serverVotes {
		next := make(map[uint32]uint32, len(records))
		for _, record := range records {
			if record.OptionID != 0 {
				next[record.PollID] = record.OptionID
			}
		}
		for pollId, optionId := range v.votes[account] {
			if _, ok := next[pollId]; !ok && optionId != 0 {
				next[pollId] = optionId
			}
		}
		v.votes[account] = next
	}
}

func (v *PollBoard) votedOptionLocked(account string, pollId uint32) uint32 {
	if account == "" {
		return 0
	}
	return v.votes[account][pollId]
}

func (v *PollBoard) findPollLocked(pollId uint32) (int, bool) {
	for idx, poll := range v.polls {
		if poll.ID == pollId {
			return idx, true
		}
	}
	return 0, false
}

func (v *PollBoard) viewLocked(poll models.Poll, account string) models.PollView {
	voted := v.votedOptionLocked(account, poll.ID)

	view := models.PollView{
		Poll:             poll,
		Status:           PollStatusOf(poll, v.now(), voted),
		SelectedOptionID: voted,
	}
	view.Options = append([]string(nil), poll.Options...)

	if flow, ok := v.flows[flowKey{Account: account, PollID: poll.ID}]; ok {
		view.VoteStage = flow.Stage.String()
		view.StagedOptionID = flow.OptionID
	}

	if view.Status == models.PollStatusEnded {
		if tallies, ok := v.tallies[poll.ID]; ok {
			view.Tallies = append([]models.OptionTally(nil), tallies...)
			if top, ok := TopOption(view.Tallies); ok {
				view.TopOption = &top
			}
		}
	}

	return view
}

// ensureTallies fetches tallies for ended polls that don't have them yet.
// It must be called without the board lock held; the fetch suspends on
// remote reads. Exactly one fetch per poll is ever in flight: concurrent
// renders wait for the leader instead of firing duplicate view calls.
func ensureTallies(ctx context.Context, pending []models.Poll) {
	for _, poll := range pending {
		board.mutex.Lock()
		if _, ok := board.tallies[poll.ID]; ok {
			board.mutex.Unlock()
			continue
		}
		if leader, ok := board.fetching[poll.ID]; ok {
			board.mutex.Unlock()
			select {
			case <-leader:
			case <-ctx.Done():
				return
			}
			continue
		}
		done := make(chan struct{})
		board.fetching[poll.ID] = done
		board.mutex.Unlock()

		tallies, err := FetchPollTallies(ctx, board.ledger, poll)

		board.mutex.Lock()
		if err == nil {
			board.tallies[poll.ID] = tallies
		}
		delete(board.fetching, poll.ID)
		board.mutex.Unlock()
		close(done)

		if err != nil {
			log.Warn().Err(err).Uint32("poll", poll.ID).Msg("An error occurred when fetching poll tallies...")
		}
	}
}

// ListPollViews renders the whole collection for one account.
func ListPollViews(ctx context.Context, account string) []models.PollView {
	board.mutex.Lock()
	var pending []models.Poll
	for _, poll := range board.polls {
		if PollStatusOf(poll, board.now(), 0) == models.PollStatusEnded {
			if _, ok := board.tallies[poll.ID]; !ok {
				pending = append(pending, poll)
			}
		}
	}
	board.mutex.Unlock()

	ensureTallies(ctx, pending)

	board.mutex.Lock()
	defer board.mutex.Unlock()

	views := make([]models.PollView, 0, len(board.polls))
	for _, poll := range board.polls {
		views = append(views, board.viewLocked(poll, account))
	}
	return views
}

// GetPollView renders a single poll for one account.
func GetPollView(ctx context.Context, account string, pollId uint32) (models.PollView, error) {
	board.mutex.Lock()
	idx, ok := board.findPollLocked(pollId)
	if !ok {
		board.mutex.Unlock()
		return models.PollView{}, fmt.Errorf("poll %d not found", pollId)
	}
	poll := board.polls[idx]
	_, hasTallies := board.tallies[pollId]
	ended := PollStatusOf(poll, board.now(), 0) == models.PollStatusEnded
	board.mutex.Unlock()

	if ended && !hasTallies {
		ensureTallies(ctx, []models.Poll{poll})
	}

	board.mutex.Lock()
	defer board.mutex.Unlock()
	return board.viewLocked(poll, account), nil
}

// LastPollId reports the highest poll id the board knows about.
func LastPollId() uint32 {
	board.mutex.Lock()
	defer board.mutex.Unlock()
	return board.lastId
}

// ConfirmationGateHeld reports whether any confirmation dialog is open.
// The counter replaces the document-level scroll flag of the old UI: each
// staged vote acquires the gate and every confirm/cancel releases it.
func ConfirmationGateHeld() bool {
	board.mutex.Lock()
	defer board.mutex.Unlock()
	return board.gates > 0
}

// RefreshedAt reports the time of the last successful full refresh.
func RefreshedAt() time.Time {
	board.mutex.Lock()
	defer board.mutex.Unlock()
	return board.refreshedAt
}
