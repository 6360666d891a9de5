package services

import (
	"github.com/pollbridge/pollbridge/pkg/internal/database"
	"github.com/pollbridge/pollbridge/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

// The snapshot store is a durable read cache and nothing more. Every write
// here is best-effort: a missing or broken database never blocks the board,
// it only costs the stale-serving fallback.

func persistPollSnapshots(polls []models.Poll) {
	if database.C == nil || len(polls) == 0 {
		return
	}

	rows := lo.FilterMap(polls, func(item models.Poll, _ int) (models.PollSnapshot, bool) {
		return models.NewPollSnapshot(item), !item.Provisional
	})
	if len(rows) == 0 {
		return
	}

	if err := database.C.Clauses(clause.OnConflict{
		UpdateAll: true,
	}).Create(&rows).Error; err != nil {
		log.Warn().Err(err).Msg("An error occurred when persisting poll snapshots...")
	}
}

func persistVoteSnapshots(account string, records []models.VoteRecord) {
	if database.C == nil || len(records) == 0 {
		return
	}

	rows := lo.Map(records, func(item models.VoteRecord, _ int) models.VoteSnapshot {
		return models.VoteSnapshot{
			Account:  account,
			PollID:   item.PollID,
			OptionID: item.OptionID,
		}
	})

	if err := database.C.Clauses(clause.OnConflict{
		UpdateAll: true,
	}).Create(&rows).Error; err != nil {
		log.Warn().Err(err).Str("account", account).Msg("An error occurred when persisting vote snapshots...")
	}
}

func purgePollSnapshot(pollId uint32) {
	if database.C == nil {
		return
	}

	if err := database.C.Delete(&models.PollSnapshot{}, "id = ?", pollId).Error; err != nil {
		log.Warn().Err(err).Uint32("poll", pollId).Msg("An error occurred when purging poll snapshot...")
	}
	if err := database.C.Delete(&models.VoteSnapshot{}, "poll_id = ?", pollId).Error; err != nil {
		log.Warn().Err(err).Uint32("poll", pollId).Msg("An error occurred when purging vote snapshots...")
	}
}

// seedBoardFromSnapshots preloads the board with the last good refresh so
// the first render after boot has something to show even when the ledger is
// unreachable.
func seedBoardFromSnapshots() {
	if database.C == nil {
		return
	}

	var pollRows []models.PollSnapshot
	if err := database.C.Find(&pollRows).Error; err != nil {
		log.Warn().Err(err).Msg("An error occurred when seeding polls from snapshots...")
		return
	}

	var voteRows []models.VoteSnapshot
	if err := database.C.Find(&voteRows).Error; err != nil {
		log.Warn().Err(err).Msg("An error occurred when seeding votes from snapshots...")
	}

	board.mutex.Lock()
	defer board.mutex.Unlock()

	board.polls = lo.Map(pollRows, func(item models.PollSnapshot, _ int) models.Poll {
		return item.ToPoll()
	})
	for _, poll := range board.polls {
		if poll.ID > board.lastId {
			board.lastId = poll.ID
		}
	}

	for _, row := range voteRows {
		if board.votes[row.Account] == nil {
			board.votes[row.Account] = make(map[uint32]uint32)
		}
		board.votes[row.Account][row.PollID] = row.OptionID
	}

	if len(pollRows) > 0 {
		log.Info().Int("polls", len(pollRows)).Int("votes", len(voteRows)).Msg("Board seeded from local snapshots.")
	}
}
