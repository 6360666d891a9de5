package services

import (
	"time"

	"github.com/pollbridge/pollbridge/pkg/internal/models"
)

// PollStatusOf derives a poll's display status. A poll past its deadline is
// ended no matter what; otherwise a recorded vote locks it for that account.
// The transition order is one-way: active -> locked while open, and ended is
// terminal.
func PollStatusOf(poll models.Poll, now time.Time, votedOptionId uint32) models.PollStatus {
	if !now.Before(poll.EndAt) {
		return models.PollStatusEnded
	}
	if votedOptionId != 0 {
		return models.PollStatusLocked
	}
	return models.PollStatusActive
}

// TopOption picks the winning option of an ended poll. Only a strictly
// greater tally displaces the current leader, so the lowest option index
// wins ties.
func TopOption(tallies []models.OptionTally) (models.OptionTally, bool) {
	if len(tallies) == 0 {
		return models.OptionTally{}, false
	}

	top := tallies[0]
	for _, tally := range tallies[1:] {
		if tally.VotesCount > top.VotesCount {
			top = tally
		}
	}
	return top, true
}
