package models

import (
	"time"

	"gorm.io/datatypes"
)

// PollSnapshot is the last good copy of an on-chain poll. It only exists so
// the board can serve stale-but-valid data when the ledger is unreachable;
// the ledger stays authoritative.
type PollSnapshot struct {
	ID         uint32                      `json:"id" gorm:"primaryKey"`
	Owner      string                      `json:"owner"`
	Title      string                      `json:"title"`
	Options    datatypes.JSONSlice[string] `json:"options"`
	EndAt      time.Time                   `json:"end_at"`
	VotesCount uint32                      `json:"votes_count"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

func (s PollSnapshot) ToPoll() Poll {
	return Poll{
		ID:         s.ID,
		Owner:      s.Owner,
		Title:      s.Title,
		Options:    s.Options,
		EndAt:      s.EndAt,
		VotesCount: s.VotesCount,
	}
}

func NewPollSnapshot(poll Poll) PollSnapshot {
	return PollSnapshot{
		ID:         poll.ID,
		Owner:      poll.Owner,
		Title:      poll.Title,
		Options:    datatypes.NewJSONSlice(poll.Options),
		EndAt:      poll.EndAt,
		VotesCount: poll.VotesCount,
	}
}

// VoteSnapshot mirrors one account's recorded vote on one poll.
type VoteSnapshot struct {
	Account   string    `json:"account" gorm:"primaryKey"`
	PollID    uint32    `json:"poll_id" gorm:"primaryKey"`
	OptionID  uint32    `json:"option_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
