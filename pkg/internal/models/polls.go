package models

import (
	"time"
)

type PollStatus = string

const (
	PollStatusActive PollStatus = "active"
	PollStatusLocked PollStatus = "locked"
	PollStatusEnded  PollStatus = "ended"
)

// Poll mirrors the on-chain poll record. The ledger stores EndAt as
// seconds-since-epoch; the gateway converts it before it gets here.
type Poll struct {
	ID         uint32    `json:"id"`
	Owner      string    `json:"owner"`
	Title      string    `json:"title"`
	Options    []string  `json:"options"`
	EndAt      time.Time `json:"end_at"`
	VotesCount uint32    `json:"votes_count"`

	// Provisional marks a locally created poll whose id has not been
	// confirmed by the ledger yet.
	Provisional bool `json:"provisional,omitempty"`
}

// VoteRecord is one user's recorded choice on a poll.
// OptionID is a 1-based index into the poll's options; 0 means no vote.
type VoteRecord struct {
	PollID   uint32 `json:"poll_id"`
	OptionID uint32 `json:"option_id"`
}

type OptionTally struct {
	OptionID   uint32 `json:"option_id"`
	Label      string `json:"label"`
	VotesCount uint32 `json:"votes_count"`
}

// PollView is the render-ready shape of a poll: the on-chain record plus
// everything derived for the requesting account.
type PollView struct {
	Poll

	Status           PollStatus    `json:"status"`
	SelectedOptionID uint32        `json:"selected_option_id"`
	StagedOptionID   uint32        `json:"staged_option_id,omitempty"`
	VoteStage        string        `json:"vote_stage,omitempty"`
	Tallies          []OptionTally `json:"tallies,omitempty"`
	TopOption        *OptionTally  `json:"top_option,omitempty"`
}
