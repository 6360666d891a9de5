package gateway

// Op is the closed set of contract operations. Every call the ledger
// contract exposes has exactly one variant here; there is no free-form
// function name anywhere on the write path.
type Op int

const (
	OpGetActivePolls Op = iota
	OpGetAllPolls
	OpAllPollsCount
	OpActivePollsCount
	OpGetUserVotes
	OpGetUserVotesLength
	OpGetOptionVotes
	OpIsPollExist
	OpGetBalance
	OpGetReceipt
	OpCreateNewPoll
	OpVote
	OpDeletePoll
)

var opNames = map[Op]string{
	OpGetActivePolls:     "getActivePolls",
	OpGetAllPolls:        "getAllPolls",
	OpAllPollsCount:      "allPollsCount",
	OpActivePollsCount:   "activePollsCount",
	OpGetUserVotes:       "getUserVotes",
	OpGetUserVotesLength: "getUserVotesLength",
	OpGetOptionVotes:     "getOptionVotes",
	OpIsPollExist:        "isPollExist",
	OpGetBalance:         "eth_getBalance",
	OpGetReceipt:         "eth_getTransactionReceipt",
	OpCreateNewPoll:      "createNewPoll",
	OpVote:               "vote",
	OpDeletePoll:         "deletePoll",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "unknown"
}

// Mutates reports whether the operation is fee-bearing and side-effecting on
// the ledger. Everything else is a plain view call.
func (op Op) Mutates() bool {
	switch op {
	case OpCreateNewPoll, OpVote, OpDeletePoll:
		return true
	default:
		return false
	}
}
