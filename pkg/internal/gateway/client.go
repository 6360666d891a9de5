package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pollbridge/pollbridge/pkg/internal/models"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// TxHandle identifies a submitted transaction. Holding one only means the
// node accepted the transaction for broadcast, never that it is final.
type TxHandle string

// Client talks JSON-RPC to the ledger node that fronts the poll contract.
type Client struct {
	endpoint string
	contract string
	client   *http.Client

	seq uint64
}

func NewClient() *Client {
	return &Client{
		endpoint: viper.GetString("ledger.endpoint"),
		contract: viper.GetString("ledger.contract"),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	Jsonrpc string    `json:"jsonrpc"`
	ID      uint64    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Contract string `json:"contract"`
	From     string `json:"from,omitempty"`
	Value    string `json:"value,omitempty"`
	Args     []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Short string `json:"short"`
	} `json:"data"`
}

func (v *Client) call(ctx context.Context, op Op, from string, value decimal.Decimal, args []any, out any) error {
	if args == nil {
		args = []any{}
	}

	payload := rpcRequest{
		Jsonrpc: "2.0",
		ID:      atomic.AddUint64(&v.seq, 1),
		Method:  op.String(),
		Params: rpcParams{
			Contract: v.contract,
			From:     from,
			Args:     args,
		},
	}
	if op.Mutates() && value.IsPositive() {
		payload.Params.Value = value.String()
	}

	raw, err := jsoniter.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %v", err)
	}

	log.Debug().Str("op", op.String()).Str("endpoint", v.endpoint).Msg("Calling the ledger node...")

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(raw))
	if err != nil {
		return &Error{Op: op, Message: err.Error()}
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(request)
	if err != nil {
		return &Error{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Message: fmt.Sprintf("failed to read response body: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{Op: op, Message: fmt.Sprintf("unexpected status code: %d, response: %s", resp.StatusCode, body)}
	}

	var reply rpcResponse
	if err := jsoniter.Unmarshal(body, &reply); err != nil {
		return &Error{Op: op, Message: fmt.Sprintf("failed to parse response JSON: %v", err)}
	}
	if reply.Error != nil {
		return &Error{Op: op, Short: reply.Error.Data.Short, Message: reply.Error.Message}
	}

	if out != nil {
		if err := jsoniter.Unmarshal(reply.Result, out); err != nil {
			return &Error{Op: op, Message: fmt.Sprintf("failed to parse result JSON: %v", err)}
		}
	}

	return nil
}

// read performs a view call. View calls never attach a session or a value.
func (v *Client) read(ctx context.Context, op Op, args []any, out any) error {
	return v.call(ctx, op, "", decimal.Zero, args, out)
}

// write submits a fee-bearing transaction on behalf of from and resolves
// once the node accepted it for broadcast.
func (v *Client) write(ctx context.Context, op Op, from string, value decimal.Decimal, args []any) (TxHandle, error) {
	if len(from) == 0 {
		return "", ErrUnauthenticated
	}

	var hash string
	if err := v.call(ctx, op, from, value, args, &hash); err != nil {
		return "", err
	}

	log.Debug().Str("op", op.String()).Str("tx", hash).Msg("Transaction submitted to the ledger.")

	return TxHandle(hash), nil
}

// wirePoll is the poll tuple as the contract returns it.
type wirePoll struct {
	Owner      string   `json:"owner"`
	VotesCount uint32   `json:"votesCount"`
	ID         uint32   `json:"id"`
	EndTime    int64    `json:"endTime"`
	Title      string   `json:"title"`
	Options    []string `json:"options"`
}

func (p wirePoll) toPoll() models.Poll {
	return models.Poll{
		ID:         p.ID,
		Owner:      p.Owner,
		Title:      p.Title,
		Options:    p.Options,
		EndAt:      time.Unix(p.EndTime, 0),
		VotesCount: p.VotesCount,
	}
}

func (v *Client) ActivePolls(ctx context.Context) ([]models.Poll, error) {
	var out []wirePoll
	if err := v.read(ctx, OpGetActivePolls, nil, &out); err != nil {
		return nil, err
	}
	return lo.Map(out, func(item wirePoll, _ int) models.Poll {
		return item.toPoll()
	}), nil
}

func (v *Client) AllPolls(ctx context.Context) ([]models.Poll, error) {
	var out []wirePoll
	if err := v.read(ctx, OpGetAllPolls, nil, &out); err != nil {
		return nil, err
	}
	return lo.Map(out, func(item wirePoll, _ int) models.Poll {
		return item.toPoll()
	}), nil
}

func (v *Client) AllPollsCount(ctx context.Context) (uint32, error) {
	var out uint32
	err := v.read(ctx, OpAllPollsCount, nil, &out)
	return out, err
}

func (v *Client) ActivePollsCount(ctx context.Context) (uint32, error) {
	var out uint32
	err := v.read(ctx, OpActivePollsCount, nil, &out)
	return out, err
}

// UserVotes reads the given account's vote records. The account is always
// explicit; nothing here relies on ambient session state.
func (v *Client) UserVotes(ctx context.Context, account string) ([]models.VoteRecord, error) {
	var out [][2]uint32
	if err := v.read(ctx, OpGetUserVotes, []any{account}, &out); err != nil {
		return nil, err
	}
	return lo.Map(out, func(pair [2]uint32, _ int) models.VoteRecord {
		return models.VoteRecord{PollID: pair[0], OptionID: pair[1]}
	}), nil
}

func (v *Client) UserVotesLength(ctx context.Context, account string) (uint64, error) {
	var out uint64
	err := v.read(ctx, OpGetUserVotesLength, []any{account}, &out)
	return out, err
}

func (v *Client) OptionVotes(ctx context.Context, pollId, optionId uint32) (uint32, error) {
	var out uint32
	err := v.read(ctx, OpGetOptionVotes, []any{pollId, optionId}, &out)
	return out, err
}

func (v *Client) PollExists(ctx context.Context, pollId uint32) (bool, error) {
	var out bool
	err := v.read(ctx, OpIsPollExist, []any{pollId}, &out)
	return out, err
}

func (v *Client) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	var out string
	if err := v.read(ctx, OpGetBalance, []any{account}, &out); err != nil {
		return decimal.Zero, err
	}
	balance, err := decimal.NewFromString(out)
	if err != nil {
		return decimal.Zero, &Error{Op: OpGetBalance, Message: fmt.Sprintf("malformed balance %q: %v", out, err)}
	}
	return balance, nil
}

func (v *Client) CreatePoll(ctx context.Context, from string, value decimal.Decimal, title string, options []string, durationDays uint32) (TxHandle, error) {
	return v.write(ctx, OpCreateNewPoll, from, value, []any{title, options, durationDays})
}

func (v *Client) Vote(ctx context.Context, from string, value decimal.Decimal, pollId, optionId uint32) (TxHandle, error) {
	return v.write(ctx, OpVote, from, value, []any{pollId, optionId})
}

func (v *Client) DeletePoll(ctx context.Context, from string, value decimal.Decimal, pollId uint32) (TxHandle, error) {
	return v.write(ctx, OpDeletePoll, from, value, []any{pollId})
}
