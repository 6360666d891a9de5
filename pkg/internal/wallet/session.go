package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	localCache "github.com/pollbridge/pollbridge/pkg/internal/cache"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/shopspring/decimal"
)

// Session is the wallet collaborator's view of a connected account. The
// connection itself lives in the user's wallet; pollbridge only ever sees
// the address the caller presents.
type Session struct {
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
}

var (
	sessionsLock sync.Mutex
	sessions     = make(map[string]Session)
)

// Touch records the account as a known session so the refresh schedule can
// keep its vote map warm, and returns the session.
func Touch(address string) Session {
	sessionsLock.Lock()
	defer sessionsLock.Unlock()

	session, ok := sessions[address]
	if !ok {
		session = Session{Address: address, Connected: true}
		sessions[address] = session
	}
	return session
}

func Disconnect(address string) {
	sessionsLock.Lock()
	defer sessionsLock.Unlock()
	delete(sessions, address)
}

// KnownAccounts lists every account seen this process lifetime.
func KnownAccounts() []string {
	sessionsLock.Lock()
	defer sessionsLock.Unlock()

	accounts := make([]string, 0, len(sessions))
	for address := range sessions {
		accounts = append(accounts, address)
	}
	return accounts
}

// BalanceSource is anything able to answer a balance query, in practice the
// contract gateway.
type BalanceSource interface {
	Balance(ctx context.Context, account string) (decimal.Decimal, error)
}

func getBalanceCacheKey(account string) string {
	return fmt.Sprintf("wallet-balance#%s", account)
}

// FetchBalance reads the session's spendable balance through the gateway,
// cached briefly so repeated fee checks don't hammer the node.
func FetchBalance(ctx context.Context, source BalanceSource, session Session) (decimal.Decimal, error) {
	if !session.Connected || len(session.Address) == 0 {
		return decimal.Zero, fmt.Errorf("wallet is not connected")
	}

	var marshal *marshaler.Marshaler
	if localCache.S != nil {
		marshal = marshaler.New(cache.New[any](localCache.S))

		if val, err := marshal.Get(ctx, getBalanceCacheKey(session.Address), new(string)); err == nil {
			if balance, err := decimal.NewFromString(*val.(*string)); err == nil {
				return balance, nil
			}
		}
	}

	balance, err := source.Balance(ctx, session.Address)
	if err != nil {
		return decimal.Zero, err
	}

	if marshal != nil {
		_ = marshal.Set(
			ctx,
			getBalanceCacheKey(session.Address),
			balance.String(),
			store.WithExpiration(30*time.Second),
			store.WithTags([]string{"wallet-balance", fmt.Sprintf("account#%s", session.Address)}),
		)
	}

	return balance, nil
}
