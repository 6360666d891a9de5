package services

import (
	"context"
	"fmt"
	"time"

	localCache "github.com/pollbridge/pollbridge/pkg/internal/cache"
	"github.com/pollbridge/pollbridge/pkg/internal/models"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/samber/lo/parallel"
)

func getPollTalliesCacheKey(pollId uint32) string {
	return fmt.Sprintf("poll-tallies#%d", pollId)
}

// FetchPollTallies reads the per-option vote counts of an ended poll, one
// concurrent view call per option. Results are cached; an ended poll's
// tallies never change again.
func FetchPollTallies(ctx context.Context, source Ledger, poll models.Poll) ([]models.OptionTally, error) {
	var marshal *marshaler.Marshaler
	if localCache.S != nil {
		marshal = marshaler.New(cache.New[any](localCache.S))

		if val, err := marshal.Get(ctx, getPollTalliesCacheKey(poll.ID), new([]models.OptionTally)); err == nil {
			return *val.(*[]models.OptionTally), nil
		}
	}

	type fetched struct {
		tally models.OptionTally
		err   error
	}

	results := parallel.Map(poll.Options, func(label string, idx int) fetched {
		optionId := uint32(idx + 1)
		count, err := source.OptionVotes(ctx, poll.ID, optionId)
		return fetched{
			tally: models.OptionTally{OptionID: optionId, Label: label, VotesCount: count},
			err:   err,
		}
	})

	tallies := make([]models.OptionTally, 0, len(results))
	for _, result := range results {
		if result.err != nil {
			return nil, fmt.Errorf("failed to fetch option votes of poll %d: %v", poll.ID, result.err)
		}
		tallies = append(tallies, result.tally)
	}

	if marshal != nil {
		_ = marshal.Set(
			ctx,
			getPollTalliesCacheKey(poll.ID),
			tallies,
			store.WithExpiration(24*time.Hour),
			store.WithTags([]string{"poll-tallies", fmt.Sprintf("poll#%d", poll.ID)}),
		)
	}

	return tallies, nil
}
