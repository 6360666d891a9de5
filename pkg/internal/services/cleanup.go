package services

import (
	"time"

	"github.com/pollbridge/pollbridge/pkg/internal/database"
	"github.com/pollbridge/pollbridge/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DoAutoDatabaseCleanup drops snapshot rows of polls that ended longer than
// the configured retention ago. Their tallies are final and cheap to
// re-read; keeping them around forever only bloats the cache.
func DoAutoDatabaseCleanup() {
	if database.C == nil {
		return
	}

	retention := viper.GetDuration("ledger.snapshot_retention")
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	deadline := time.Now().Add(-retention)

	log.Debug().Time("deadline", deadline).Msg("Now cleaning up expired poll snapshots...")

	var stale []uint32
	if err := database.C.Model(&models.PollSnapshot{}).
		Where("end_at < ?", deadline).
		Pluck("id", &stale).Error; err != nil {
		log.Error().Err(err).Msg("An error occurred when looking up expired poll snapshots.")
		return
	}
	if len(stale) == 0 {
		return
	}

	tx := database.C.Begin()
	tx.Delete(&models.PollSnapshot{}, "id IN ?", stale)
	tx.Delete(&models.VoteSnapshot{}, "poll_id IN ?", stale)
	if err := tx.Commit().Error; err != nil {
		log.Error().Err(err).Msg("An error occurred when cleaning up expired poll snapshots.")
		return
	}

	log.Info().Int("count", len(stale)).Msg("Cleaned up expired poll snapshots.")
}
