package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/meetbot/lifecycle-engine/internal/domain/heartbeat"
	"github.com/meetbot/lifecycle-engine/internal/infrastructure/persistence/models"
	apperr "github.com/meetbot/lifecycle-engine/pkg/errors"
)

// SetHeartbeat folds a heartbeat observation into the bot row, retrying on
// optimistic version conflicts up to heartbeat.MaxSetHeartbeatRetries times,
// the same budget the source system gives bot.set_heartbeat().
func (s *BotStore) SetHeartbeat(ctx context.Context, botID string, currentTimestamp int64) error {
	var lastErr error
	for attempt := 0; attempt < heartbeat.MaxSetHeartbeatRetries; attempt++ {
		var m models.BotModel
		if err := s.db.WithContext(ctx).First(&m, "id = ?", botID).Error; err != nil {
			return apperr.NewNotFoundError("bot not found: " + err.Error())
		}

		snap := heartbeat.Snapshot{First: m.FirstHeartbeatTimestamp, Last: m.LastHeartbeatTimestamp}
		heartbeat.Observe(&snap, currentTimestamp)

		res := s.db.WithContext(ctx).Model(&models.BotModel{}).
			Where("id = ? AND version = ?", botID, m.Version).
			Updates(map[string]any{
				"first_heartbeat_timestamp": snap.First,
				"last_heartbeat_timestamp":  snap.Last,
				"version":                   gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return apperr.NewInternalErrorWithCause("set heartbeat", res.Error)
		}
		if res.RowsAffected == 1 {
			return nil
		}
		lastErr = fmt.Errorf("version %d was stale", m.Version)
	}
	return apperr.NewVersionConflictError(fmt.Sprintf("bot %s: exhausted heartbeat retries: %v", botID, lastErr))
}
