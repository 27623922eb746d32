package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	botdomain "github.com/meetbot/lifecycle-engine/internal/domain/bot"
	"github.com/meetbot/lifecycle-engine/internal/domain/engine"
	"github.com/meetbot/lifecycle-engine/internal/domain/heartbeat"
	"github.com/meetbot/lifecycle-engine/internal/domain/ids"
	"github.com/meetbot/lifecycle-engine/internal/domain/ledger"
	"github.com/meetbot/lifecycle-engine/internal/domain/recording"
	"github.com/meetbot/lifecycle-engine/internal/domain/webhook"
	"github.com/meetbot/lifecycle-engine/internal/infrastructure/persistence/models"
	apperr "github.com/meetbot/lifecycle-engine/pkg/errors"
)

// BotStore is the GORM-backed implementation of engine.Store and
// webhook.Store. One struct satisfies both ports since they share a
// database and a handful of tables (bots, recordings) between them.
type BotStore struct {
	db *gorm.DB
}

func NewBotStore(db *gorm.DB) *BotStore {
	return &BotStore{db: db}
}

var _ engine.Store = (*BotStore)(nil)
var _ webhook.Store = (*BotStore)(nil)

// ---- engine.Store ----

func (s *BotStore) LoadBotForUpdate(ctx context.Context, botID string) (*engine.BotSnapshot, error) {
	var m models.BotModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", botID).Error; err != nil {
		return nil, apperr.NewNotFoundError("bot not found: " + err.Error())
	}
	var org models.OrganizationModel
	if err := s.db.WithContext(ctx).First(&org, "id = ?", m.OrganizationID).Error; err != nil {
		return nil, apperr.NewInternalErrorWithCause("load organization", err)
	}
	return &engine.BotSnapshot{
		ID:             m.ID,
		State:          botdomain.State(m.State),
		Version:        m.Version,
		OrganizationID: m.OrganizationID,
		BillingEnabled: org.BillingEnabled,
		JoinAt:         m.JoinAt,
		Heartbeat:      heartbeat.Snapshot{First: m.FirstHeartbeatTimestamp, Last: m.LastHeartbeatTimestamp},
		RecordingKind:  recording.Kind(m.RecordingType),
	}, nil
}

func (s *BotStore) LastEvent(ctx context.Context, botID string) (*engine.EventRecord, error) {
	var m models.BotEventModel
	err := s.db.WithContext(ctx).Where("bot_id = ?", botID).Order("created_at DESC").First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewInternalErrorWithCause("load last event", err)
	}
	return eventModelToRecord(&m), nil
}

func (s *BotStore) CompareAndSwapState(ctx context.Context, botID string, expectedVersion int, newState botdomain.State, metadata map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.BotModel{}).
		Where("id = ? AND version = ?", botID, expectedVersion).
		Updates(map[string]any{"state": int(newState), "version": gorm.Expr("version + 1")})
	if res.Error != nil {
		return apperr.NewInternalErrorWithCause("compare-and-swap bot state", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewVersionConflictError(fmt.Sprintf("bot %s: version %d is stale", botID, expectedVersion))
	}
	return nil
}

// CreateBotParams provisions a new bot row. DeduplicationKey is optional;
// when set, the database's uq_bot_dedup_key partial unique index is what
// actually enforces "at most one non-post-meeting bot per project with this
// key" -- nothing is recomputed in application code.
type CreateBotParams struct {
	ObjectID         string
	ProjectID        string
	OrganizationID   string
	RecordingType    int
	JoinAt           *time.Time
	DeduplicationKey *string
	SettingsJSON     string
}

// CreateBot inserts a fresh bot in StateReady. A collision on
// uq_bot_dedup_key surfaces as apperr.CodeAlreadyExists rather than a raw
// constraint error.
func (s *BotStore) CreateBot(ctx context.Context, p CreateBotParams) (*engine.BotSnapshot, error) {
	m := models.BotModel{
		ID:               ids.New("bot"),
		ObjectID:         p.ObjectID,
		ProjectID:        p.ProjectID,
		OrganizationID:   p.OrganizationID,
		State:            int(botdomain.StateReady),
		Version:          1,
		RecordingType:    p.RecordingType,
		JoinAt:           p.JoinAt,
		DeduplicationKey: p.DeduplicationKey,
		SettingsJSON:     p.SettingsJSON,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isConstraintViolation(err) {
			return nil, apperr.NewAlreadyExistsError(fmt.Sprintf("project %s already has a non-post-meeting bot with deduplication_key %v", p.ProjectID, p.DeduplicationKey))
		}
		return nil, apperr.NewInternalErrorWithCause("create bot", err)
	}
	return s.LoadBotForUpdate(ctx, m.ID)
}

func (s *BotStore) InsertEvent(ctx context.Context, ev *engine.EventRecord) error {
	if ev.ID == "" {
		ev.ID = ids.New("evt")
	}
	metaJSON, err := json.Marshal(ev.Metadata)
	if err != nil {
		return apperr.NewInternalErrorWithCause("marshal event metadata", err)
	}
	var subkind *int
	if ev.Subkind != nil {
		v := int(*ev.Subkind)
		subkind = &v
	}
	m := models.BotEventModel{
		ID:           ev.ID,
		BotID:        ev.BotID,
		Kind:         int(ev.Kind),
		Subkind:      subkind,
		OldState:     int(ev.OldState),
		NewState:     int(ev.NewState),
		MetadataJSON: string(metaJSON),
		CreatedAt:    ev.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return apperr.NewInternalErrorWithCause("insert bot event", err)
	}
	return nil
}

// MarkRequestedActionTaken stamps requested_bot_action_taken_at on the given
// event, failing with CodeInvalidInput if it is already set -- this is the
// guard against recording the same requested action twice.
func (s *BotStore) MarkRequestedActionTaken(ctx context.Context, eventID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.BotEventModel{}).
		Where("id = ? AND requested_bot_action_taken_at IS NULL", eventID).
		Update("requested_bot_action_taken_at", at)
	if res.Error != nil {
		return apperr.NewInternalErrorWithCause("mark requested action taken", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewInvalidInputError(fmt.Sprintf("event %s: requested action already taken, or event does not exist", eventID))
	}
	return nil
}

func (s *BotStore) RecordingsInStates(ctx context.Context, botID string, states []recording.State) ([]engine.RecordingSnapshot, error) {
	ints := make([]int, len(states))
	for i, st := range states {
		ints[i] = int(st)
	}
	var rows []models.RecordingModel
	if err := s.db.WithContext(ctx).Where("bot_id = ? AND state IN ?", botID, ints).Find(&rows).Error; err != nil {
		return nil, apperr.NewInternalErrorWithCause("list recordings", err)
	}
	out := make([]engine.RecordingSnapshot, 0, len(rows))
	for _, r := range rows {
		snap, err := s.recordingSnapshot(ctx, &r)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *BotStore) RecordingsWithFailedTranscription(ctx context.Context, botID string) ([]engine.RecordingSnapshot, error) {
	var rows []models.RecordingModel
	if err := s.db.WithContext(ctx).Where("bot_id = ? AND transcription_state = ?", botID, int(recording.TranscriptionStateFailed)).Find(&rows).Error; err != nil {
		return nil, apperr.NewInternalErrorWithCause("list failed transcriptions", err)
	}
	out := make([]engine.RecordingSnapshot, 0, len(rows))
	for _, r := range rows {
		snap, err := s.recordingSnapshot(ctx, &r)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *BotStore) recordingSnapshot(ctx context.Context, r *models.RecordingModel) (engine.RecordingSnapshot, error) {
	var reasons []string
	if r.FailureReasonsJSON != "" {
		_ = json.Unmarshal([]byte(r.FailureReasonsJSON), &reasons)
	}
	var inProgressCount int64
	if err := s.db.WithContext(ctx).Model(&models.UtteranceModel{}).
		Where("recording_id = ? AND transcription IS NULL AND failure_data_json IS NULL", r.ID).
		Count(&inProgressCount).Error; err != nil {
		return engine.RecordingSnapshot{}, apperr.NewInternalErrorWithCause("count in-progress utterances", err)
	}
	return engine.RecordingSnapshot{
		ID:                     r.ID,
		State:                  recording.State(r.State),
		TranscriptionState:     recording.TranscriptionState(r.TranscriptionState),
		HasFile:                r.HasFile,
		HasInProgressUtterance: inProgressCount > 0,
		DistinctFailureReasons: reasons,
	}, nil
}

func (s *BotStore) SaveRecording(ctx context.Context, rec engine.RecordingSnapshot) error {
	reasonsJSON, err := json.Marshal(rec.DistinctFailureReasons)
	if err != nil {
		return apperr.NewInternalErrorWithCause("marshal failure reasons", err)
	}
	updates := map[string]any{
		"state":                int(rec.State),
		"transcription_state":  int(rec.TranscriptionState),
		"has_file":             rec.HasFile,
		"failure_reasons_json": string(reasonsJSON),
	}
	if rec.State == recording.StateInProgress {
		// Keep the first start time: resuming from Paused leaves it as is.
		updates["started_at"] = gorm.Expr("COALESCE(started_at, ?)", time.Now())
	}
	if recording.IsTerminalState(rec.State) {
		updates["completed_at"] = time.Now()
	}
	if err := s.db.WithContext(ctx).Model(&models.RecordingModel{}).Where("id = ?", rec.ID).Updates(updates).Error; err != nil {
		return apperr.NewInternalErrorWithCause("save recording", err)
	}
	return nil
}

// AppendLedgerTransaction books delta against the organization's balance,
// chaining off whatever transaction currently has no children. Concurrent
// writers racing for the same leaf collide on uq_child_transaction; this is
// retried up to ledger.MaxCreateRetries times before giving up, mirroring
// the source system's IntegrityError retry loop.
func (s *BotStore) AppendLedgerTransaction(ctx context.Context, orgID, botID string, delta int64, description string) error {
	var lastErr error
	for attempt := 0; attempt < ledger.MaxCreateRetries; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var org models.OrganizationModel
			if err := tx.First(&org, "id = ?", orgID).Error; err != nil {
				return err
			}

			var leaf models.CreditTransactionModel
			var leafID *string
			err := tx.Where("organization_id = ? AND id NOT IN (SELECT parent_transaction_id FROM credit_transactions WHERE parent_transaction_id IS NOT NULL)", orgID).
				First(&leaf).Error
			switch err {
			case nil:
				id := leaf.ID
				leafID = &id
			case gorm.ErrRecordNotFound:
				leafID = nil
			default:
				return err
			}

			txn, newBalance := ledger.NextTransaction(orgID, org.Centicredits, leafID, delta, &botID, nil, description)
			row := models.CreditTransactionModel{
				ID:                  ids.New("txn"),
				OrganizationID:      txn.OrganizationID,
				CentiBefore:         txn.CentibeforeBalance,
				CentiAfter:          txn.CentiAfterBalance,
				CentiDelta:          txn.CentiDelta,
				ParentTransactionID: txn.ParentTransactionID,
				BotID:               txn.BotID,
				Description:         txn.Description,
				CreatedAt:           time.Now(),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			return tx.Model(&models.OrganizationModel{}).Where("id = ?", orgID).Update("centicredits", newBalance).Error
		})
		if err == nil {
			return nil
		}
		if !isConstraintViolation(err) {
			return apperr.NewInternalErrorWithCause("append ledger transaction", err)
		}
		lastErr = err
	}
	return apperr.NewInvariantViolationError(fmt.Sprintf("ledger: exhausted %d retries appending to org %s: %v", ledger.MaxCreateRetries, orgID, lastErr))
}

// isConstraintViolation recognizes a unique-constraint collision across both
// supported drivers (postgres, sqlite) without importing their error types
// directly, since gorm doesn't normalize this across dialects.
func isConstraintViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "constraint")
}

// PurgeBotData implements the DATA_DELETED cascade: every row that hangs off
// a bot is removed except its BOT_STATE_CHANGE webhook delivery attempts,
// leaving those and the BotModel row itself (whose state is now
// DATA_DELETED) as a tombstone.
func (s *BotStore) PurgeBotData(ctx context.Context, botID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recordingIDs []string
		if err := tx.Model(&models.RecordingModel{}).Where("bot_id = ?", botID).Pluck("id", &recordingIDs).Error; err != nil {
			return err
		}
		if len(recordingIDs) > 0 {
			if err := tx.Where("recording_id IN ?", recordingIDs).Delete(&models.UtteranceModel{}).Error; err != nil {
				return err
			}
			if err := tx.Where("recording_id IN ?", recordingIDs).Delete(&models.AsyncTranscriptionModel{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("bot_id = ?", botID).Delete(&models.RecordingModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_id = ?", botID).Delete(&models.BotEventModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_id = ?", botID).
			Not(map[string]any{"trigger": int(webhook.TriggerBotStateChange)}).
			Delete(&models.WebhookDeliveryAttemptModel{}).Error; err != nil {
			return err
		}
		return nil
	})
}

// ---- webhook.Store ----

func (s *BotStore) SubscriptionsMatching(ctx context.Context, trigger webhook.TriggerType, botID string) ([]webhook.Subscription, error) {
	var bm models.BotModel
	if err := s.db.WithContext(ctx).First(&bm, "id = ?", botID).Error; err != nil {
		return nil, apperr.NewInternalErrorWithCause("load bot for webhook matching", err)
	}
	var rows []models.WebhookSubscriptionModel
	if err := s.db.WithContext(ctx).Where("project_id = ? AND is_active = ?", bm.ProjectID, true).Find(&rows).Error; err != nil {
		return nil, apperr.NewInternalErrorWithCause("list webhook subscriptions", err)
	}
	out := make([]webhook.Subscription, 0, len(rows))
	for _, r := range rows {
		var triggers []int
		_ = json.Unmarshal([]byte(r.TriggersJSON), &triggers)
		tt := make([]webhook.TriggerType, len(triggers))
		for i, v := range triggers {
			tt[i] = webhook.TriggerType(v)
		}
		sub := webhook.Subscription{
			ID:            r.ID,
			ProjectID:     r.ProjectID,
			BotID:         r.BotID,
			URL:           r.URL,
			Triggers:      tt,
			SigningSecret: r.SigningSecret,
			IsActive:      r.IsActive,
		}
		if sub.Matches(trigger, botID) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *BotStore) InsertAttempt(ctx context.Context, a *webhook.Attempt) error {
	if a.ID == "" {
		a.ID = ids.New("whd")
	}
	payloadJSON, err := json.Marshal(a.Payload)
	if err != nil {
		return apperr.NewInternalErrorWithCause("marshal webhook payload", err)
	}
	respJSON, _ := json.Marshal(a.ResponseBodies)
	m := models.WebhookDeliveryAttemptModel{
		ID:                 a.ID,
		SubscriptionID:     a.SubscriptionID,
		Trigger:            int(a.Trigger),
		IdempotencyKey:     a.IdempotencyKey,
		BotID:              a.BotID,
		PayloadJSON:        string(payloadJSON),
		Status:             int(a.Status),
		AttemptCount:       a.AttemptCount,
		ResponseBodiesJSON: string(respJSON),
		CreatedAt:          time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return apperr.NewInternalErrorWithCause("insert webhook delivery attempt", err)
	}
	return nil
}

func (s *BotStore) SaveAttempt(ctx context.Context, a *webhook.Attempt) error {
	respJSON, _ := json.Marshal(a.ResponseBodies)
	updates := map[string]any{
		"status":               int(a.Status),
		"attempt_count":        a.AttemptCount,
		"response_bodies_json": string(respJSON),
	}
	if a.LastAttemptAt != nil {
		updates["last_attempt_at"] = *a.LastAttemptAt
	}
	if a.SucceededAt != nil {
		updates["succeeded_at"] = *a.SucceededAt
	}
	if err := s.db.WithContext(ctx).Model(&models.WebhookDeliveryAttemptModel{}).Where("id = ?", a.ID).Updates(updates).Error; err != nil {
		return apperr.NewInternalErrorWithCause("save webhook delivery attempt", err)
	}
	return nil
}

func eventModelToRecord(m *models.BotEventModel) *engine.EventRecord {
	var meta map[string]any
	_ = json.Unmarshal([]byte(m.MetadataJSON), &meta)
	var subkind *botdomain.Subkind
	if m.Subkind != nil {
		v := botdomain.Subkind(*m.Subkind)
		subkind = &v
	}
	return &engine.EventRecord{
		ID:                     m.ID,
		BotID:                  m.BotID,
		Kind:                   botdomain.EventKind(m.Kind),
		Subkind:                subkind,
		OldState:               botdomain.State(m.OldState),
		NewState:               botdomain.State(m.NewState),
		Metadata:               meta,
		CreatedAt:              m.CreatedAt,
		RequestedActionTakenAt: m.RequestedBotActionTakenAt,
	}
}
