package persistence

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/meetbot/lifecycle-engine/internal/domain/bot"
	"github.com/meetbot/lifecycle-engine/internal/domain/engine"
	"github.com/meetbot/lifecycle-engine/internal/infrastructure/persistence/models"
	apperr "github.com/meetbot/lifecycle-engine/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.OrganizationModel{},
		&models.ProjectModel{},
		&models.BotModel{},
		&models.BotEventModel{},
		&models.RecordingModel{},
		&models.UtteranceModel{},
		&models.CreditTransactionModel{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestCreateBot_RejectsDuplicateDeduplicationKeyWithinProject(t *testing.T) {
	db := newTestDB(t)
	store := NewBotStore(db)
	ctx := context.Background()

	if err := db.Create(&models.OrganizationModel{ID: "org_1"}).Error; err != nil {
		t.Fatalf("seed org: %v", err)
	}

	key := "calendar-event-42"
	if _, err := store.CreateBot(ctx, CreateBotParams{ObjectID: "bot_a", ProjectID: "proj_1", OrganizationID: "org_1", DeduplicationKey: &key}); err != nil {
		t.Fatalf("unexpected error creating first bot: %v", err)
	}

	_, err := store.CreateBot(ctx, CreateBotParams{ObjectID: "bot_b", ProjectID: "proj_1", OrganizationID: "org_1", DeduplicationKey: &key})
	if !apperr.IsAlreadyExists(err) {
		t.Fatalf("expected already-exists error for duplicate dedup key, got %v", err)
	}
}

func TestCreateBot_AllowsSameKeyInDifferentProjects(t *testing.T) {
	db := newTestDB(t)
	store := NewBotStore(db)
	ctx := context.Background()
	db.Create(&models.OrganizationModel{ID: "org_1"})

	key := "calendar-event-42"
	if _, err := store.CreateBot(ctx, CreateBotParams{ObjectID: "bot_a", ProjectID: "proj_1", OrganizationID: "org_1", DeduplicationKey: &key}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.CreateBot(ctx, CreateBotParams{ObjectID: "bot_b", ProjectID: "proj_2", OrganizationID: "org_1", DeduplicationKey: &key}); err != nil {
		t.Fatalf("expected dedup key reuse across projects to be allowed, got %v", err)
	}
}

func TestCreateBot_AllowsSameKeyOnceFirstBotIsPostMeeting(t *testing.T) {
	db := newTestDB(t)
	store := NewBotStore(db)
	ctx := context.Background()
	db.Create(&models.OrganizationModel{ID: "org_1"})

	key := "calendar-event-42"
	first, err := store.CreateBot(ctx, CreateBotParams{ObjectID: "bot_a", ProjectID: "proj_1", OrganizationID: "org_1", DeduplicationKey: &key})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.Model(&models.BotModel{}).Where("id = ?", first.ID).Update("state", int(bot.StateEnded)).Error; err != nil {
		t.Fatalf("advance bot to ended: %v", err)
	}

	if _, err := store.CreateBot(ctx, CreateBotParams{ObjectID: "bot_b", ProjectID: "proj_1", OrganizationID: "org_1", DeduplicationKey: &key}); err != nil {
		t.Fatalf("expected reuse of dedup key once prior bot reached a post-meeting state, got %v", err)
	}
}

func TestMarkRequestedActionTaken_RejectsDoubleStamp(t *testing.T) {
	db := newTestDB(t)
	store := NewBotStore(db)
	ctx := context.Background()
	db.Create(&models.OrganizationModel{ID: "org_1"})
	snap, err := store.CreateBot(ctx, CreateBotParams{ObjectID: "bot_a", ProjectID: "proj_1", OrganizationID: "org_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := &engine.EventRecord{
		BotID:     snap.ID,
		Kind:      bot.EventJoinRequested,
		OldState:  bot.StateReady,
		NewState:  bot.StateJoining,
		CreatedAt: time.Now(),
	}
	if err := store.InsertEvent(ctx, ev); err != nil {
		t.Fatalf("insert event: %v", err)
	}

	if err := store.MarkRequestedActionTaken(ctx, ev.ID, time.Now()); err != nil {
		t.Fatalf("unexpected error on first stamp: %v", err)
	}
	if err := store.MarkRequestedActionTaken(ctx, ev.ID, time.Now()); !apperr.IsInvalidInput(err) {
		t.Fatalf("expected invalid input on double stamp, got %v", err)
	}
}
