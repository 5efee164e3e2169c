package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/craftandcart/shopfront-backend/internal/snapshot"
	dbpkg "github.com/craftandcart/shopfront-backend/pkg/db"
	"github.com/craftandcart/shopfront-backend/pkg/db/models"
	"github.com/craftandcart/shopfront-backend/pkg/enums"
	"github.com/craftandcart/shopfront-backend/pkg/logger"
	"github.com/craftandcart/shopfront-backend/pkg/outbox"
)

func newSweepTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cron_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.CartSnapshot{},
		&models.CartSnapshotItem{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate tables: %v", err)
	}
	return db
}

func newSweepJob(t *testing.T, db *gorm.DB) *snapshotSweepJob {
	t.Helper()
	jobIface, err := NewSnapshotSweepJob(SnapshotSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:         dbpkg.NewFromConn(db),
		Repository: snapshot.NewRepository(db),
		Outbox:     outbox.NewService(outbox.NewRepository(db), nil),
		BatchSize:  10,
	})
	if err != nil {
		t.Fatalf("NewSnapshotSweepJob: %v", err)
	}
	job, ok := jobIface.(*snapshotSweepJob)
	if !ok {
		t.Fatalf("expected snapshotSweepJob, got %T", jobIface)
	}
	return job
}

func seedSweepSnapshot(t *testing.T, db *gorm.DB, token string, expiresAt time.Time) *models.CartSnapshot {
	t.Helper()
	snap := &models.CartSnapshot{
		Token:        token,
		CustomerKind: enums.CustomerKindGuest,
		Currency:     enums.CurrencyEUR,
		ExpiresAt:    expiresAt,
	}
	if err := db.Create(snap).Error; err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	return snap
}

func TestSnapshotSweepDiscardsExpired(t *testing.T) {
	now := time.Now()
	db := newSweepTestDB(t)
	job := newSweepJob(t, db)
	job.now = func() time.Time { return now }

	seedSweepSnapshot(t, db, "stale-1", now.Add(-time.Hour))
	seedSweepSnapshot(t, db, "stale-2", now.Add(-time.Minute))
	seedSweepSnapshot(t, db, "live-1", now.Add(time.Hour))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var discarded int64
	if err := db.Model(&models.CartSnapshot{}).Where("discarded_at IS NOT NULL").Count(&discarded).Error; err != nil {
		t.Fatalf("count discarded: %v", err)
	}
	if discarded != 2 {
		t.Fatalf("expected 2 discarded snapshots, got %d", discarded)
	}

	var live models.CartSnapshot
	if err := db.First(&live, "token = ?", "live-1").Error; err != nil {
		t.Fatalf("load live snapshot: %v", err)
	}
	if live.DiscardedAt != nil {
		t.Fatal("expected live snapshot untouched")
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventSnapshotExpired).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 2 {
		t.Fatalf("expected 2 expiry events, got %d", events)
	}
}

func TestSnapshotSweepSecondRunIsNoOp(t *testing.T) {
	now := time.Now()
	db := newSweepTestDB(t)
	job := newSweepJob(t, db)
	job.now = func() time.Time { return now }

	seedSweepSnapshot(t, db, "stale-1", now.Add(-time.Hour))

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected a single expiry event after repeat runs, got %d", events)
	}
}

func TestSnapshotSweepDrainsBeyondBatchSize(t *testing.T) {
	now := time.Now()
	db := newSweepTestDB(t)
	job := newSweepJob(t, db)
	job.now = func() time.Time { return now }
	job.batchSize = 2

	for _, token := range []string{"a", "b", "c", "d", "e"} {
		seedSweepSnapshot(t, db, token, now.Add(-time.Hour))
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var remaining int64
	if err := db.Model(&models.CartSnapshot{}).Where("discarded_at IS NULL").Count(&remaining).Error; err != nil {
		t.Fatalf("count remaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected all snapshots swept, got %d remaining", remaining)
	}
}
