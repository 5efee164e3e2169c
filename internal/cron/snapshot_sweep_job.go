package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/craftandcart/shopfront-backend/internal/snapshot"
	"github.com/craftandcart/shopfront-backend/pkg/enums"
	"github.com/craftandcart/shopfront-backend/pkg/logger"
	"github.com/craftandcart/shopfront-backend/pkg/outbox"
	"github.com/craftandcart/shopfront-backend/pkg/outbox/payloads"
)

const snapshotSweepBatchSize = 200

// txRunner abstracts the transactional entry point of the db client.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type expiredEventEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type SnapshotSweepJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository snapshot.Repository
	Outbox     expiredEventEmitter
	BatchSize  int
}

// NewSnapshotSweepJob builds the job that discards cart snapshots past their
// TTL and queues an expiry event for each one.
func NewSnapshotSweepJob(params SnapshotSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("snapshot repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = snapshotSweepBatchSize
	}
	return &snapshotSweepJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		events:    params.Outbox,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type snapshotSweepJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      snapshot.Repository
	events    expiredEventEmitter
	batchSize int
	now       func() time.Time
}

func (j *snapshotSweepJob) Name() string { return "snapshot-sweep" }

func (j *snapshotSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	var swept int
	for {
		count, err := j.sweepBatch(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("snapshot sweep: %w", err)
		}
		swept += count
		if count < j.batchSize {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"rows_discarded": swept,
	})
	j.logg.Info(logCtx, "snapshot sweep complete")
	return nil
}

// sweepBatch discards one batch inside a single transaction so each
// snapshot's discard commits together with its expiry event.
func (j *snapshotSweepJob) sweepBatch(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)
		expired, err := repo.FindExpired(ctx, cutoff, j.batchSize)
		if err != nil {
			return err
		}
		count = len(expired)

		var errs error
		for _, snap := range expired {
			if err := repo.Discard(ctx, snap.Token, cutoff); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("discard %s: %w", snap.Token, err))
				continue
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventSnapshotExpired,
				AggregateType: enums.AggregateCartSnapshot,
				AggregateID:   snap.ID,
				Data: payloads.SnapshotExpiredEvent{
					SnapshotID: snap.ID,
					Token:      snap.Token,
					ExpiredAt:  snap.ExpiresAt,
				},
				Version:    1,
				OccurredAt: cutoff,
			}
			if err := j.events.EmitIfNotExists(ctx, tx, event); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("emit expiry for %s: %w", snap.Token, err))
			}
		}
		return errs
	})
	return count, err
}
