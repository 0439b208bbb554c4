package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
)

const (
	defaultGuestCartRetention = 30 * 24 * time.Hour
	defaultGuestCartBatchSize = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type guestCartSweepRepo interface {
	SweepGuestCarts(ctx context.Context, tx *gorm.DB, before time.Time, limit int) (int64, error)
}

// GuestCartSweepJobParams configure the guest cart sweep.
type GuestCartSweepJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository guestCartSweepRepo
	Retention  time.Duration
	BatchSize  int
	Metrics    *metrics.CronJobMetrics
}

// NewGuestCartSweepJob builds the job that deletes guest carts nobody has
// touched within the retention window. The default window matches the
// lifetime of the guest cookie, so a swept cart is one no client can still
// present.
func NewGuestCartSweepJob(params GuestCartSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultGuestCartRetention
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultGuestCartBatchSize
	}
	return &guestCartSweepJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		batchSize: batch,
		metrics:   params.Metrics,
		now:       time.Now,
	}, nil
}

type guestCartSweepJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      guestCartSweepRepo
	retention time.Duration
	batchSize int
	metrics   *metrics.CronJobMetrics
	now       func() time.Time
}

func (j *guestCartSweepJob) Name() string { return "guest-cart-sweep" }

func (j *guestCartSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var deleted int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			rows, err := j.repo.SweepGuestCarts(ctx, tx, cutoff, j.batchSize)
			if err != nil {
				return err
			}
			deleted = rows
			return nil
		})
		if err != nil {
			return fmt.Errorf("guest cart sweep: %w", err)
		}
		total += deleted
		j.metrics.AddAffected(j.Name(), deleted)
		if deleted < int64(j.batchSize) {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"retention":   j.retention.String(),
		"carts_swept": total,
		"batch_size":  j.batchSize,
	})
	j.logg.Info(logCtx, "guest cart sweep complete")
	return nil
}
