package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/logger"
)

type expiredCartStore interface {
	FindExpiredCarts(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error)
	Delete(ctx context.Context, cartID uuid.UUID) error
}

// CartExpiryJobParams configure the cart reaper.
type CartExpiryJobParams struct {
	Logger    *logger.Logger
	Carts     expiredCartStore
	BatchSize int
}

// NewCartExpiryJob builds the cron job that deletes active carts whose
// TTL lapsed. Converted carts are kept as history and carts locked in
// checkout belong to the order sweeper, so neither is touched here.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart store required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &cartExpiryJob{
		logg:      params.Logger,
		carts:     params.Carts,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type cartExpiryJob struct {
	logg      *logger.Logger
	carts     expiredCartStore
	batchSize int
	now       func() time.Time
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	expired, err := j.carts.FindExpiredCarts(ctx, j.now().UTC(), j.batchSize)
	if err != nil {
		return fmt.Errorf("query expired carts: %w", err)
	}

	deleted := 0
	for i := range expired {
		if err := j.carts.Delete(ctx, expired[i].ID); err != nil {
			return fmt.Errorf("delete expired cart %s: %w", expired[i].ID, err)
		}
		deleted++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": deleted})
	j.logg.Info(logCtx, "cart expiry sweep complete")
	return nil
}
