package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/mercura-io/storefront-backend/pkg/logger"
)

const (
	defaultSweepBatchSize   = 100
	defaultCheckoutStuckTTL = time.Hour
)

type orderSweeper interface {
	ReclaimExpiredHolds(ctx context.Context, batchSize int) (int, error)
	ExpireStaleOrders(ctx context.Context, stuckFor time.Duration, batchSize int) (int, error)
}

// ReservationExpiryJobParams configure the hold sweeper.
type ReservationExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    orderSweeper
	StuckTTL  time.Duration
	BatchSize int
}

// NewReservationExpiryJob builds the cron job that returns lapsed
// inventory holds to the pool and reaps orders stuck awaiting payment.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order sweeper required")
	}
	stuckTTL := params.StuckTTL
	if stuckTTL <= 0 {
		stuckTTL = defaultCheckoutStuckTTL
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &reservationExpiryJob{
		logg:      params.Logger,
		orders:    params.Orders,
		stuckTTL:  stuckTTL,
		batchSize: batchSize,
	}, nil
}

type reservationExpiryJob struct {
	logg      *logger.Logger
	orders    orderSweeper
	stuckTTL  time.Duration
	batchSize int
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	var errs []error

	reclaimed, err := j.orders.ReclaimExpiredHolds(ctx, j.batchSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("reclaim expired holds: %w", err))
	}

	expired, err := j.orders.ExpireStaleOrders(ctx, j.stuckTTL, j.batchSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("expire stale orders: %w", err))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"holds_reclaimed": reclaimed,
		"orders_expired":  expired,
	})
	j.logg.Info(logCtx, "reservation expiry sweep complete")
	return multierr.Combine(errs...)
}
