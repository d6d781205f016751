package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

type stubCartStore struct {
	expired  []models.Cart
	findErr  error
	deleted  []uuid.UUID
	delErr   error
	cutoffAt time.Time
}

func (s *stubCartStore) FindExpiredCarts(_ context.Context, cutoff time.Time, _ int) ([]models.Cart, error) {
	s.cutoffAt = cutoff
	return s.expired, s.findErr
}

func (s *stubCartStore) Delete(_ context.Context, cartID uuid.UUID) error {
	if s.delErr != nil {
		return s.delErr
	}
	s.deleted = append(s.deleted, cartID)
	return nil
}

func TestCartExpiryJobDeletesEachExpiredCart(t *testing.T) {
	store := &stubCartStore{
		expired: []models.Cart{{ID: uuid.New()}, {ID: uuid.New()}},
	}
	job, err := NewCartExpiryJob(CartExpiryJobParams{Logger: quietLogger(), Carts: store})
	if err != nil {
		t.Fatalf("NewCartExpiryJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.deleted) != 2 {
		t.Fatalf("expected 2 deletes, got %d", len(store.deleted))
	}
	if store.cutoffAt.IsZero() {
		t.Fatal("expected the sweep cutoff to be passed through")
	}
}

func TestCartExpiryJobStopsOnDeleteError(t *testing.T) {
	store := &stubCartStore{
		expired: []models.Cart{{ID: uuid.New()}},
		delErr:  errors.New("db down"),
	}
	job, err := NewCartExpiryJob(CartExpiryJobParams{Logger: quietLogger(), Carts: store})
	if err != nil {
		t.Fatalf("NewCartExpiryJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected delete error to surface")
	}
}

func TestCartExpiryJobRequiresStore(t *testing.T) {
	if _, err := NewCartExpiryJob(CartExpiryJobParams{Logger: quietLogger()}); err == nil {
		t.Fatal("expected missing store error")
	}
}

type stubSweeper struct {
	reclaimErr  error
	expireErr   error
	reclaimed   int
	expired     int
	gotStuckTTL time.Duration
	gotBatch    int
}

func (s *stubSweeper) ReclaimExpiredHolds(_ context.Context, batchSize int) (int, error) {
	s.gotBatch = batchSize
	return s.reclaimed, s.reclaimErr
}

func (s *stubSweeper) ExpireStaleOrders(_ context.Context, stuckFor time.Duration, _ int) (int, error) {
	s.gotStuckTTL = stuckFor
	return s.expired, s.expireErr
}

func TestReservationExpiryJobSweepsHoldsAndOrders(t *testing.T) {
	sweeper := &stubSweeper{reclaimed: 3, expired: 1}
	job, err := NewReservationExpiryJob(ReservationExpiryJobParams{
		Logger:   quietLogger(),
		Orders:   sweeper,
		StuckTTL: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewReservationExpiryJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.gotStuckTTL != 30*time.Minute {
		t.Fatalf("stuck TTL = %v, want 30m", sweeper.gotStuckTTL)
	}
	if sweeper.gotBatch != defaultSweepBatchSize {
		t.Fatalf("batch size = %d, want default %d", sweeper.gotBatch, defaultSweepBatchSize)
	}
}

func TestReservationExpiryJobRunsBothPhasesDespiteErrors(t *testing.T) {
	sweeper := &stubSweeper{reclaimErr: errors.New("reclaim failed")}
	job, err := NewReservationExpiryJob(ReservationExpiryJobParams{
		Logger: quietLogger(),
		Orders: sweeper,
	})
	if err != nil {
		t.Fatalf("NewReservationExpiryJob: %v", err)
	}

	runErr := job.Run(context.Background())
	if runErr == nil {
		t.Fatal("expected reclaim error to surface")
	}
	// The stale-order phase still ran.
	if sweeper.gotStuckTTL != defaultCheckoutStuckTTL {
		t.Fatalf("expected stale-order phase to run with the default TTL, got %v", sweeper.gotStuckTTL)
	}
}

func TestReservationExpiryJobRequiresSweeper(t *testing.T) {
	if _, err := NewReservationExpiryJob(ReservationExpiryJobParams{Logger: quietLogger()}); err == nil {
		t.Fatal("expected missing sweeper error")
	}
}
