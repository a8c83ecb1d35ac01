package store

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ocpp-central/central-system/internal/domain"
)

// BreakerRepository wraps a Repository with a circuit breaker (sony/gobreaker)
// that opens after repeated failures of any kind (Transient or Permanent),
// so §7 retries stop reaching a database that is already down. This
// complements, not replaces, the retry policy: while the breaker is open,
// calls fail immediately with a *TransientError without touching the inner
// Repository, and the handlers' retry loop still applies to that error
// until the reset timeout elapses.
type BreakerRepository struct {
	inner   Repository
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerRepository wraps inner with a breaker that opens after 5
// consecutive failures and probes again after 10s.
func NewBreakerRepository(inner Repository) *BreakerRepository {
	settings := gobreaker.Settings{
		Name:    "repository",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerRepository{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func guard[T any](b *BreakerRepository, op func() (T, error)) (T, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return op()
	})
	if err != nil {
		var zero T
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return zero, &TransientError{Cause: err}
		}
		return zero, err
	}
	return res.(T), nil
}

func (b *BreakerRepository) UpsertStation(ctx context.Context, s *domain.Station) error {
	_, err := guard(b, func() (struct{}, error) { return struct{}{}, b.inner.UpsertStation(ctx, s) })
	return err
}

func (b *BreakerRepository) InsertBoot(ctx context.Context, stationID string, at time.Time) error {
	_, err := guard(b, func() (struct{}, error) { return struct{}{}, b.inner.InsertBoot(ctx, stationID, at) })
	return err
}

func (b *BreakerRepository) UpdateHeartbeat(ctx context.Context, stationID string, at time.Time) error {
	_, err := guard(b, func() (struct{}, error) { return struct{}{}, b.inner.UpdateHeartbeat(ctx, stationID, at) })
	return err
}

func (b *BreakerRepository) InsertStatus(ctx context.Context, rec StatusNotificationRecord) error {
	_, err := guard(b, func() (struct{}, error) { return struct{}{}, b.inner.InsertStatus(ctx, rec) })
	return err
}

func (b *BreakerRepository) LookupAuthorization(ctx context.Context, idTag string) (*domain.AuthorizationRecord, error) {
	return guard(b, func() (*domain.AuthorizationRecord, error) { return b.inner.LookupAuthorization(ctx, idTag) })
}

func (b *BreakerRepository) AllocateTransaction(ctx context.Context, tx *domain.Transaction) (int64, error) {
	return guard(b, func() (int64, error) { return b.inner.AllocateTransaction(ctx, tx) })
}

func (b *BreakerRepository) FindIdempotentTransaction(ctx context.Context, stationID string, connectorID int, idTag string, timestamp time.Time, window time.Duration) (*domain.Transaction, error) {
	return guard(b, func() (*domain.Transaction, error) {
		return b.inner.FindIdempotentTransaction(ctx, stationID, connectorID, idTag, timestamp, window)
	})
}

func (b *BreakerRepository) FinalizeTransaction(ctx context.Context, transactionID int64, meterStop int64, stopTime time.Time, reason string) (bool, bool, error) {
	type finalizeResult struct {
		found   bool
		clamped bool
	}
	res, err := guard(b, func() (finalizeResult, error) {
		found, clamped, err := b.inner.FinalizeTransaction(ctx, transactionID, meterStop, stopTime, reason)
		return finalizeResult{found: found, clamped: clamped}, err
	})
	return res.found, res.clamped, err
}

func (b *BreakerRepository) AppendMeterSamples(ctx context.Context, samples []domain.MeterSample) error {
	_, err := guard(b, func() (struct{}, error) { return struct{}{}, b.inner.AppendMeterSamples(ctx, samples) })
	return err
}

func (b *BreakerRepository) InsertFirmwareStatus(ctx context.Context, stationID, status string, at time.Time) error {
	_, err := guard(b, func() (struct{}, error) { return struct{}{}, b.inner.InsertFirmwareStatus(ctx, stationID, status, at) })
	return err
}

func (b *BreakerRepository) InsertDiagnosticsStatus(ctx context.Context, stationID, status string, at time.Time) error {
	_, err := guard(b, func() (struct{}, error) { return struct{}{}, b.inner.InsertDiagnosticsStatus(ctx, stationID, status, at) })
	return err
}

func (b *BreakerRepository) GetStation(ctx context.Context, stationID string) (*domain.Station, error) {
	return guard(b, func() (*domain.Station, error) { return b.inner.GetStation(ctx, stationID) })
}

func (b *BreakerRepository) ListStations(ctx context.Context) ([]*domain.Station, error) {
	return guard(b, func() ([]*domain.Station, error) { return b.inner.ListStations(ctx) })
}

func (b *BreakerRepository) Close() error { return b.inner.Close() }
