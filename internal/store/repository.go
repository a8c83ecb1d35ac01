// Package store defines the narrow persistence interface (component F) the
// Action Handlers depend on, plus the Transient/Permanent error
// classification the retry policy in section 7 keys off of. Concrete
// storage lives in internal/store/postgres.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ocpp-central/central-system/internal/domain"
)

// TransientError wraps a retryable failure (connection drop, deadlock,
// serialization failure). Callers retry per the 100ms/400ms/1.6s backoff.
type TransientError struct{ Cause error }

func (e *TransientError) Error() string { return fmt.Sprintf("transient store error: %v", e.Cause) }
func (e *TransientError) Unwrap() error { return e.Cause }

// PermanentError wraps a non-retryable failure (constraint violation, bad
// input). Callers surface it as CallError(InternalError) immediately.
type PermanentError struct{ Cause error }

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent store error: %v", e.Cause) }
func (e *PermanentError) Unwrap() error { return e.Cause }

// StatusNotificationRecord is one row of the append-only status_history log.
type StatusNotificationRecord struct {
	StationID   string
	ConnectorID int
	Status      string
	ErrorCode   string
	Timestamp   time.Time
}

// Repository is the narrow interface Action Handlers are written against.
// All methods may return a *TransientError or *PermanentError.
type Repository interface {
	// UpsertStation creates or updates a Station's boot-derived attributes.
	UpsertStation(ctx context.Context, s *domain.Station) error
	// InsertBoot records a boot_events row for station.
	InsertBoot(ctx context.Context, stationID string, at time.Time) error
	// UpdateHeartbeat sets stations.last_heartbeat_at and appends a heartbeats row.
	UpdateHeartbeat(ctx context.Context, stationID string, at time.Time) error
	// InsertStatus performs the dual write described in Design Note 9: one
	// status_history row and an update to the connector's denormalized
	// status, within a single repository transaction.
	InsertStatus(ctx context.Context, rec StatusNotificationRecord) error
	// LookupAuthorization returns the AuthorizationRecord for idTag, or
	// (nil, nil) if the tag is unknown.
	LookupAuthorization(ctx context.Context, idTag string) (*domain.AuthorizationRecord, error)
	// AllocateTransaction atomically assigns the next transaction id (a
	// database sequence, never an in-memory counter — see Design Note 9) and
	// inserts the open row in the same statement.
	AllocateTransaction(ctx context.Context, tx *domain.Transaction) (int64, error)
	// FindIdempotentTransaction returns an existing transaction (open or
	// stopped) for (stationID, connectorID, idTag) whose start time lies
	// within window of timestamp, or (nil, nil) if none exists.
	FindIdempotentTransaction(ctx context.Context, stationID string, connectorID int, idTag string, timestamp time.Time, window time.Duration) (*domain.Transaction, error)
	// FinalizeTransaction sets MeterStop/StopTime/Reason on an existing
	// transaction. Unknown transactionID returns (false, false, nil) — callers
	// still respond Accepted per OCPP 1.6 Figure 4.4.3. meterStop is clamped to
	// the transaction's start value before being stored (a negative derived
	// total_energy is never persisted); clamped reports whether that happened
	// so the caller can log it.
	FinalizeTransaction(ctx context.Context, transactionID int64, meterStop int64, stopTime time.Time, reason string) (found bool, clamped bool, err error)
	// AppendMeterSamples persists a batch of MeterSamples.
	AppendMeterSamples(ctx context.Context, samples []domain.MeterSample) error
	// InsertFirmwareStatus / InsertDiagnosticsStatus persist the respective notification.
	InsertFirmwareStatus(ctx context.Context, stationID, status string, at time.Time) error
	InsertDiagnosticsStatus(ctx context.Context, stationID, status string, at time.Time) error
	// GetStation / ListStations read stations back; GetStation backs the
	// Listener's unknown-station check.
	GetStation(ctx context.Context, stationID string) (*domain.Station, error)
	ListStations(ctx context.Context) ([]*domain.Station, error)
	// Close releases underlying resources (pool, connections).
	Close() error
}
