// Package postgres implements internal/store.Repository against PostgreSQL
// using jackc/pgx/v5 for pooling and jmoiron/sqlx for struct-scan ergonomics
// over that pool, per the dependency pair named in SPEC_FULL.md's domain
// stack (grounded on jordigilh-kubernaut's storage layer, which pairs the
// same two libraries). Schema is applied idempotently by goose in Open.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/ocpp-central/central-system/internal/domain"
	"github.com/ocpp-central/central-system/internal/store"
)

// Store is the pgx/sqlx-backed Repository implementation.
type Store struct {
	db *sqlx.DB
}

// Open connects to dbURL and wraps the pool with sqlx via the pgx stdlib adapter.
func Open(ctx context.Context, dbURL string) (*Store, error) {
	sqlDB, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}
	if err := Migrate(sqlDB); err != nil {
		return nil, err
	}
	return &Store{db: sqlx.NewDb(sqlDB, "pgx")}, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code[:2] {
		case "08", "40", "53", "57": // connection, transaction-rollback, resource, operator-intervention
			return &store.TransientError{Cause: err}
		}
		return &store.PermanentError{Cause: err}
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return &store.TransientError{Cause: err}
	}
	return &store.PermanentError{Cause: err}
}

func (s *Store) UpsertStation(ctx context.Context, st *domain.Station) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stations (id, vendor, model, firmware, registration_status, last_boot_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			vendor = EXCLUDED.vendor,
			model = EXCLUDED.model,
			firmware = EXCLUDED.firmware,
			registration_status = EXCLUDED.registration_status,
			last_boot_at = now()
	`, st.ID, st.Vendor, st.Model, st.FirmwareVersion, string(st.RegistrationStatus))
	return classify(err)
}

func (s *Store) InsertBoot(ctx context.Context, stationID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO boot_events (station_id, occurred_at) VALUES ($1, $2)`, stationID, at)
	return classify(err)
}

func (s *Store) UpdateHeartbeat(ctx context.Context, stationID string, at time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`UPDATE stations SET last_heartbeat_at = $2 WHERE id = $1`, stationID, at); err != nil {
		return classify(err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO heartbeats (station_id, occurred_at) VALUES ($1, $2)`, stationID, at); err != nil {
		return classify(err)
	}
	return classify(tx.Commit())
}

// InsertStatus performs the dual write from Design Note 9: one status_history
// row and an update to the connector's denormalized status, within a single
// database transaction. It is a no-op when status and error_code are
// unchanged from the connector's current row and timestamp is not newer
// (§4.D): a station that re-sends its current StatusNotification after a
// reconnect must not grow status_history or move last_status_at backwards.
func (s *Store) InsertStatus(ctx context.Context, rec store.StatusNotificationRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	var current struct {
		Status       sql.NullString `db:"status"`
		ErrorCode    sql.NullString `db:"last_error_code"`
		LastStatusAt sql.NullTime   `db:"last_status_at"`
	}
	err = tx.GetContext(ctx, &current, `
		SELECT status, last_error_code, last_status_at FROM connectors
		WHERE station_id = $1 AND connector_id = $2 FOR UPDATE
	`, rec.StationID, rec.ConnectorID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no prior row for this connector, fall through and insert.
	case err != nil:
		return classify(err)
	default:
		unchanged := current.Status.String == rec.Status && current.ErrorCode.String == rec.ErrorCode
		notNewer := current.LastStatusAt.Valid && !rec.Timestamp.After(current.LastStatusAt.Time)
		if unchanged && notNewer {
			return nil
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO status_history (station_id, connector_id, status, error_code, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.StationID, rec.ConnectorID, rec.Status, rec.ErrorCode, rec.Timestamp); err != nil {
		return classify(err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO connectors (station_id, connector_id, status, last_error_code, last_status_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (station_id, connector_id) DO UPDATE SET
			status = EXCLUDED.status, last_error_code = EXCLUDED.last_error_code, last_status_at = EXCLUDED.last_status_at
	`, rec.StationID, rec.ConnectorID, rec.Status, rec.ErrorCode, rec.Timestamp); err != nil {
		return classify(err)
	}
	return classify(tx.Commit())
}

func (s *Store) LookupAuthorization(ctx context.Context, idTag string) (*domain.AuthorizationRecord, error) {
	var row struct {
		IDTag       string         `db:"id_tag"`
		Status      string         `db:"status"`
		ExpiryDate  sql.NullTime   `db:"expiry_date"`
		ParentIDTag sql.NullString `db:"parent_id_tag"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT id_tag, status, expiry_date, parent_id_tag FROM authorizations WHERE id_tag = $1`, idTag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	rec := &domain.AuthorizationRecord{IDTag: row.IDTag, Status: domain.AuthorizationStatus(row.Status)}
	if row.ExpiryDate.Valid {
		rec.ExpiryDate = &row.ExpiryDate.Time
	}
	if row.ParentIDTag.Valid {
		rec.ParentIDTag = row.ParentIDTag.String
	}
	return rec, nil
}

// AllocateTransaction inserts the open row and returns the database-assigned
// identity value in the same statement, per Design Note 9: the allocator is
// never an in-memory counter, so the sequence survives process restarts.
func (s *Store) AllocateTransaction(ctx context.Context, t *domain.Transaction) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, `
		INSERT INTO transactions (station_id, connector_id, id_tag, start_value, start_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, t.StationID, t.ConnectorID, t.IDTag, t.MeterStart, t.StartTime)
	if err != nil {
		return 0, classify(err)
	}
	return id, nil
}

func (s *Store) FindIdempotentTransaction(ctx context.Context, stationID string, connectorID int, idTag string, timestamp time.Time, window time.Duration) (*domain.Transaction, error) {
	var row transactionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, station_id, connector_id, id_tag, start_value, stop_value, start_time, stop_time, reason
		FROM transactions
		WHERE station_id = $1 AND connector_id = $2 AND id_tag = $3
		  AND start_time BETWEEN $4 AND $5
		ORDER BY start_time DESC LIMIT 1
	`, stationID, connectorID, idTag, timestamp.Add(-window), timestamp.Add(window))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return row.toDomain(), nil
}

// FinalizeTransaction clamps stop_value to start_value via GREATEST so the
// stop_value >= start_value CHECK constraint can never reject a station's
// meter rollover/replacement report; RETURNING reports whether the clamp
// fired so the caller can log it.
func (s *Store) FinalizeTransaction(ctx context.Context, transactionID int64, meterStop int64, stopTime time.Time, reason string) (found bool, clamped bool, err error) {
	row := s.db.QueryRowxContext(ctx, `
		UPDATE transactions SET stop_value = GREATEST($2, start_value), stop_time = $3, reason = $4
		WHERE id = $1
		RETURNING start_value > $2
	`, transactionID, meterStop, stopTime, reason)
	if scanErr := row.Scan(&clamped); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return false, false, nil
		}
		return false, false, classify(scanErr)
	}
	return true, clamped, nil
}

func (s *Store) AppendMeterSamples(ctx context.Context, samples []domain.MeterSample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()
	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO meter_samples (transaction_id, timestamp, measurand, unit, value)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return classify(err)
	}
	defer stmt.Close()
	for _, sample := range samples {
		if _, err := stmt.ExecContext(ctx, sample.TransactionID, sample.Timestamp, sample.Measurand, sample.Unit, sample.Value); err != nil {
			return classify(err)
		}
	}
	return classify(tx.Commit())
}

func (s *Store) InsertFirmwareStatus(ctx context.Context, stationID, status string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO firmware_status (station_id, status, occurred_at) VALUES ($1, $2, $3)`, stationID, status, at)
	return classify(err)
}

func (s *Store) InsertDiagnosticsStatus(ctx context.Context, stationID, status string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO diagnostics_status (station_id, status, occurred_at) VALUES ($1, $2, $3)`, stationID, status, at)
	return classify(err)
}

func (s *Store) GetStation(ctx context.Context, stationID string) (*domain.Station, error) {
	var row stationRow
	err := s.db.GetContext(ctx, &row, `SELECT id, vendor, model, firmware, registration_status, last_boot_at, last_heartbeat_at FROM stations WHERE id = $1`, stationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListStations(ctx context.Context) ([]*domain.Station, error) {
	var rows []stationRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, vendor, model, firmware, registration_status, last_boot_at, last_heartbeat_at FROM stations ORDER BY id`); err != nil {
		return nil, classify(err)
	}
	out := make([]*domain.Station, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) Close() error { return s.db.Close() }

type stationRow struct {
	ID                 string       `db:"id"`
	Vendor             string       `db:"vendor"`
	Model              string       `db:"model"`
	Firmware           string       `db:"firmware"`
	RegistrationStatus string       `db:"registration_status"`
	LastBootAt         sql.NullTime `db:"last_boot_at"`
	LastHeartbeatAt    sql.NullTime `db:"last_heartbeat_at"`
}

func (r stationRow) toDomain() *domain.Station {
	st := &domain.Station{
		ID: r.ID, Vendor: r.Vendor, Model: r.Model, FirmwareVersion: r.Firmware,
		RegistrationStatus: domain.RegistrationStatus(r.RegistrationStatus),
	}
	if r.LastBootAt.Valid {
		st.LastBootAt = &r.LastBootAt.Time
	}
	if r.LastHeartbeatAt.Valid {
		st.LastHeartbeatAt = &r.LastHeartbeatAt.Time
	}
	return st
}

type transactionRow struct {
	ID          int64         `db:"id"`
	StationID   string        `db:"station_id"`
	ConnectorID int           `db:"connector_id"`
	IDTag       string        `db:"id_tag"`
	MeterStart  int64         `db:"start_value"`
	MeterStop   sql.NullInt64 `db:"stop_value"`
	StartTime   time.Time     `db:"start_time"`
	StopTime    sql.NullTime  `db:"stop_time"`
	Reason      sql.NullString `db:"reason"`
}

func (r transactionRow) toDomain() *domain.Transaction {
	t := &domain.Transaction{
		ID: r.ID, StationID: r.StationID, ConnectorID: r.ConnectorID, IDTag: r.IDTag,
		MeterStart: r.MeterStart, StartTime: r.StartTime,
	}
	if r.MeterStop.Valid {
		v := r.MeterStop.Int64
		t.MeterStop = &v
	}
	if r.StopTime.Valid {
		v := r.StopTime.Time
		t.StopTime = &v
	}
	if r.Reason.Valid {
		t.Reason = r.Reason.String
	}
	return t
}
