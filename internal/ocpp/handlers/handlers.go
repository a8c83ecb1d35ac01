// Package handlers implements component D: the Action Handler dispatch
// table. Grounded on the teacher gateway's
// internal/protocol/ocpp16/processor.go handleAction switch, reimplemented
// against a real store.Repository instead of the teacher's stub bodies
// (always-Accept Authorize, time.Now().Unix() transaction ids, no
// persistence for StopTransaction/MeterValues).
package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/ocpp-central/central-system/internal/domain"
	"github.com/ocpp-central/central-system/internal/events"
	"github.com/ocpp-central/central-system/internal/metrics"
	"github.com/ocpp-central/central-system/internal/ocpp/codec"
	"github.com/ocpp-central/central-system/internal/ocpp/session"
	"github.com/ocpp-central/central-system/internal/ocpperrors"
	"github.com/ocpp-central/central-system/internal/store"
	"github.com/ocpp-central/central-system/internal/store/authcache"
)

// AuthFailPolicy selects Authorize's behavior when the Repository cannot be
// reached (Open Question in Design Notes: resolved via this env-driven switch).
type AuthFailPolicy string

const (
	AuthFailOpen   AuthFailPolicy = "open"
	AuthFailClosed AuthFailPolicy = "closed"
)

// Config tunes the business-rule knobs named in §6.
type Config struct {
	HeartbeatInterval    int // seconds, advised to stations in BootNotification response
	AuthFailPolicy       AuthFailPolicy
	AllowUnknownStations bool
	IdempotencyWindow    time.Duration
	Denylist             map[string]bool
}

// DefaultConfig matches the §6 defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:    30,
		AuthFailPolicy:       AuthFailClosed,
		AllowUnknownStations: true,
		IdempotencyWindow:    60 * time.Second,
		Denylist:             map[string]bool{},
	}
}

// Handlers holds the dependencies every Action Handler closes over and
// implements session.Dispatcher.
type Handlers struct {
	repo        store.Repository
	authCache   *authcache.Cache
	publisher   *events.Publisher
	validator   *codec.Validator
	meterBuffer *MeterBuffer
	cfg         Config
	log         zerolog.Logger

	table map[codec.Action]session.Handler
}

// New builds the dispatch table. publisher and authCache may be nil (events
// publishing and the Redis cache-aside are best-effort enrichments, not
// required for correctness).
func New(repo store.Repository, authCache *authcache.Cache, publisher *events.Publisher, meterBuffer *MeterBuffer, cfg Config, log zerolog.Logger) *Handlers {
	h := &Handlers{
		repo:        repo,
		authCache:   authCache,
		publisher:   publisher,
		validator:   codec.NewValidator(),
		meterBuffer: meterBuffer,
		cfg:         cfg,
		log:         log.With().Str("component", "handlers").Logger(),
	}
	h.table = map[codec.Action]session.Handler{
		codec.ActionBootNotification:              h.bootNotification,
		codec.ActionHeartbeat:                     h.heartbeat,
		codec.ActionStatusNotification:             h.statusNotification,
		codec.ActionAuthorize:                     h.authorize,
		codec.ActionStartTransaction:               h.startTransaction,
		codec.ActionStopTransaction:                h.stopTransaction,
		codec.ActionMeterValues:                    h.meterValues,
		codec.ActionDataTransfer:                   h.dataTransfer,
		codec.ActionFirmwareStatusNotification:     h.firmwareStatusNotification,
		codec.ActionDiagnosticsStatusNotification:  h.diagnosticsStatusNotification,
	}
	return h
}

// Dispatch implements session.Dispatcher.
func (h *Handlers) Dispatch(action codec.Action) (session.Handler, bool) {
	fn, ok := h.table[action]
	return fn, ok
}

// decodeAndValidate unmarshals raw into dst and runs struct validation,
// translating a failure into the FormationViolation/PropertyConstraintViolation
// split described in 4.A.
func (h *Handlers) decodeAndValidate(raw json.RawMessage, dst interface{}) *ocpperrors.CallError {
	if err := json.Unmarshal(raw, dst); err != nil {
		return ocpperrors.New(ocpperrors.FormationViolation, "malformed payload: "+err.Error())
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		verrs, _ := err.(codec.ValidationErrors)
		if verrs.IsPropertyConstraint() {
			return ocpperrors.New(ocpperrors.PropertyConstraintViolation, err.Error())
		}
		return ocpperrors.New(ocpperrors.FormationViolation, err.Error())
	}
	return nil
}

func (h *Handlers) bootNotification(ctx context.Context, s *session.Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
	metrics.MessagesReceived.WithLabelValues(string(codec.ActionBootNotification)).Inc()
	var req codec.BootNotificationReq
	if ce := h.decodeAndValidate(raw, &req); ce != nil {
		return nil, ce
	}
	stationID := s.StationID()
	now := time.Now().UTC()

	status := domain.RegistrationAccepted
	if h.cfg.Denylist[stationID] {
		status = domain.RegistrationRejected
	}

	station := &domain.Station{
		ID: stationID, Vendor: req.ChargePointVendor, Model: req.ChargePointModel,
		FirmwareVersion: req.FirmwareVersion, RegistrationStatus: status,
	}
	if err := withRetry(ctx, "upsert_station", func() error { return h.repo.UpsertStation(ctx, station) }); err != nil {
		return nil, storeErrToCallError(err)
	}
	_ = withRetry(ctx, "insert_boot", func() error { return h.repo.InsertBoot(ctx, stationID, now) })

	h.publish(events.NewEvent(events.TypeStationBooted, stationID, req))

	if status == domain.RegistrationRejected {
		go func() {
			time.Sleep(500 * time.Millisecond)
			s.EvictWithCode(1000, "station denylisted")
		}()
	}

	return codec.BootNotificationResp{
		CurrentTime: codec.NewDateTime(now),
		Interval:    h.cfg.HeartbeatInterval,
		Status:      string(status),
	}, nil
}

func (h *Handlers) heartbeat(ctx context.Context, s *session.Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
	metrics.MessagesReceived.WithLabelValues(string(codec.ActionHeartbeat)).Inc()
	now := time.Now().UTC()
	if err := withRetry(ctx, "update_heartbeat", func() error { return h.repo.UpdateHeartbeat(ctx, s.StationID(), now) }); err != nil {
		return nil, storeErrToCallError(err)
	}
	return codec.HeartbeatResp{CurrentTime: codec.NewDateTime(now)}, nil
}

func (h *Handlers) statusNotification(ctx context.Context, s *session.Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
	metrics.MessagesReceived.WithLabelValues(string(codec.ActionStatusNotification)).Inc()
	var req codec.StatusNotificationReq
	if ce := h.decodeAndValidate(raw, &req); ce != nil {
		return nil, ce
	}
	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.Time
	}
	rec := store.StatusNotificationRecord{
		StationID: s.StationID(), ConnectorID: req.ConnectorID, Status: req.Status,
		ErrorCode: req.ErrorCode, Timestamp: ts,
	}
	if err := withRetry(ctx, "insert_status", func() error { return h.repo.InsertStatus(ctx, rec) }); err != nil {
		return nil, storeErrToCallError(err)
	}
	h.publish(events.NewEvent(events.TypeStationStatusChanged, s.StationID(), rec))
	return codec.StatusNotificationResp{}, nil
}

// authorize resolves the Open Question on fail-open vs fail-closed: the
// repository is consulted through the Redis cache-aside layer first; on a
// repository error the response follows cfg.AuthFailPolicy (default closed
// => Invalid), matching the default stated in 4.D.
func (h *Handlers) authorize(ctx context.Context, s *session.Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
	metrics.MessagesReceived.WithLabelValues(string(codec.ActionAuthorize)).Inc()
	var req codec.AuthorizeReq
	if ce := h.decodeAndValidate(raw, &req); ce != nil {
		return nil, ce
	}

	status, parentIDTag, expiry := h.lookupAuth(ctx, req.IDTag)
	resp := codec.IDTagInfo{Status: string(status)}
	if parentIDTag != "" {
		resp.ParentIdTag = &parentIDTag
	}
	if expiry != nil {
		dt := codec.NewDateTime(*expiry)
		resp.ExpiryDate = &dt
	}
	return codec.AuthorizeResp{IDTagInfo: resp}, nil
}

func (h *Handlers) lookupAuth(ctx context.Context, idTag string) (domain.AuthorizationStatus, string, *time.Time) {
	if h.authCache != nil {
		if rec, ok := h.authCache.Get(ctx, idTag); ok {
			return rec.Status, rec.ParentIDTag, rec.ExpiryDate
		}
	}
	rec, err := h.repo.LookupAuthorization(ctx, idTag)
	if err != nil {
		if h.cfg.AuthFailPolicy == AuthFailOpen {
			return domain.AuthAccepted, "", nil
		}
		return domain.AuthInvalid, "", nil
	}
	if rec == nil {
		return domain.AuthInvalid, "", nil
	}
	if h.authCache != nil {
		_ = h.authCache.Set(ctx, rec)
	}
	return rec.Status, rec.ParentIDTag, rec.ExpiryDate
}

// startTransaction allocates a monotonically increasing, database-backed
// transaction id (never an in-memory counter) and honors the 60s
// idempotency window so a retried StartTransaction after a reconnect
// returns the existing id instead of opening a duplicate.
func (h *Handlers) startTransaction(ctx context.Context, s *session.Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
	metrics.MessagesReceived.WithLabelValues(string(codec.ActionStartTransaction)).Inc()
	var req codec.StartTransactionReq
	if ce := h.decodeAndValidate(raw, &req); ce != nil {
		return nil, ce
	}
	stationID := s.StationID()

	existing, err := withRetryT(ctx, "find_idempotent_transaction", func() (*domain.Transaction, error) {
		return h.repo.FindIdempotentTransaction(ctx, stationID, req.ConnectorID, req.IDTag, req.Timestamp.Time, h.cfg.IdempotencyWindow)
	})
	if err != nil {
		return nil, storeErrToCallError(err)
	}
	if existing != nil {
		return codec.StartTransactionResp{
			TransactionID: existing.ID,
			IDTagInfo:     codec.IDTagInfo{Status: string(domain.AuthAccepted)},
		}, nil
	}

	tx := &domain.Transaction{
		StationID: stationID, ConnectorID: req.ConnectorID, IDTag: req.IDTag,
		MeterStart: req.MeterStart, StartTime: req.Timestamp.Time,
	}
	id, err := withRetryT(ctx, "allocate_transaction", func() (int64, error) { return h.repo.AllocateTransaction(ctx, tx) })
	if err != nil {
		return nil, ocpperrors.New(ocpperrors.InternalError, "could not allocate transaction: "+err.Error())
	}

	h.publish(events.NewEvent(events.TypeTransactionStarted, stationID, map[string]interface{}{
		"transaction_id": id, "connector_id": req.ConnectorID, "id_tag": req.IDTag,
	}))

	return codec.StartTransactionResp{
		TransactionID: id,
		IDTagInfo:     codec.IDTagInfo{Status: string(domain.AuthAccepted)},
	}, nil
}

// finalizeOutcome carries FinalizeTransaction's two boolean results through
// withRetryT, which only threads a single value type.
type finalizeOutcome struct {
	found   bool
	clamped bool
}

// stopTransaction clamps a negative derived total_energy to zero (the store
// clamps stop_value to start_value so the CHECK constraint never rejects a
// meter rollover/replacement report) and still responds Accepted for an
// unknown transactionId, per OCPP 1.6 Figure 4.4.3.
func (h *Handlers) stopTransaction(ctx context.Context, s *session.Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
	metrics.MessagesReceived.WithLabelValues(string(codec.ActionStopTransaction)).Inc()
	var req codec.StopTransactionReq
	if ce := h.decodeAndValidate(raw, &req); ce != nil {
		return nil, ce
	}

	outcome, err := withRetryT(ctx, "finalize_transaction", func() (finalizeOutcome, error) {
		found, clamped, err := h.repo.FinalizeTransaction(ctx, req.TransactionID, req.MeterStop, req.Timestamp.Time, req.Reason)
		return finalizeOutcome{found: found, clamped: clamped}, err
	})
	if err != nil {
		return nil, storeErrToCallError(err)
	}
	if !outcome.found {
		h.log.Warn().Int64("transaction_id", req.TransactionID).Msg("StopTransaction for unknown transactionId")
	}
	if outcome.clamped {
		h.log.Warn().Int64("transaction_id", req.TransactionID).Int64("meter_stop", req.MeterStop).
			Msg("StopTransaction meterStop below start value, clamped total_energy to 0")
	}

	if len(req.TransactionData) > 0 {
		h.pushMeterValues(req.TransactionID, req.TransactionData)
	}

	h.publish(events.NewEvent(events.TypeTransactionStopped, s.StationID(), map[string]interface{}{
		"transaction_id": req.TransactionID, "meter_stop": req.MeterStop,
	}))

	return codec.StopTransactionResp{IDTagInfo: &codec.IDTagInfo{Status: string(domain.AuthAccepted)}}, nil
}

// meterValues never fails the reply for storage backpressure: samples are
// handed to the bounded MeterBuffer, which drops the oldest batch if full.
func (h *Handlers) meterValues(ctx context.Context, s *session.Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
	metrics.MessagesReceived.WithLabelValues(string(codec.ActionMeterValues)).Inc()
	var req codec.MeterValuesReq
	if ce := h.decodeAndValidate(raw, &req); ce != nil {
		return nil, ce
	}
	var txID int64
	if req.TransactionID != nil {
		txID = *req.TransactionID
	}
	h.pushMeterValuesTagged(txID, req.MeterValue)
	return codec.MeterValuesResp{}, nil
}

func (h *Handlers) pushMeterValues(txID int64, values []codec.MeterValue) {
	h.pushMeterValuesTagged(txID, values)
}

func (h *Handlers) pushMeterValuesTagged(txID int64, values []codec.MeterValue) {
	if h.meterBuffer == nil {
		return
	}
	samples := make([]domain.MeterSample, 0, len(values))
	for _, mv := range values {
		for _, sv := range mv.SampledValue {
			s := domain.MeterSample{TransactionID: txID, Timestamp: mv.Timestamp.Time, Value: sv.Value}
			if sv.Measurand != nil {
				s.Measurand = *sv.Measurand
			}
			if sv.Unit != nil {
				s.Unit = *sv.Unit
			}
			samples = append(samples, s)
		}
	}
	h.meterBuffer.Push(samples)
}

func (h *Handlers) dataTransfer(ctx context.Context, s *session.Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
	metrics.MessagesReceived.WithLabelValues(string(codec.ActionDataTransfer)).Inc()
	var req codec.DataTransferReq
	if ce := h.decodeAndValidate(raw, &req); ce != nil {
		return nil, ce
	}
	return codec.DataTransferResp{Status: "UnknownVendorId"}, nil
}

func (h *Handlers) firmwareStatusNotification(ctx context.Context, s *session.Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
	metrics.MessagesReceived.WithLabelValues(string(codec.ActionFirmwareStatusNotification)).Inc()
	var req codec.FirmwareStatusNotificationReq
	if ce := h.decodeAndValidate(raw, &req); ce != nil {
		return nil, ce
	}
	if err := withRetry(ctx, "insert_firmware_status", func() error {
		return h.repo.InsertFirmwareStatus(ctx, s.StationID(), req.Status, time.Now().UTC())
	}); err != nil {
		return nil, storeErrToCallError(err)
	}
	return codec.FirmwareStatusNotificationResp{}, nil
}

func (h *Handlers) diagnosticsStatusNotification(ctx context.Context, s *session.Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
	metrics.MessagesReceived.WithLabelValues(string(codec.ActionDiagnosticsStatusNotification)).Inc()
	var req codec.DiagnosticsStatusNotificationReq
	if ce := h.decodeAndValidate(raw, &req); ce != nil {
		return nil, ce
	}
	if err := withRetry(ctx, "insert_diagnostics_status", func() error {
		return h.repo.InsertDiagnosticsStatus(ctx, s.StationID(), req.Status, time.Now().UTC())
	}); err != nil {
		return nil, storeErrToCallError(err)
	}
	return codec.DiagnosticsStatusNotificationResp{}, nil
}

func (h *Handlers) publish(ev events.Event) {
	if h.publisher == nil {
		return
	}
	h.publisher.Publish(ev)
}

func storeErrToCallError(err error) *ocpperrors.CallError {
	return ocpperrors.Internal(err)
}

// withRetryT is withRetry's generic counterpart for operations that return a value.
func withRetryT[T any](ctx context.Context, operation string, op func() (T, error)) (T, error) {
	var result T
	err := withRetry(ctx, operation, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
