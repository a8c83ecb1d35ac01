// Package operator implements component H: the small synchronous API an
// operator-facing surface (an admin CLI, an internal REST handler — outside
// this repository's scope per §1) uses to issue remote commands at a
// station. Grounded on the teacher gateway's internal/gateway dispatcher,
// which turned outbound admin intents into queued Calls; here each call is
// a direct synchronous request/response against the addressed Session,
// since this system is single-process and a Session is always reachable
// in-memory via the Station Registry.
package operator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ocpp-central/central-system/internal/ocpp/callregistry"
	"github.com/ocpp-central/central-system/internal/ocpp/codec"
	"github.com/ocpp-central/central-system/internal/ocpp/session"
	"github.com/ocpp-central/central-system/internal/ocpp/stationregistry"
)

// ErrStationOffline is returned when the addressed station has no attached Session.
var ErrStationOffline = errors.New("station offline")

// ErrTimeout is returned when the station did not answer within the Call timeout.
var ErrTimeout = errors.New("operator call timed out")

// Adapter issues outbound Calls at a named station through the Station
// Registry, translating the result into the caller-facing status/error pair.
type Adapter struct {
	registry *stationregistry.Registry
}

// New builds an Adapter over registry.
func New(registry *stationregistry.Registry) *Adapter {
	return &Adapter{registry: registry}
}

// call resolves stationID to a live Session and issues action/payload,
// unmarshaling the CallResult into resp. A *StationError wraps whatever
// CallError code the station returned, if any.
func (a *Adapter) call(ctx context.Context, stationID string, action codec.Action, payload, resp interface{}) error {
	live, ok := a.registry.Get(stationID)
	if !ok {
		return ErrStationOffline
	}
	sess, ok := live.(*session.Session)
	if !ok {
		return ErrStationOffline
	}

	result := sess.SendCall(ctx, uuid.New().String(), action, payload)
	if result.Err != nil {
		if errors.Is(result.Err, context.DeadlineExceeded) || errors.Is(result.Err, callregistry.ErrTimeout) {
			return ErrTimeout
		}
		return result.Err
	}
	if result.ErrCode != "" {
		return &StationError{Code: result.ErrCode, Desc: result.ErrDesc}
	}
	if resp == nil || len(result.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(result.Payload, resp)
}

// StationError wraps a CallError a station returned in response to an
// operator-initiated Call.
type StationError struct {
	Code string
	Desc string
}

func (e *StationError) Error() string { return e.Code + ": " + e.Desc }

// RemoteStartTransaction requests the station start charging on connectorID
// (nil omits connectorId and lets the station choose) for idTag.
func (a *Adapter) RemoteStartTransaction(ctx context.Context, stationID string, connectorID *int, idTag string) (string, error) {
	var resp codec.RemoteStartTransactionResp
	err := a.call(ctx, stationID, codec.ActionRemoteStartTransaction,
		codec.RemoteStartTransactionReq{ConnectorID: connectorID, IDTag: idTag}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

// RemoteStopTransaction requests the station stop transactionID.
func (a *Adapter) RemoteStopTransaction(ctx context.Context, stationID string, transactionID int64) (string, error) {
	var resp codec.RemoteStopTransactionResp
	err := a.call(ctx, stationID, codec.ActionRemoteStopTransaction,
		codec.RemoteStopTransactionReq{TransactionID: transactionID}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Reset requests a Hard or Soft reset of the station.
func (a *Adapter) Reset(ctx context.Context, stationID, resetType string) (string, error) {
	var resp codec.ResetResp
	err := a.call(ctx, stationID, codec.ActionReset, codec.ResetReq{Type: resetType}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

// GetConfiguration requests the named configuration keys (all keys if empty).
func (a *Adapter) GetConfiguration(ctx context.Context, stationID string, keys []string) (*codec.GetConfigurationResp, error) {
	var resp codec.GetConfigurationResp
	if err := a.call(ctx, stationID, codec.ActionGetConfiguration, codec.GetConfigurationReq{Key: keys}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChangeConfiguration requests the station change a single configuration key.
func (a *Adapter) ChangeConfiguration(ctx context.Context, stationID, key, value string) (string, error) {
	var resp codec.ChangeConfigurationResp
	err := a.call(ctx, stationID, codec.ActionChangeConfiguration,
		codec.ChangeConfigurationReq{Key: key, Value: value}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

// ReserveNow requests the station reserve connectorID for idTag until expiry.
func (a *Adapter) ReserveNow(ctx context.Context, stationID string, connectorID int, idTag string, expiry time.Time, reservationID int) (string, error) {
	var resp codec.ReserveNowResp
	req := codec.ReserveNowReq{
		ConnectorID: connectorID, ExpiryDate: codec.NewDateTime(expiry),
		IDTag: idTag, ReservationID: reservationID,
	}
	if err := a.call(ctx, stationID, codec.ActionReserveNow, req, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// CancelReservation requests the station cancel reservationID.
func (a *Adapter) CancelReservation(ctx context.Context, stationID string, reservationID int) (string, error) {
	var resp codec.CancelReservationResp
	err := a.call(ctx, stationID, codec.ActionCancelReservation, codec.CancelReservationReq{ReservationID: reservationID}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}
