// Package codec implements the OCPP 1.6-J wire format: frame decode/encode
// and per-Action payload validation. Grounded on the teacher gateway's
// internal/domain/ocpp16 package, generalized to the station-server
// semantics this repository implements.
package codec

import (
	"strings"
	"time"
)

// MessageType is the leading integer of an OCPP frame.
type MessageType int

const (
	Call       MessageType = 2
	CallResult MessageType = 3
	CallError  MessageType = 4
)

// Action is an OCPP operation name. The closed set below is what this
// server accepts on inbound Calls and uses to label outbound ones.
type Action string

const (
	ActionAuthorize                     Action = "Authorize"
	ActionBootNotification              Action = "BootNotification"
	ActionChangeAvailability            Action = "ChangeAvailability"
	ActionChangeConfiguration           Action = "ChangeConfiguration"
	ActionClearCache                    Action = "ClearCache"
	ActionDataTransfer                  Action = "DataTransfer"
	ActionGetConfiguration              Action = "GetConfiguration"
	ActionHeartbeat                     Action = "Heartbeat"
	ActionMeterValues                   Action = "MeterValues"
	ActionRemoteStartTransaction        Action = "RemoteStartTransaction"
	ActionRemoteStopTransaction         Action = "RemoteStopTransaction"
	ActionReset                         Action = "Reset"
	ActionStartTransaction              Action = "StartTransaction"
	ActionStatusNotification            Action = "StatusNotification"
	ActionStopTransaction               Action = "StopTransaction"
	ActionUnlockConnector               Action = "UnlockConnector"
	ActionGetDiagnostics                Action = "GetDiagnostics"
	ActionDiagnosticsStatusNotification Action = "DiagnosticsStatusNotification"
	ActionFirmwareStatusNotification    Action = "FirmwareStatusNotification"
	ActionUpdateFirmware                Action = "UpdateFirmware"
	ActionCancelReservation             Action = "CancelReservation"
	ActionReserveNow                    Action = "ReserveNow"
)

// knownActions is the closed set the Wire Codec recognizes. An inbound Call
// naming anything else yields CallError(NotImplemented) per 4.C dispatch.
var knownActions = map[Action]bool{
	ActionAuthorize: true, ActionBootNotification: true, ActionChangeAvailability: true,
	ActionChangeConfiguration: true, ActionClearCache: true, ActionDataTransfer: true,
	ActionGetConfiguration: true, ActionHeartbeat: true, ActionMeterValues: true,
	ActionRemoteStartTransaction: true, ActionRemoteStopTransaction: true, ActionReset: true,
	ActionStartTransaction: true, ActionStatusNotification: true, ActionStopTransaction: true,
	ActionUnlockConnector: true, ActionGetDiagnostics: true,
	ActionDiagnosticsStatusNotification: true, ActionFirmwareStatusNotification: true,
	ActionUpdateFirmware: true, ActionCancelReservation: true, ActionReserveNow: true,
}

// IsKnownAction reports whether action is in the closed set this server handles.
func IsKnownAction(action string) bool { return knownActions[Action(action)] }

// DateTime wraps time.Time so the codec can normalize to UTC on decode and
// always emit millisecond-precision, Z-suffixed timestamps on encode, per
// the design note that the protocol allows both forms on the wire but this
// server is canonical about its own output.
type DateTime struct {
	time.Time
}

const dateTimeLayout = "2006-01-02T15:04:05.000Z"

// NewDateTime wraps t, normalizing it to UTC.
func NewDateTime(t time.Time) DateTime { return DateTime{t.UTC()} }

func (dt DateTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + dt.Time.UTC().Format(dateTimeLayout) + `"`), nil
}

func (dt *DateTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(dateTimeLayout, s)
		if err != nil {
			return err
		}
	}
	dt.Time = t.UTC()
	return nil
}

// IDTagInfo is embedded in Authorize/StartTransaction/StopTransaction responses.
type IDTagInfo struct {
	ExpiryDate  *DateTime `json:"expiryDate,omitempty"`
	ParentIdTag *string   `json:"parentIdTag,omitempty" validate:"omitempty,max=20"`
	Status      string    `json:"status" validate:"required,ocpp_auth_status"`
}

// KeyValue is one GetConfiguration/ChangeConfiguration entry.
type KeyValue struct {
	Key      string  `json:"key" validate:"required,max=50"`
	Readonly bool    `json:"readonly"`
	Value    *string `json:"value,omitempty" validate:"omitempty,max=500"`
}

// MeterValue is one sampled reading set reported by MeterValues.
type MeterValue struct {
	Timestamp    DateTime       `json:"timestamp" validate:"required"`
	SampledValue []SampledValue `json:"sampledValue" validate:"required,min=1,dive"`
}

// SampledValue is a single measurement within a MeterValue.
type SampledValue struct {
	Value     string  `json:"value" validate:"required"`
	Context   *string `json:"context,omitempty"`
	Format    *string `json:"format,omitempty"`
	Measurand *string `json:"measurand,omitempty"`
	Phase     *string `json:"phase,omitempty"`
	Location  *string `json:"location,omitempty"`
	Unit      *string `json:"unit,omitempty"`
}
