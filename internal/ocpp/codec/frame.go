package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/ocpp-central/central-system/internal/ocpperrors"
)

// Frame is the decoded shape of one OCPP 1.6-J wire message, grounded on
// the teacher's serializer.go SerializeMessage/DeserializeMessage contract
// but collapsed into a single decoded value per 4.A's decode() signature.
type Frame struct {
	Type       MessageType
	MessageID  string
	Action     Action
	Payload    json.RawMessage
	ErrCode    string
	ErrDesc    string
	ErrDetails json.RawMessage
}

// Decode parses a raw OCPP frame. Malformed JSON or the wrong array shape
// yields a FormationViolation CallError; an unrecognized MessageTypeId
// yields ProtocolError, per 4.A.
func Decode(raw []byte) (*Frame, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, ocpperrors.New(ocpperrors.FormationViolation, "not a JSON array: "+err.Error())
	}
	if len(arr) < 3 {
		return nil, ocpperrors.New(ocpperrors.FormationViolation, "frame array too short")
	}

	var msgType int
	if err := json.Unmarshal(arr[0], &msgType); err != nil {
		return nil, ocpperrors.New(ocpperrors.FormationViolation, "messageTypeId not an integer")
	}

	var msgID string
	if err := json.Unmarshal(arr[1], &msgID); err != nil {
		return nil, ocpperrors.New(ocpperrors.FormationViolation, "MessageId not a string")
	}

	switch MessageType(msgType) {
	case Call:
		if len(arr) != 4 {
			return nil, ocpperrors.New(ocpperrors.FormationViolation, "Call frame must have 4 elements")
		}
		var action string
		if err := json.Unmarshal(arr[2], &action); err != nil {
			return nil, ocpperrors.New(ocpperrors.FormationViolation, "Action not a string")
		}
		return &Frame{Type: Call, MessageID: msgID, Action: Action(action), Payload: arr[3]}, nil

	case CallResult:
		if len(arr) != 3 {
			return nil, ocpperrors.New(ocpperrors.FormationViolation, "CallResult frame must have 3 elements")
		}
		return &Frame{Type: CallResult, MessageID: msgID, Payload: arr[2]}, nil

	case CallError:
		if len(arr) != 5 {
			return nil, ocpperrors.New(ocpperrors.FormationViolation, "CallError frame must have 5 elements")
		}
		var code, desc string
		if err := json.Unmarshal(arr[2], &code); err != nil {
			return nil, ocpperrors.New(ocpperrors.FormationViolation, "errorCode not a string")
		}
		_ = json.Unmarshal(arr[3], &desc)
		return &Frame{Type: CallError, MessageID: msgID, ErrCode: code, ErrDesc: desc, ErrDetails: arr[4]}, nil

	default:
		return nil, ocpperrors.New(ocpperrors.ProtocolError, fmt.Sprintf("unknown MessageTypeId %d", msgType))
	}
}

// EncodeCall serializes a [2, MsgId, Action, Payload] frame.
func EncodeCall(msgID string, action Action, payload interface{}) ([]byte, error) {
	return json.Marshal([]interface{}{int(Call), msgID, action, payload})
}

// EncodeCallResult serializes a [3, MsgId, Payload] frame.
func EncodeCallResult(msgID string, payload interface{}) ([]byte, error) {
	return json.Marshal([]interface{}{int(CallResult), msgID, payload})
}

// EncodeCallError serializes a [4, MsgId, ErrCode, ErrDesc, ErrDetails] frame.
func EncodeCallError(msgID string, code ocpperrors.Code, desc string, details map[string]interface{}) ([]byte, error) {
	if details == nil {
		details = map[string]interface{}{}
	}
	return json.Marshal([]interface{}{int(CallError), msgID, code, desc, details})
}

// reqTypes/respTypes map an Action to its request/response payload struct,
// grounded on the teacher's GetPayloadType/CreatePayloadInstance reflection
// dispatch in serializer.go.
var reqTypes = map[Action]reflect.Type{
	ActionBootNotification:              reflect.TypeOf(BootNotificationReq{}),
	ActionHeartbeat:                     reflect.TypeOf(HeartbeatReq{}),
	ActionStatusNotification:            reflect.TypeOf(StatusNotificationReq{}),
	ActionAuthorize:                     reflect.TypeOf(AuthorizeReq{}),
	ActionStartTransaction:              reflect.TypeOf(StartTransactionReq{}),
	ActionStopTransaction:               reflect.TypeOf(StopTransactionReq{}),
	ActionMeterValues:                   reflect.TypeOf(MeterValuesReq{}),
	ActionDataTransfer:                  reflect.TypeOf(DataTransferReq{}),
	ActionFirmwareStatusNotification:    reflect.TypeOf(FirmwareStatusNotificationReq{}),
	ActionDiagnosticsStatusNotification: reflect.TypeOf(DiagnosticsStatusNotificationReq{}),
}

var respTypes = map[Action]reflect.Type{
	ActionRemoteStartTransaction: reflect.TypeOf(RemoteStartTransactionResp{}),
	ActionRemoteStopTransaction:  reflect.TypeOf(RemoteStopTransactionResp{}),
	ActionReset:                  reflect.TypeOf(ResetResp{}),
	ActionGetConfiguration:       reflect.TypeOf(GetConfigurationResp{}),
	ActionChangeConfiguration:    reflect.TypeOf(ChangeConfigurationResp{}),
	ActionReserveNow:             reflect.TypeOf(ReserveNowResp{}),
	ActionCancelReservation:      reflect.TypeOf(CancelReservationResp{}),
}

// NewInboundPayload allocates the request struct for an inbound Call Action.
// ok is false for an Action this server does not implement the inbound side
// of (it may still be legal as an outbound operator command).
func NewInboundPayload(action Action) (interface{}, bool) {
	t, ok := reqTypes[action]
	if !ok {
		return nil, false
	}
	return reflect.New(t).Interface(), true
}

// NewOutboundResponse allocates the response struct expected back for an
// operator-initiated outbound Call Action.
func NewOutboundResponse(action Action) (interface{}, bool) {
	t, ok := respTypes[action]
	if !ok {
		return nil, false
	}
	return reflect.New(t).Interface(), true
}
