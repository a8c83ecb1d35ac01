package codec

// Per-Action request/response payload shapes. Required/optional fields,
// ranges and enum values are expressed as go-playground/validator struct
// tags, grounded on the teacher's internal/domain/ocpp16/messages.go.

type BootNotificationReq struct {
	ChargePointVendor       string `json:"chargePointVendor" validate:"required,max=20"`
	ChargePointModel        string `json:"chargePointModel" validate:"required,max=20"`
	ChargePointSerialNumber string `json:"chargePointSerialNumber,omitempty" validate:"omitempty,max=25"`
	FirmwareVersion         string `json:"firmwareVersion,omitempty" validate:"omitempty,max=50"`
	Iccid                   string `json:"iccid,omitempty" validate:"omitempty,max=20"`
	Imsi                    string `json:"imsi,omitempty" validate:"omitempty,max=20"`
	MeterType               string `json:"meterType,omitempty" validate:"omitempty,max=25"`
	MeterSerialNumber       string `json:"meterSerialNumber,omitempty" validate:"omitempty,max=25"`
}

type BootNotificationResp struct {
	CurrentTime DateTime `json:"currentTime"`
	Interval    int      `json:"interval"`
	Status      string   `json:"status"`
}

type HeartbeatReq struct{}

type HeartbeatResp struct {
	CurrentTime DateTime `json:"currentTime"`
}

type StatusNotificationReq struct {
	ConnectorID     int      `json:"connectorId" validate:"gte=0"`
	ErrorCode       string   `json:"errorCode" validate:"required"`
	Info            string   `json:"info,omitempty" validate:"omitempty,max=50"`
	Status          string   `json:"status" validate:"required,ocpp_connector_status"`
	Timestamp       *DateTime `json:"timestamp,omitempty"`
	VendorID        string   `json:"vendorId,omitempty" validate:"omitempty,max=255"`
	VendorErrorCode string   `json:"vendorErrorCode,omitempty" validate:"omitempty,max=50"`
}

type StatusNotificationResp struct{}

type AuthorizeReq struct {
	IDTag string `json:"idTag" validate:"required,max=20"`
}

type AuthorizeResp struct {
	IDTagInfo IDTagInfo `json:"idTagInfo"`
}

type StartTransactionReq struct {
	ConnectorID int      `json:"connectorId" validate:"required,gte=1"`
	IDTag       string   `json:"idTag" validate:"required,max=20"`
	MeterStart  int64    `json:"meterStart"`
	ReservationID *int   `json:"reservationId,omitempty"`
	Timestamp   DateTime `json:"timestamp" validate:"required"`
}

type StartTransactionResp struct {
	TransactionID int64     `json:"transactionId"`
	IDTagInfo     IDTagInfo `json:"idTagInfo"`
}

type StopTransactionReq struct {
	TransactionID   int64          `json:"transactionId" validate:"required"`
	IDTag           string         `json:"idTag,omitempty" validate:"omitempty,max=20"`
	MeterStop       int64          `json:"meterStop"`
	Timestamp       DateTime       `json:"timestamp" validate:"required"`
	Reason          string         `json:"reason,omitempty"`
	TransactionData []MeterValue   `json:"transactionData,omitempty" validate:"omitempty,dive"`
}

type StopTransactionResp struct {
	IDTagInfo *IDTagInfo `json:"idTagInfo,omitempty"`
}

type MeterValuesReq struct {
	ConnectorID   int          `json:"connectorId" validate:"gte=0"`
	TransactionID *int64       `json:"transactionId,omitempty"`
	MeterValue    []MeterValue `json:"meterValue" validate:"required,min=1,dive"`
}

type MeterValuesResp struct{}

type DataTransferReq struct {
	VendorID  string `json:"vendorId" validate:"required,max=255"`
	MessageID string `json:"messageId,omitempty" validate:"omitempty,max=50"`
	Data      string `json:"data,omitempty"`
}

type DataTransferResp struct {
	Status string `json:"status"`
	Data   string `json:"data,omitempty"`
}

type FirmwareStatusNotificationReq struct {
	Status string `json:"status" validate:"required"`
}

type FirmwareStatusNotificationResp struct{}

type DiagnosticsStatusNotificationReq struct {
	Status string `json:"status" validate:"required"`
}

type DiagnosticsStatusNotificationResp struct{}

// Operator-initiated (outbound) Call payloads, see internal/ocpp/operator.

type RemoteStartTransactionReq struct {
	ConnectorID *int   `json:"connectorId,omitempty"`
	IDTag       string `json:"idTag" validate:"required,max=20"`
}

type RemoteStartTransactionResp struct {
	Status string `json:"status"`
}

type RemoteStopTransactionReq struct {
	TransactionID int64 `json:"transactionId" validate:"required"`
}

type RemoteStopTransactionResp struct {
	Status string `json:"status"`
}

type ResetReq struct {
	Type string `json:"type" validate:"required,oneof=Hard Soft"`
}

type ResetResp struct {
	Status string `json:"status"`
}

type GetConfigurationReq struct {
	Key []string `json:"key,omitempty"`
}

type GetConfigurationResp struct {
	ConfigurationKey []KeyValue `json:"configurationKey,omitempty"`
	UnknownKey       []string   `json:"unknownKey,omitempty"`
}

type ChangeConfigurationReq struct {
	Key   string `json:"key" validate:"required,max=50"`
	Value string `json:"value" validate:"required,max=500"`
}

type ChangeConfigurationResp struct {
	Status string `json:"status"`
}

type ReserveNowReq struct {
	ConnectorID   int      `json:"connectorId"`
	ExpiryDate    DateTime `json:"expiryDate" validate:"required"`
	IDTag         string   `json:"idTag" validate:"required,max=20"`
	ReservationID int      `json:"reservationId"`
}

type ReserveNowResp struct {
	Status string `json:"status"`
}

type CancelReservationReq struct {
	ReservationID int `json:"reservationId"`
}

type CancelReservationResp struct {
	Status string `json:"status"`
}
