// Package domain holds the entities the central system persists and reasons
// about: stations, connectors, transactions, meter samples and authorization
// records. These are plain value types; persistence lives in internal/store.
package domain

import "time"

// RegistrationStatus is the outcome of a station's BootNotification.
type RegistrationStatus string

const (
	RegistrationAccepted RegistrationStatus = "Accepted"
	RegistrationPending  RegistrationStatus = "Pending"
	RegistrationRejected RegistrationStatus = "Rejected"
)

// ConnectorStatus mirrors the OCPP 1.6 ChargePointStatus enum.
type ConnectorStatus string

const (
	ConnectorAvailable     ConnectorStatus = "Available"
	ConnectorPreparing     ConnectorStatus = "Preparing"
	ConnectorCharging      ConnectorStatus = "Charging"
	ConnectorSuspendedEVSE ConnectorStatus = "SuspendedEVSE"
	ConnectorSuspendedEV   ConnectorStatus = "SuspendedEV"
	ConnectorFinishing     ConnectorStatus = "Finishing"
	ConnectorReserved      ConnectorStatus = "Reserved"
	ConnectorUnavailable   ConnectorStatus = "Unavailable"
	ConnectorFaulted       ConnectorStatus = "Faulted"
)

// AuthorizationStatus mirrors the OCPP 1.6 AuthorizationStatus enum.
type AuthorizationStatus string

const (
	AuthAccepted      AuthorizationStatus = "Accepted"
	AuthBlocked       AuthorizationStatus = "Blocked"
	AuthExpired       AuthorizationStatus = "Expired"
	AuthInvalid       AuthorizationStatus = "Invalid"
	AuthConcurrentTx  AuthorizationStatus = "ConcurrentTx"
)

// Station is the top-level entity keyed by the opaque path segment a charge
// point connects with. It is created on first BootNotification (or lazily on
// any first message) and is never deleted.
type Station struct {
	ID                 string
	Vendor             string
	Model              string
	FirmwareVersion    string
	RegistrationStatus RegistrationStatus
	LastBootAt         *time.Time
	LastHeartbeatAt    *time.Time
	Configuration      map[string]ConfigEntry
}

// ConfigEntry is a single OCPP configuration key.
type ConfigEntry struct {
	Value    string
	ReadOnly bool
}

// Connector is a sub-entity of Station keyed by (StationID, ConnectorID).
// ConnectorID 0 refers to the station as a whole.
type Connector struct {
	StationID     string
	ConnectorID   int
	Status        ConnectorStatus
	LastErrorCode string
	LastStatusAt  *time.Time
}

// Transaction is immutable once Stopped (StopTime set). The invariant
// MeterStop >= MeterStart and StopTime >= StartTime holds once stopped; at
// most one transaction per (StationID, ConnectorID) may be open at a time.
type Transaction struct {
	ID            int64
	StationID     string
	ConnectorID   int
	IDTag         string
	MeterStart    int64
	MeterStop     *int64
	StartTime     time.Time
	StopTime      *time.Time
	Reason        string
	ReservationID *int
}

// Open reports whether the transaction has not yet been stopped.
func (t *Transaction) Open() bool { return t.StopTime == nil }

// TotalEnergy returns MeterStop-MeterStart clamped to 0, or 0 if still open.
func (t *Transaction) TotalEnergy() int64 {
	if t.MeterStop == nil {
		return 0
	}
	total := *t.MeterStop - t.MeterStart
	if total < 0 {
		return 0
	}
	return total
}

// MeterSample is one append-only reading belonging to a transaction.
type MeterSample struct {
	TransactionID int64
	Timestamp     time.Time
	Measurand     string
	Phase         string
	Unit          string
	Value         string
}

// AuthorizationRecord is a read-mostly id_tag entry consulted by Authorize.
type AuthorizationRecord struct {
	IDTag        string
	Status       AuthorizationStatus
	ExpiryDate   *time.Time
	ParentIDTag  string
}
