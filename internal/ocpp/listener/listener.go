// Package listener implements component G: the WebSocket front door that
// accepts station connections, negotiates the ocpp1.6 subprotocol, and
// attaches each one to the Station Registry. Grounded on the teacher
// gateway's internal/transport/websocket Manager (upgrader configuration,
// subprotocol list, ping/pong timeouts), reworked from a connection-map
// manager into a thin factory that hands each accepted connection off to a
// session.Session and lets the Station Registry own the single-session
// invariant (4.E), rather than duplicating that bookkeeping here.
package listener

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ocpp-central/central-system/internal/domain"
	"github.com/ocpp-central/central-system/internal/metrics"
	"github.com/ocpp-central/central-system/internal/ocpp/session"
	"github.com/ocpp-central/central-system/internal/ocpp/stationregistry"
)

const subprotocol = "ocpp1.6"

// StationLookup is the narrow slice of store.Repository the Listener needs
// to enforce ALLOW_UNKNOWN_STATIONS; it avoids importing the full
// Repository interface for a single read.
type StationLookup interface {
	GetStation(ctx context.Context, stationID string) (*domain.Station, error)
}

// Config tunes the upgrader and session defaults.
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	SessionConfig   session.Config
}

// DefaultConfig matches the teacher's websocket.DefaultConfig buffer sizing.
func DefaultConfig() Config {
	return Config{ReadBufferSize: 4096, WriteBufferSize: 4096, SessionConfig: session.DefaultConfig()}
}

// Listener upgrades incoming HTTP requests to OCPP-J WebSocket connections.
type Listener struct {
	cfg      Config
	upgrader websocket.Upgrader
	dispatch session.Dispatcher
	registry *stationregistry.Registry
	lookup   StationLookup
	log      zerolog.Logger
	allowNew bool
}

// New builds a Listener. allowUnknownStations mirrors ALLOW_UNKNOWN_STATIONS
// from §6: when false, a station id never seen in the Repository is
// rejected at upgrade time with 403 instead of being allowed to connect and
// lazily created on first BootNotification. lookup may be nil when
// allowUnknownStations is true, since it is never consulted in that case.
func New(dispatch session.Dispatcher, registry *stationregistry.Registry, lookup StationLookup, cfg Config, allowUnknownStations bool, log zerolog.Logger) *Listener {
	l := &Listener{
		cfg:      cfg,
		dispatch: dispatch,
		registry: registry,
		lookup:   lookup,
		allowNew: allowUnknownStations,
		log:      log.With().Str("component", "listener").Logger(),
	}
	l.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		Subprotocols:    []string{subprotocol},
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return l
}

// ServeHTTP implements the handler registered at "/{stationId}". The
// station id is the final path segment, matching the teacher's
// Path-prefixed-by-charge-point-id convention.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stationID := stationIDFromPath(r.URL.Path)
	if stationID == "" {
		http.Error(w, "missing station id", http.StatusBadRequest)
		return
	}

	if !l.allowNew && l.lookup != nil {
		station, err := l.lookup.GetStation(r.Context(), stationID)
		if err != nil {
			l.log.Warn().Err(err).Str("station_id", stationID).Msg("station lookup failed, rejecting connection")
			http.Error(w, "station lookup failed", http.StatusServiceUnavailable)
			return
		}
		if station == nil {
			l.log.Warn().Str("station_id", stationID).Msg("rejecting unknown station (ALLOW_UNKNOWN_STATIONS=false)")
			http.Error(w, "unknown station", http.StatusForbidden)
			return
		}
	}

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.log.Warn().Err(err).Str("station_id", stationID).Msg("websocket upgrade failed")
		return
	}
	if conn.Subprotocol() != subprotocol {
		l.log.Warn().Str("station_id", stationID).Str("subprotocol", conn.Subprotocol()).
			Msg("station connected without negotiating ocpp1.6, closing")
		_ = conn.Close()
		return
	}

	sess := session.New(stationID, conn, l.dispatch, l.cfg.SessionConfig, l.log)
	if evicted := l.registry.Attach(stationID, sess); evicted != nil {
		metrics.StationEvictions.Inc()
		evicted.EvictWithCode(1012, "superseded by new connection")
	}
	defer l.registry.Detach(stationID, sess)

	sess.Run()
}

func stationIDFromPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	segments := strings.Split(trimmed, "/")
	return segments[len(segments)-1]
}
