package listener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-central/central-system/internal/domain"
	"github.com/ocpp-central/central-system/internal/ocpp/codec"
	"github.com/ocpp-central/central-system/internal/ocpp/session"
	"github.com/ocpp-central/central-system/internal/ocpp/stationregistry"
)

type nilDispatcher struct{}

func (nilDispatcher) Dispatch(action codec.Action) (session.Handler, bool) { return nil, false }

type fakeLookup struct {
	known map[string]bool
	err   error
}

func (f *fakeLookup) GetStation(ctx context.Context, stationID string) (*domain.Station, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.known[stationID] {
		return &domain.Station{ID: stationID}, nil
	}
	return nil, nil
}

func dial(t *testing.T, server *httptest.Server, path string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	dialer := websocket.Dialer{Subprotocols: []string{subprotocol}}
	return dialer.Dial(url, nil)
}

func TestListener_AllowsUnknownStationsByDefault(t *testing.T) {
	registry := stationregistry.New()
	l := New(nilDispatcher{}, registry, nil, DefaultConfig(), true, zerolog.Nop())
	server := httptest.NewServer(l)
	defer server.Close()

	conn, _, err := dial(t, server, "/CP-NEW")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		_, ok := registry.Get("CP-NEW")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestListener_RejectsUnknownStationWhenDisallowed(t *testing.T) {
	registry := stationregistry.New()
	lookup := &fakeLookup{known: map[string]bool{}}
	l := New(nilDispatcher{}, registry, lookup, DefaultConfig(), false, zerolog.Nop())
	server := httptest.NewServer(l)
	defer server.Close()

	_, resp, err := dial(t, server, "/CP-UNKNOWN")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestListener_AllowsKnownStationWhenDisallowed(t *testing.T) {
	registry := stationregistry.New()
	lookup := &fakeLookup{known: map[string]bool{"CP-KNOWN": true}}
	l := New(nilDispatcher{}, registry, lookup, DefaultConfig(), false, zerolog.Nop())
	server := httptest.NewServer(l)
	defer server.Close()

	conn, _, err := dial(t, server, "/CP-KNOWN")
	require.NoError(t, err)
	defer conn.Close()
}

func TestListener_MissingStationIDReturns400(t *testing.T) {
	registry := stationregistry.New()
	l := New(nilDispatcher{}, registry, nil, DefaultConfig(), true, zerolog.Nop())
	server := httptest.NewServer(l)
	defer server.Close()

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListener_ReconnectEvictsPreviousSession(t *testing.T) {
	registry := stationregistry.New()
	l := New(nilDispatcher{}, registry, nil, DefaultConfig(), true, zerolog.Nop())
	server := httptest.NewServer(l)
	defer server.Close()

	first, _, err := dial(t, server, "/CP-1")
	require.NoError(t, err)
	defer first.Close()

	require.Eventually(t, func() bool {
		return registry.Count() == 1
	}, time.Second, 10*time.Millisecond)

	second, _, err := dial(t, server, "/CP-1")
	require.NoError(t, err)
	defer second.Close()

	_, _, err = first.ReadMessage()
	assert.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	if ok {
		assert.Equal(t, 1012, closeErr.Code)
	}
}

func TestStationIDFromPath(t *testing.T) {
	assert.Equal(t, "CP-1", stationIDFromPath("/CP-1"))
	assert.Equal(t, "CP-1", stationIDFromPath("/ocpp/CP-1"))
	assert.Equal(t, "", stationIDFromPath("/"))
	assert.Equal(t, "", stationIDFromPath(""))
}
