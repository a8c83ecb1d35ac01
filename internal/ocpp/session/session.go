// Package session implements component C: one Session per connected
// station, owning its socket and running the reader/writer/handler
// goroutines described in section 5. Grounded on the teacher's
// internal/transport/websocket connection-wrapper shape, generalized to the
// spec's Negotiating/Active/Draining/Closed lifecycle and eviction rule,
// which the teacher's version did not implement.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ocpp-central/central-system/internal/metrics"
	"github.com/ocpp-central/central-system/internal/ocpp/callregistry"
	"github.com/ocpp-central/central-system/internal/ocpp/codec"
	"github.com/ocpp-central/central-system/internal/ocpperrors"
)

// State is one of the four Session lifecycle states from 4.C.
type State int32

const (
	Negotiating State = iota
	Active
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Negotiating:
		return "Negotiating"
	case Active:
		return "Active"
	case Draining:
		return "Draining"
	default:
		return "Closed"
	}
}

// Handler is the signature every Action Handler in the dispatch table
// implements: decode payload already happened, this returns either a
// result payload or a typed CallError, never both.
type Handler func(ctx context.Context, s *Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError)

// Dispatcher is the Action -> Handler table, owned by internal/ocpp/handlers
// and passed in at construction so Session has no business-logic knowledge.
type Dispatcher interface {
	Dispatch(action codec.Action) (Handler, bool)
}

// Config tunes Session behavior per section 5.
type Config struct {
	CallTimeout   time.Duration
	DrainDeadline time.Duration
	PingInterval  time.Duration
	PongTimeout   time.Duration
}

// DefaultConfig matches the §6 defaults (CALL_TIMEOUT_SEC=30) and §5
// (ping 20s, pong 30s) and the §4.C drain grace (5s).
func DefaultConfig() Config {
	return Config{
		CallTimeout:   30 * time.Second,
		DrainDeadline: 5 * time.Second,
		PingInterval:  20 * time.Second,
		PongTimeout:   30 * time.Second,
	}
}

// outboundCall is one operator-initiated Call waiting to be written and
// awaiting its response; the writer only pops the next one once this
// resolves or times out, implementing the single-outstanding-call rule.
type outboundCall struct {
	msgID      string
	action     codec.Action
	payload    interface{}
	completion chan callregistry.Result
}

// Session owns one WebSocket connection to one station. It satisfies
// stationregistry.LiveSession structurally via StationID/EvictWithCode.
type Session struct {
	stationID string
	conn      *websocket.Conn
	calls     *callregistry.Registry
	dispatch  Dispatcher
	cfg       Config
	log       zerolog.Logger

	state int32 // atomic State

	writeCh  chan []byte
	outbound chan outboundCall

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// New constructs a Session in the Negotiating state. Call Run to make it Active.
func New(stationID string, conn *websocket.Conn, dispatch Dispatcher, cfg Config, log zerolog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		stationID: stationID,
		conn:      conn,
		calls:     callregistry.New(500 * time.Millisecond),
		dispatch:  dispatch,
		cfg:       cfg,
		log:       log.With().Str("station_id", stationID).Logger(),
		state:     int32(Negotiating),
		writeCh:   make(chan []byte, 64),
		outbound:  make(chan outboundCall, 256),
		ctx:       ctx,
		cancel:    cancel,
	}
	return s
}

// StationID implements the LiveSession interface for stationregistry.
func (s *Session) StationID() string { return s.stationID }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(atomic.LoadInt32(&s.state)) }

func (s *Session) setState(st State) { atomic.StoreInt32(&s.state, int32(st)) }

// Run transitions to Active and blocks running the reader/writer/ping
// goroutines until the socket closes or the context is canceled. Call in its
// own goroutine from the Listener.
func (s *Session) Run() {
	s.setState(Active)
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	s.conn.SetReadLimit(256 * 1024)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	s.wg.Add(3)
	go s.writerLoop()
	go s.pingLoop()
	go s.readerLoop()

	s.wg.Wait()
	s.setState(Closed)
	s.calls.Close()
}

// readerLoop decodes inbound frames and dispatches them; it must never
// block on a handler, so each inbound Call is handled in its own goroutine
// (4.C point 3 / section 5 "handlers must not block the reader").
func (s *Session) readerLoop() {
	defer s.wg.Done()
	defer s.cancel()
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Debug().Err(err).Msg("session read terminated")
			return
		}
		frame, err := codec.Decode(raw)
		if err != nil {
			if ce, ok := err.(*ocpperrors.CallError); ok {
				// Decode failure with no recoverable MessageId: we still try
				// to extract one best-effort so the station can correlate.
				msgID := bestEffortMessageID(raw)
				s.sendCallError(msgID, ce)
				continue
			}
			s.log.Warn().Err(err).Msg("unrecoverable decode error")
			continue
		}
		switch frame.Type {
		case codec.Call:
			s.wg.Add(1)
			go s.handleCall(frame)
		case codec.CallResult:
			s.handleCallResult(frame)
		case codec.CallError:
			s.handleCallErrorFrame(frame)
		}
	}
}

func bestEffortMessageID(raw []byte) string {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 2 {
		return ""
	}
	var id string
	_ = json.Unmarshal(arr[1], &id)
	return id
}

// handleCall runs the handler for one inbound Call and emits its response.
// Unhandled handler panics are converted to CallError(InternalError) per
// the propagation policy in section 7; they never affect other Sessions or
// other in-flight handlers of this Session.
func (s *Session) handleCall(frame *codec.Frame) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.sendCallError(frame.MessageID, ocpperrors.New(ocpperrors.InternalError, fmt.Sprintf("panic: %v", r)))
		}
	}()

	handler, ok := s.dispatch.Dispatch(frame.Action)
	if !ok {
		s.sendCallError(frame.MessageID, ocpperrors.New(ocpperrors.NotImplemented, "unknown Action "+string(frame.Action)))
		return
	}

	start := time.Now()
	result, callErr := handler(s.ctx, s, frame.Payload)
	metrics.HandlerDuration.WithLabelValues(string(frame.Action)).Observe(time.Since(start).Seconds())

	if callErr != nil {
		s.sendCallError(frame.MessageID, callErr)
		return
	}
	encoded, err := codec.EncodeCallResult(frame.MessageID, result)
	if err != nil {
		s.sendCallError(frame.MessageID, ocpperrors.Internal(err))
		return
	}
	s.enqueueWrite(encoded)
}

func (s *Session) sendCallError(msgID string, ce *ocpperrors.CallError) {
	encoded, err := codec.EncodeCallError(msgID, ce.Code, ce.Desc, ce.Details)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode CallError")
		return
	}
	s.enqueueWrite(encoded)
}

func (s *Session) handleCallResult(frame *codec.Frame) {
	if !s.calls.Resolve(frame.MessageID, callregistry.Result{Payload: frame.Payload}) {
		s.log.Debug().Str("message_id", frame.MessageID).Msg("CallResult for unknown MessageId discarded")
	}
}

func (s *Session) handleCallErrorFrame(frame *codec.Frame) {
	if !s.calls.Resolve(frame.MessageID, callregistry.Result{ErrCode: frame.ErrCode, ErrDesc: frame.ErrDesc}) {
		s.log.Debug().Str("message_id", frame.MessageID).Msg("CallError for unknown MessageId discarded")
	}
}

// enqueueWrite hands a pre-encoded frame to the writer. It never blocks the
// reader indefinitely: the channel is large enough for normal operation and
// Session shutdown drains it via context cancellation.
func (s *Session) enqueueWrite(b []byte) {
	select {
	case s.writeCh <- b:
	case <-s.ctx.Done():
	}
}

// writerLoop is the only goroutine allowed to write to the socket. It
// interleaves plain frame writes with the single-outstanding-call protocol
// for operator-initiated outbound Calls.
func (s *Session) writerLoop() {
	defer s.wg.Done()
	defer s.conn.Close()
	for {
		select {
		case b := <-s.writeCh:
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.log.Debug().Err(err).Msg("write failed")
				s.cancel()
				return
			}
		case call := <-s.outbound:
			s.sendOutboundCall(call)
		case <-s.ctx.Done():
			return
		}
	}
}

// sendOutboundCall writes one operator Call and blocks the writer until its
// response/timeout resolves, enforcing OCPP's one-outstanding-call-per-
// direction rule for server-initiated Calls (4.C).
func (s *Session) sendOutboundCall(call outboundCall) {
	encoded, err := codec.EncodeCall(call.msgID, call.action, call.payload)
	if err != nil {
		call.completion <- callregistry.Result{Err: err}
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
		call.completion <- callregistry.Result{Err: err}
		s.cancel()
		return
	}
	completion, regErr := s.calls.Register(call.msgID, call.action, s.cfg.CallTimeout)
	if regErr != nil {
		call.completion <- callregistry.Result{Err: regErr}
		return
	}
	metrics.InFlightCalls.Inc()
	defer metrics.InFlightCalls.Dec()
	select {
	case res := <-completion:
		call.completion <- res
	case <-s.ctx.Done():
		call.completion <- callregistry.Result{Err: s.ctx.Err()}
	}
}

// SendCall submits an operator-initiated outbound Call and blocks until the
// station replies or the per-call timeout elapses. Used by
// internal/ocpp/operator.
func (s *Session) SendCall(ctx context.Context, msgID string, action codec.Action, payload interface{}) callregistry.Result {
	completion := make(chan callregistry.Result, 1)
	select {
	case s.outbound <- outboundCall{msgID: msgID, action: action, payload: payload, completion: completion}:
	case <-ctx.Done():
		return callregistry.Result{Err: ctx.Err()}
	case <-s.ctx.Done():
		return callregistry.Result{Err: s.ctx.Err()}
	}
	select {
	case res := <-completion:
		return res
	case <-ctx.Done():
		return callregistry.Result{Err: ctx.Err()}
	}
}

func (s *Session) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// EvictWithCode transitions the Session to Draining with zero grace and
// closes its socket with the given close code, per 4.C eviction semantics
// (a reconnecting station closes its predecessor with 1012).
func (s *Session) EvictWithCode(code int, reason string) {
	s.closeOnce.Do(func() {
		s.setState(Draining)
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		s.cancel()
	})
}

// Drain transitions to Draining, cancels the Session (which closes the
// socket and cancels the context of in-flight handlers), and waits up to
// cfg.DrainDeadline for its goroutines to exit, for graceful server
// shutdown (section 5). Handlers still running are not given time to
// complete: a reply they produce after the cancel is not written.
func (s *Session) Drain() {
	s.setState(Draining)
	done := make(chan struct{})
	go func() {
		s.cancel()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.DrainDeadline):
	}
}
