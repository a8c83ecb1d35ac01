// Package callregistry implements component B: the per-Session table of
// in-flight outbound Calls keyed by MessageId, with timeout expiry.
package callregistry

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ocpp-central/central-system/internal/ocpp/codec"
)

// ErrDuplicateMessageID is returned by Register when msgID is already pending.
var ErrDuplicateMessageID = errors.New("duplicate MessageId")

// ErrTimeout is delivered on Completion when a call is not resolved in time.
var ErrTimeout = errors.New("call timed out")

// Result is what a Completion channel receives: either a decoded payload or
// a CallError, never both.
type Result struct {
	Payload json.RawMessage
	ErrCode string
	ErrDesc string
	Err     error
}

// PendingCall tracks one outstanding outbound Call.
type PendingCall struct {
	MessageID  string
	Action     codec.Action
	SentAt     time.Time
	TimeoutAt  time.Time
	Completion chan Result
}

// Registry is a mutex-guarded map from MessageId to PendingCall. One
// Registry exists per Session. It places no limit on the number of entries;
// the count stays small only because the Session's writer registers one
// outbound Call at a time.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*PendingCall

	tickerStop chan struct{}
	wg         sync.WaitGroup
}

// New builds a Registry and starts its expiry ticker at the given granularity
// (must be <= 1s per 4.B).
func New(tickInterval time.Duration) *Registry {
	if tickInterval <= 0 || tickInterval > time.Second {
		tickInterval = 500 * time.Millisecond
	}
	r := &Registry{
		pending:    make(map[string]*PendingCall),
		tickerStop: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.expiryLoop(tickInterval)
	return r
}

// Register inserts a new PendingCall, failing with ErrDuplicateMessageID if
// msgID is already tracked.
func (r *Registry) Register(msgID string, action codec.Action, timeout time.Duration) (chan Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pending[msgID]; exists {
		return nil, ErrDuplicateMessageID
	}
	now := time.Now()
	completion := make(chan Result, 1)
	r.pending[msgID] = &PendingCall{
		MessageID:  msgID,
		Action:     action,
		SentAt:     now,
		TimeoutAt:  now.Add(timeout),
		Completion: completion,
	}
	return completion, nil
}

// Resolve removes and signals the pending call for msgID. Responses to an
// unknown MessageId are discarded silently (spec-compliant per 4.B); the
// bool return lets callers log the discard.
func (r *Registry) Resolve(msgID string, result Result) bool {
	r.mu.Lock()
	call, ok := r.pending[msgID]
	if ok {
		delete(r.pending, msgID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	call.Completion <- result
	close(call.Completion)
	return true
}

// InFlight reports whether msgID currently has a pending call (used by the
// Session's outbound queue to display registry state, not to enforce the
// one-in-flight rule — that is the writer's job per 4.B).
func (r *Registry) InFlight(msgID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[msgID]
	return ok
}

// Len reports the number of pending calls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Registry) expiryLoop(interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.expireDue(time.Now())
		case <-r.tickerStop:
			return
		}
	}
}

func (r *Registry) expireDue(now time.Time) {
	var expired []*PendingCall
	r.mu.Lock()
	for id, call := range r.pending {
		if !call.TimeoutAt.After(now) {
			expired = append(expired, call)
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()
	for _, call := range expired {
		call.Completion <- Result{Err: ErrTimeout}
		close(call.Completion)
	}
}

// Close stops the expiry ticker and fails every still-pending call with
// ErrTimeout (used during Session Draining to unblock outbound waiters).
func (r *Registry) Close() {
	close(r.tickerStop)
	r.wg.Wait()
	r.mu.Lock()
	remaining := r.pending
	r.pending = make(map[string]*PendingCall)
	r.mu.Unlock()
	for _, call := range remaining {
		call.Completion <- Result{Err: ErrTimeout}
		close(call.Completion)
	}
}
