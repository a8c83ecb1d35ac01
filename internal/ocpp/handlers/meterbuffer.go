package handlers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ocpp-central/central-system/internal/domain"
	"github.com/ocpp-central/central-system/internal/metrics"
	"github.com/ocpp-central/central-system/internal/store"
)

// MeterBuffer is the bounded batch channel described in section 5: inbound
// MeterValues are the only high-volume path, so samples are buffered and
// flushed by a dedicated goroutine instead of persisted synchronously from
// the handler. When full, the oldest batch is dropped (not the newest) so
// recency is preserved; the station still receives Accepted either way,
// since meter data is best-effort per OCPP.
type MeterBuffer struct {
	ch   chan []domain.MeterSample
	repo store.Repository
	log  zerolog.Logger
}

// NewMeterBuffer builds a MeterBuffer with the given capacity (METER_BUFFER, default 1024).
func NewMeterBuffer(capacity int, repo store.Repository, log zerolog.Logger) *MeterBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MeterBuffer{
		ch:   make(chan []domain.MeterSample, capacity),
		repo: repo,
		log:  log.With().Str("component", "meter_buffer").Logger(),
	}
}

// Push enqueues one batch of samples, dropping the oldest queued batch if
// the buffer is full.
func (b *MeterBuffer) Push(batch []domain.MeterSample) {
	select {
	case b.ch <- batch:
		return
	default:
	}
	select {
	case <-b.ch:
		metrics.MeterBufferDropped.Inc()
	default:
	}
	select {
	case b.ch <- batch:
	default:
		metrics.MeterBufferDropped.Inc()
	}
}

// Run drains the buffer until ctx is canceled, persisting each batch with
// the Transient-error retry policy from section 7.
func (b *MeterBuffer) Run(ctx context.Context) {
	for {
		select {
		case batch := <-b.ch:
			if err := withRetry(ctx, "append_meter_samples", func() error {
				return b.repo.AppendMeterSamples(ctx, batch)
			}); err != nil {
				b.log.Error().Err(err).Int("samples", len(batch)).Msg("failed to persist meter samples after retry")
			}
		case <-ctx.Done():
			return
		}
	}
}
