package handlers

import (
	"context"
	"time"

	"github.com/ocpp-central/central-system/internal/metrics"
	"github.com/ocpp-central/central-system/internal/store"
)

// retryBackoff is the 100ms/400ms/1.6s exponential schedule from section 7.
var retryBackoff = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond}

// withRetry runs op, retrying up to len(retryBackoff) additional times when
// it fails with a *store.TransientError. A *store.PermanentError or any
// other error is returned immediately without retry.
func withRetry(ctx context.Context, operation string, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	for _, delay := range retryBackoff {
		if !isTransient(err) {
			return err
		}
		metrics.RepositoryRetries.WithLabelValues(operation).Inc()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		err = op()
		if err == nil {
			return nil
		}
	}
	return err
}

func isTransient(err error) bool {
	_, ok := err.(*store.TransientError)
	return ok
}
