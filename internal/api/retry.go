package api

import (
	"context"
	"log"
	"time"

	"github.com/soaringjerry/Vitals/internal/services"
)

const retryAttempts = 3

var retryBackoff = 50 * time.Millisecond

// withRetry runs fn up to retryAttempts times while it fails with an
// unavailable error. Any other error is returned at once.
func withRetry[T any](ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if !services.IsCode(err, services.ErrorUnavailable) || attempt == retryAttempts {
			break
		}
		log.Printf("api: %s: store unavailable (attempt %d/%d): %v", op, attempt, retryAttempts, err)
		select {
		case <-ctx.Done():
			return zero, services.NewUnavailableError(op+" cancelled", ctx.Err())
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	return zero, err
}

func retryErr(ctx context.Context, op string, fn func(context.Context) error) error {
	_, err := withRetry(ctx, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
