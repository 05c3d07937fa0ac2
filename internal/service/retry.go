package service

import (
	"context"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Retrier повторяет операцию целиком, если она проиграла гонку (model.ErrConflict).
// Остальные ошибки возвращаются сразу.
type Retrier struct {
	maxRetries uint64
	base       time.Duration
	logger     *zap.Logger
}

func NewRetrier(maxRetries int, base time.Duration, logger *zap.Logger) *Retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if base <= 0 {
		base = 20 * time.Millisecond
	}
	return &Retrier{maxRetries: uint64(maxRetries), base: base, logger: logger}
}

// Do выполняет fn, повторяя её не более maxRetries раз при конфликте
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if r == nil || r.maxRetries == 0 {
		return fn(ctx)
	}

	backoff := retry.NewExponential(r.base)
	backoff = retry.WithJitter(r.base/2, backoff)
	backoff = retry.WithMaxRetries(r.maxRetries, backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && model.IsRetryable(err) {
			r.logger.Debug("Retrying after conflict",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return err
	})
}
