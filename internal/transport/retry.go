package transport

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
)

// RetryPolicy controls how a failing call is repeated. Attempt n (0-based)
// is followed by a sleep of Initial * 2^n when it fails with a transient error.
type RetryPolicy struct {
	MaxAttempts uint
	Initial     time.Duration
	Max         time.Duration
}

// DefaultRetryPolicy is five attempts with 1s, 2s, 4s, 8s sleeps.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: constants.MaxRetries,
		Initial:     constants.RetryBackoff,
		Max:         constants.MaxRetryBackoff,
	}
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.Multiplier = constants.RetryMultiplier
	b.RandomizationFactor = 0
	b.MaxInterval = p.Max
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	return b
}

// Retry runs op until it succeeds, fails with a non-transient error, or the
// attempts are exhausted. The last error is returned unchanged.
func Retry[T any](ctx context.Context, policy RetryPolicy, name string, op func(context.Context) (T, error)) (T, error) {
	attempts := policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err != nil && !errors.IsTransient(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, next time.Duration) {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("call", name).
			Int("attempt", attempt).
			Uint("max_attempts", attempts).
			Dur("retry_in", next).
			Msg("Request failed, retrying")
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(attempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	// The final attempt comes back still wrapped when it was permanent.
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if err != nil && errors.IsTransient(err) {
		logging.Ctx(ctx).Error().Err(err).Str("call", name).Int("attempts", attempt).Msg("Max retries reached")
	}
	return res, err
}
