package tls

import (
	"context"
	"time"
)

// defaultRetryInterval is the fixed backoff used when a producer reports
// "still pending" without a CA-supplied retry-after deadline (spec.md §4.7).
const defaultRetryInterval = 3 * time.Second

// FetchWithRetry drives one of the CA's asynchronous state machines
// (challenge polling, certificate issuance) to completion (spec.md §4.7).
//
// produce is invoked repeatedly:
//   - a non-nil *T completes the retry loop with that value.
//   - a non-nil *RetryAfter (with a nil T and nil error) waits until that
//     deadline and retries.
//   - any error other than the above completes the loop with that error.
//   - a nil T, nil RetryAfter and nil error is treated as "still pending,
//     no deadline given" and waits the default interval before retrying.
func FetchWithRetry[T any](ctx context.Context, produce func(context.Context) (*T, *RetryAfter, error)) (*T, error) {
	for {
		value, retry, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		if value != nil {
			return value, nil
		}

		wait := defaultRetryInterval
		if retry != nil {
			if until := time.Until(retry.At); until > 0 {
				wait = until
			} else {
				wait = 0
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
