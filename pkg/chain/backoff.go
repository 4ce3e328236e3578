package chain

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxScheduledAttempts = 32

// PollConfig spaces repeated checks of one claim transaction across reconcile passes.
type PollConfig struct {
	Initial     time.Duration
	MaxInterval time.Duration
}

// NextCheck returns how long to wait before checking again a transaction that has
// been checked attempts times without a final answer. Delays double from Initial
// and stop growing at MaxInterval.
func (c PollConfig) NextCheck(attempts int) time.Duration {
	policy := backoff.NewExponentialBackOff()
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0
	if c.Initial > 0 {
		policy.InitialInterval = c.Initial
	}
	if c.MaxInterval > 0 {
		policy.MaxInterval = c.MaxInterval
	}
	policy.Reset()

	if attempts > maxScheduledAttempts {
		attempts = maxScheduledAttempts
	}
	delay := policy.NextBackOff()
	for i := 1; i < attempts; i++ {
		delay = policy.NextBackOff()
	}
	return delay
}
