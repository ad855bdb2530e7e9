package stream

import "time"

// Backoff is the reconnect schedule: attempt n waits Base * 2^n, and no
// attempt is made once MaxAttempts consecutive attempts have failed.
type Backoff struct {
	Base        time.Duration
	MaxAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, MaxAttempts: 3}
}

func (b Backoff) Delay(attempt int) (time.Duration, bool) {
	if attempt < 0 || attempt >= b.MaxAttempts {
		return 0, false
	}
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	return base * time.Duration(1<<uint(attempt)), true
}
