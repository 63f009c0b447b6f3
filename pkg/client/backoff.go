package client

import (
	"math/rand"
	"time"
)

// DefaultReportInterval is the push period assumed when sizing retries for a
// reporter that did not say how often it reports.
const DefaultReportInterval = 10 * time.Second

// BackoffStrategy yields the wait before retry attempt n (0-based).
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// ExponentialBackoff waits Base*Factor^attempt, capped at Max, with a
// symmetric jitter of +/- Jitter (0.0 to 1.0).
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// ReportBackoff sizes retries to a reporter's push interval. A snapshot is
// superseded by the next push, so the cap is half the interval and the first
// wait a twentieth of it (at least 50ms).
func ReportBackoff(interval time.Duration) *ExponentialBackoff {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	return &ExponentialBackoff{
		Base:   max(interval/20, 50*time.Millisecond),
		Max:    max(interval/2, 50*time.Millisecond),
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// DefaultBackoff is ReportBackoff(DefaultReportInterval): 500ms doubling to
// 5s.
func DefaultBackoff() *ExponentialBackoff {
	return ReportBackoff(DefaultReportInterval)
}

func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		return b.Base
	}

	delay := float64(b.Base)
	for i := 0; i < attempt && delay < float64(b.Max); i++ {
		delay *= b.Factor
	}
	delay = min(delay, float64(b.Max))

	if b.Jitter > 0 {
		delay += delay * (rand.Float64()*2 - 1) * b.Jitter
	}
	return time.Duration(max(delay, 0))
}
