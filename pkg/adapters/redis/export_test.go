package redis

import "time"

// WithClock overrides the time source used for index scores.
func WithClock(now func() time.Time) Option {
	return func(s *Transcript) {
		s.now = now
	}
}
