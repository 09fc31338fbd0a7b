package retry

import (
	"context"
	"time"
)

// Policy is a bounded fixed-delay retry strategy. Sleep is injectable so
// callers can test retry behavior without real delays; when nil, time.Sleep
// is used.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Sleep    func(time.Duration)
}

// Do runs fn up to p.Attempts times, sleeping p.Delay between failures.
// It returns nil on the first success, the last error once the budget is
// exhausted, or ctx.Err() if the context is cancelled between attempts.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			sleep(p.Delay)
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}
