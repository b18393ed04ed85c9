package session

import (
	"context"
	"time"
)

// withOperation returns a context that carries the tab's chromedp values from
// tab but ends when either tab or op ends.
func withOperation(tab, op context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(tab)
	stop := context.AfterFunc(op, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

// detached keeps values but drops cancellation and deadline. The browser
// process outlives the call that launched it.
type detached struct{ context.Context }

func (detached) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detached) Done() <-chan struct{}       { return nil }
func (detached) Err() error                  { return nil }

func detach(ctx context.Context) context.Context { return detached{ctx} }
