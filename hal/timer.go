package hal

import (
	"sync"
	"time"
)

const tickDur = time.Millisecond

// oneShot implements Timer over the runtime timer, for host and tinygo
// targets without a dedicated hardware alarm.
//
// Remaining derives its answer from a single time.Now read taken at entry;
// drift against the firing goroutine is bounded by one tick.
type oneShot struct {
	mu  sync.Mutex
	t   *time.Timer
	due time.Time
}

func newOneShot() *oneShot { return &oneShot{} }

func (o *oneShot) Start(ticks uint32, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.t != nil {
		o.t.Stop()
	}
	d := time.Duration(ticks) * tickDur
	o.due = time.Now().Add(d)
	o.t = time.AfterFunc(d, fn)
}

func (o *oneShot) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.t != nil {
		o.t.Stop()
		o.t = nil
	}
}

func (o *oneShot) Remaining() uint32 {
	now := time.Now()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.t == nil || !o.due.After(now) {
		return 0
	}
	return uint32(o.due.Sub(now) / tickDur)
}
