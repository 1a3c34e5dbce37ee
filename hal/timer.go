package hal

import (
	"sync"
	"time"
)

// scaledTimer implements Timer on the runtime timer. Its clock runs scale
// times faster than the wall clock.
type scaledTimer struct {
	start time.Time
	scale float64

	mu  sync.Mutex
	t   *time.Timer
	gen uint64
}

func newScaledTimer(scale float64) *scaledTimer {
	if scale <= 0 {
		scale = 1
	}
	return &scaledTimer{start: time.Now(), scale: scale}
}

func (t *scaledTimer) Now() time.Duration {
	return time.Duration(float64(time.Since(t.start)) * t.scale)
}

func (t *scaledTimer) SetAlarm(at time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	gen := t.gen
	d := time.Duration(float64(at-t.Now()) / t.scale)
	if d < 0 {
		d = 0
	}
	t.t = time.AfterFunc(d, func() {
		t.mu.Lock()
		stale := gen != t.gen
		t.mu.Unlock()
		if !stale {
			fn()
		}
	})
}

func (t *scaledTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}
