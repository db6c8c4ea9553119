package consumer

import (
	"sync"
	"time"
)

const defaultMinInterval = 30 * time.Second

// heartbeatMonitor arms a deadline timer on each received "beat" message
// and fires onMissed if no beat arrives before alarmScale x min_interval
// elapses. Disarmed entirely when alarmScale <= 0.
type heartbeatMonitor struct {
	alarmScale float64
	onMissed   func()

	mu    sync.Mutex
	timer *time.Timer
}

func newHeartbeatMonitor(alarmScale float64, onMissed func()) *heartbeatMonitor {
	return &heartbeatMonitor{alarmScale: alarmScale, onMissed: onMissed}
}

func (h *heartbeatMonitor) armed() bool { return h.alarmScale > 0 }

// Feed resets the deadline to alarmScale x minInterval (falling back to
// defaultMinInterval when the beat payload omits min_interval).
func (h *heartbeatMonitor) Feed(minInterval time.Duration) {
	if !h.armed() {
		return
	}
	if minInterval <= 0 {
		minInterval = defaultMinInterval
	}
	deadline := time.Duration(h.alarmScale * float64(minInterval))

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer == nil {
		h.timer = time.AfterFunc(deadline, h.onMissed)
		return
	}
	h.timer.Reset(deadline)
}

func (h *heartbeatMonitor) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
}
