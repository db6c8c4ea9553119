package supervisor

import (
	"time"

	"github.com/aistore/movefabric/msg"
	"github.com/aistore/movefabric/transport"
)

// HeartbeatPublisher periodically announces a "beat" message on
// msg.HeartbeatTopic so every subscribed consumer's heartbeat monitor
// stays armed. None of the cmd/ entry points starts one.
type HeartbeatPublisher struct {
	pub      *transport.Publisher
	sender   string
	interval time.Duration
	stop     chan struct{}
}

func NewHeartbeatPublisher(pub *transport.Publisher, sender string, interval time.Duration) *HeartbeatPublisher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HeartbeatPublisher{pub: pub, sender: sender, interval: interval, stop: make(chan struct{})}
}

func (h *HeartbeatPublisher) Run() {
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			h.pub.Publish(msg.New(msg.HeartbeatTopic, msg.TypeBeat, h.sender,
				map[string]any{"min_interval": h.interval.Seconds()}))
		case <-h.stop:
			return
		}
	}
}

func (h *HeartbeatPublisher) Stop() { close(h.stop) }
