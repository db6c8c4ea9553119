package transport

import (
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/aistore/movefabric/cmn/nlog"
	"github.com/aistore/movefabric/msg"
)

// Subscriber long-polls a Publisher's /subscribe endpoint in a loop,
// handing each decoded message to handle, and backing off briefly on
// transport errors before reconnecting — one instance per provider, as
// C9 requires.
type Subscriber struct {
	addr, topic string
	client      *fasthttp.Client
	stop        chan struct{}
}

func NewSubscriber(addr, topic string) *Subscriber {
	return &Subscriber{
		addr:   addr,
		topic:  topic,
		client: &fasthttp.Client{MaxConnsPerHost: 4},
		stop:   make(chan struct{}),
	}
}

// Run blocks, delivering messages to handle until Close is called.
func (s *Subscriber) Run(handle func(*msg.Message)) {
	backoff := 200 * time.Millisecond
	const maxBackoff = 10 * time.Second
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		msgs, err := s.poll()
		if err != nil {
			nlog.Warningf("transport: subscriber %s: %v", s.addr, err)
			select {
			case <-time.After(backoff):
			case <-s.stop:
				return
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = 200 * time.Millisecond
		for _, m := range msgs {
			handle(m)
		}
	}
}

func (s *Subscriber) poll() ([]*msg.Message, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := fmt.Sprintf("http://%s/subscribe?topic=%s", s.addr, url.QueryEscape(s.topic))
	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := s.client.DoTimeout(req, resp, longPollTimeout+5*time.Second); err != nil {
		return nil, fmt.Errorf("poll %s: %w", s.addr, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("poll %s: status %d", s.addr, resp.StatusCode())
	}
	body := append([]byte(nil), resp.Body()...)
	return DecodeBatch(body)
}

func (s *Subscriber) Close() { close(s.stop) }
