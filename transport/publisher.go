package transport

import (
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/aistore/movefabric/msg"
)

const longPollTimeout = 25 * time.Second

type waiter struct {
	topic string
	ch    chan *msg.Message
}

// Publisher serves topic-addressed announcements over long-polling HTTP
// GETs: a subscriber's request blocks until a matching message arrives or
// longPollTimeout elapses, then returns whatever queued up (possibly
// nothing). This is the announcement-bus substitute for the external
// pub/sub collaborator this module would otherwise depend on.
type Publisher struct {
	addr string
	srv  *fasthttp.Server

	mu      sync.Mutex
	waiters map[*waiter]struct{}
}

func NewPublisher(addr string) *Publisher {
	p := &Publisher{addr: addr, waiters: map[*waiter]struct{}{}}
	p.srv = &fasthttp.Server{Handler: p.handle}
	return p
}

func (p *Publisher) ListenAndServe() error { return p.srv.ListenAndServe(p.addr) }

func (p *Publisher) Close() error { return p.srv.Shutdown() }

func (p *Publisher) handle(ctx *fasthttp.RequestCtx) {
	if string(ctx.Path()) != "/subscribe" {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	topic := string(ctx.QueryArgs().Peek("topic"))
	w := &waiter{topic: topic, ch: make(chan *msg.Message, 64)}

	p.mu.Lock()
	p.waiters[w] = struct{}{}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.waiters, w)
		p.mu.Unlock()
	}()

	var batch []*msg.Message
	select {
	case m := <-w.ch:
		batch = append(batch, m)
	drain:
		for {
			select {
			case m2 := <-w.ch:
				batch = append(batch, m2)
			default:
				break drain
			}
		}
	case <-time.After(longPollTimeout):
	}

	body, err := EncodeBatch(batch)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/octet-stream")
	ctx.SetBody(body)
}

// Publish fans m out to every subscriber whose requested topic is a prefix
// of m.Subject (empty topic subscribes to everything).
func (p *Publisher) Publish(m *msg.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for w := range p.waiters {
		if w.topic == "" || strings.HasPrefix(m.Subject, w.topic) {
			select {
			case w.ch <- m:
			default:
			}
		}
	}
}

// PublishDel adapts Publisher to deferred.Publisher, publishing a "del"
// message on topic with {uri}.
func (p *Publisher) PublishDel(topic, uri string) {
	p.Publish(msg.New(topic, msg.TypeDel, "", map[string]any{"uri": uri}))
}
