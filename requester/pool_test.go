package requester

import (
	"net"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/aistore/movefabric/msg"
)

func TestSendAndRecvRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBody(ctx.PostBody())
	}}
	go srv.Serve(ln)
	defer srv.Shutdown()

	r := New(ln.Addr().String())
	m := msg.New("/H/uid1", msg.TypePing, "consumer1", nil)
	reply, err := r.SendAndRecv(m, 2*time.Second)
	if err != nil {
		t.Fatalf("SendAndRecv: %v", err)
	}
	if reply.Subject != m.Subject {
		t.Errorf("Subject = %q, want %q", reply.Subject, m.Subject)
	}
}

func TestSendAndRecvTimeoutJamsAfterFiveBlocks(t *testing.T) {
	r := New("127.0.0.1:1") // nothing listening: every round trip fails fast
	m := msg.New("/H/uid1", msg.TypePing, "consumer1", nil)

	for i := 0; i < jammedAt; i++ {
		if _, err := r.SendAndRecv(m, 50*time.Millisecond); err == nil {
			t.Fatalf("attempt %d: expected error against closed port", i)
		}
	}
	if !r.Jammed() {
		t.Error("expected requester to be jammed after 5 consecutive failure blocks")
	}
}

func TestPoolReusesRequesterPerPeer(t *testing.T) {
	p := NewPool()
	a := p.Get("host1:9010")
	b := p.Get("host1:9010")
	if a != b {
		t.Error("expected the same *Requester for repeated Get on one peer")
	}
	c := p.Get("host2:9010")
	if a == c {
		t.Error("expected distinct *Requester per peer")
	}
}
