package transport

import (
	"net"
	"testing"
	"time"

	"github.com/aistore/movefabric/msg"
)

func TestEncodeDecodeBatchRoundTrip(t *testing.T) {
	msgs := []*msg.Message{
		msg.New("/H", msg.TypeFile, "producer1", map[string]any{"uid": "a.dat", "uri": "file:///in/a.dat"}),
		msg.New("/H", msg.TypeBeat, "producer1", map[string]any{"min_interval": 30}),
	}
	body, err := EncodeBatch(msgs)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeBatch(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].Type != msg.TypeFile || got[1].Type != msg.TypeBeat {
		t.Errorf("types = %v, %v", got[0].Type, got[1].Type)
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestPublisherSubscriberRoundTrip(t *testing.T) {
	addr := freeAddr(t)
	pub := NewPublisher(addr)
	go pub.ListenAndServe()
	defer pub.Close()

	// give the listener a moment to bind
	time.Sleep(50 * time.Millisecond)

	sub := NewSubscriber(addr, "/H")
	defer sub.Close()

	received := make(chan *msg.Message, 1)
	go sub.Run(func(m *msg.Message) { received <- m })

	// wait for the subscriber's first long-poll to register before publishing
	time.Sleep(100 * time.Millisecond)
	pub.Publish(msg.New("/H/uid1", msg.TypeFile, "producer1", map[string]any{"uid": "uid1", "uri": "file:///in/uid1"}))

	select {
	case m := <-received:
		if m.Subject != "/H/uid1" {
			t.Errorf("Subject = %q", m.Subject)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}
