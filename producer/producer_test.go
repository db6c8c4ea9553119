package producer

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aistore/movefabric/config"
	"github.com/aistore/movefabric/msg"
	"github.com/aistore/movefabric/transport"
)

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

func TestChainPublishesFileAnnouncement(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Chain{
		Name:          "chain1",
		OriginPattern: filepath.Join(dir, "{platform}-{orbit:05d}.dat"),
		Topic:         "/chain1",
		Info:          map[string]string{"sensor": "avhrr"},
	}

	addr := freeAddr(t)
	pub := transport.NewPublisher(addr)
	go pub.ListenAndServe()
	defer pub.Close()
	time.Sleep(50 * time.Millisecond)

	c, err := New(cfg, pub, "host1")
	if err != nil {
		t.Fatal(err)
	}
	go c.Run(true)
	defer c.Stop()
	time.Sleep(50 * time.Millisecond)

	sub := transport.NewSubscriber(addr, "/chain1")
	defer sub.Close()
	received := make(chan *msg.Message, 1)
	go sub.Run(func(m *msg.Message) { received <- m })
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "NOAA19-00042.dat"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-received:
		if m.Data["platform"] != "NOAA19" {
			t.Errorf("platform = %v", m.Data["platform"])
		}
		if m.Data["sensor"] != "avhrr" {
			t.Errorf("sensor = %v", m.Data["sensor"])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for announcement")
	}
}
