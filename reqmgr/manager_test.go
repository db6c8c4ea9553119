package reqmgr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aistore/movefabric/cache"
	"github.com/aistore/movefabric/msg"
)

func TestDispatchPing(t *testing.T) {
	m := New(Manager{ChainName: "chain1", Station: "gs1"})
	reply := m.dispatch(msg.New("/chain1", msg.TypePing, "client", nil))
	if reply.Type != msg.TypePong {
		t.Fatalf("type = %v, want pong", reply.Type)
	}
	if reply.Data["station"] != "gs1" {
		t.Errorf("station = %v", reply.Data["station"])
	}
}

func TestDispatchInfoReturnsCachedEntries(t *testing.T) {
	c := cache.New(10)
	c.Push("/chain1/NOAA19-00042.dat")
	c.Push("/chain1/NOAA19-00043.dat")
	m := New(Manager{ChainName: "chain1", Cache: c})

	reply := m.dispatch(msg.New("/chain1", msg.TypeInfo, "client", map[string]any{}))
	if reply.Type != msg.TypeInfo {
		t.Fatalf("type = %v, want info", reply.Type)
	}
	files, _ := reply.Data["files"].([]any)
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2 entries", files)
	}
}

func TestDispatchPushRejectsURIOutsideOriginPattern(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "badfile.txt")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := New(Manager{ChainName: "chain1", OriginPattern: filepath.Join(dir, "{platform}-{orbit:05d}.dat")})
	req := msg.New("/chain1", msg.TypePush, "client", map[string]any{
		"uid":         "badfile.txt",
		"uri":         "file://" + src,
		"destination": "file://" + filepath.Join(dir, "out"),
	})

	reply := m.dispatch(req)
	if reply.Type != msg.TypeErr {
		t.Fatalf("type = %v, want err", reply.Type)
	}
}

func TestDispatchAckWithoutDeleterKeepsFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "NOAA19-00042.dat")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := New(Manager{ChainName: "chain1"})
	req := msg.New("/chain1", msg.TypeAck, "client", map[string]any{
		"uid": "NOAA19-00042.dat",
		"uri": "file://" + src,
	})

	reply := m.dispatch(req)
	if reply.Type != msg.TypeAck {
		t.Fatalf("type = %v, want ack", reply.Type)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("ack with no deleter configured must not touch the file: %v", err)
	}
}
