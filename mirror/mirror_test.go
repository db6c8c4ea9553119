package mirror

import (
	"testing"

	"github.com/aistore/movefabric/msg"
)

func TestFirstUID(t *testing.T) {
	m := msg.New("/H/uid1", msg.TypeFile, "producer1", map[string]any{"uid": "uid1", "uri": "file:///in/uid1"})
	uid, ok := firstUID(m)
	if !ok || uid != "uid1" {
		t.Errorf("firstUID = %q, %v", uid, ok)
	}
}

func TestCloneMessageIsIndependent(t *testing.T) {
	orig := msg.New("/H/uid1", msg.TypeFile, "producer1", map[string]any{"uid": "uid1"})
	clone := cloneMessage(orig)
	clone.Data["request_address"] = "mirrorhost:9010"
	if _, present := orig.Data["request_address"]; present {
		t.Error("expected clone's mutation not to affect the original message")
	}
}
