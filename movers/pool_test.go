package movers

import (
	"testing"
	"time"
)

func TestPoolGetPutRoundTrip(t *testing.T) {
	closed := make(chan int, 1)
	p := NewPool[int](50*time.Millisecond, func(c int) { closed <- c })

	p.Put("h", "21", "u", 7)
	got, ok := p.Get("h", "21", "u")
	if !ok || got != 7 {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	// Get cancels the idle timer, so putting it back resets the clock.
	p.Put("h", "21", "u", got)
	select {
	case <-closed:
		t.Fatal("closeFn fired before idle timeout")
	case <-time.After(10 * time.Millisecond):
	}

	select {
	case c := <-closed:
		if c != 7 {
			t.Errorf("closeFn got %d, want 7", c)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("closeFn never fired")
	}
}

func TestPoolAtMostOneConnectionPerPeer(t *testing.T) {
	p := NewPool[int](time.Minute, func(int) {})
	p.Put("h", "22", "u", 1)
	p.Put("h", "22", "u", 2) // overwrite, simulating a fresh connect replacing a stale one
	got, ok := p.Get("h", "22", "u")
	if !ok || got != 2 {
		t.Fatalf("expected single overwritten entry, got %v %v", got, ok)
	}
	// Get is exclusive acquisition: a second Get before any Put finds nothing.
	if _, ok := p.Get("h", "22", "u"); ok {
		t.Fatal("second concurrent Get should not see the already-acquired connection")
	}
}
