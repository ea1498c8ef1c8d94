package ttlcache

import (
	"testing"
	"time"
)

func TestSeenDedupWindow(t *testing.T) {
	c := New[struct{}](60 * time.Second)
	now := time.Unix(1000, 0)
	if c.Seen("k", now) {
		t.Fatal("first sighting should be false")
	}
	if !c.Seen("k", now.Add(10*time.Second)) {
		t.Fatal("within window should be seen")
	}
	// each sighting restarts the window: the call at +10s moved expiry to +70s
	if c.Seen("k", now.Add(71*time.Second)) {
		t.Fatal("after TTL should not be seen")
	}
}

func TestGetSetExpiry(t *testing.T) {
	c := New[int](2 * time.Second)
	now := time.Unix(0, 0)
	c.Set("a", 42, now)
	if v, ok := c.Get("a", now.Add(time.Second)); !ok || v != 42 {
		t.Fatalf("got %v %v", v, ok)
	}
	if _, ok := c.Get("a", now.Add(3*time.Second)); ok {
		t.Fatal("expected expired")
	}
}
