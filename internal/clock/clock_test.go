package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(10*time.Second, func() { fired = append(fired, "late") })

	c.Advance(5 * time.Second)

	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Fatalf("unexpected firing order: %v", fired)
	}
	if got := c.Now(); !got.Equal(start.Add(5 * time.Second)) {
		t.Errorf("expected clock at +5s, got %v", got.Sub(start))
	}
	if c.Pending() != 1 {
		t.Errorf("expected 1 pending timer, got %d", c.Pending())
	}
}

func TestFakeStop(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	called := false
	timer := c.AfterFunc(time.Second, func() { called = true })

	if !timer.Stop() {
		t.Fatal("expected Stop to report an armed timer")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}
	c.Advance(time.Minute)
	if called {
		t.Error("stopped timer fired")
	}
}

func TestFakeRearmInsideCallback(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(10*time.Second, tick)
	}
	c.AfterFunc(10*time.Second, tick)

	c.Advance(35 * time.Second)

	if count != 3 {
		t.Errorf("expected 3 ticks in 35s, got %d", count)
	}
}
