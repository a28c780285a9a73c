package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresDueTimersInOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var order []string
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	c.AfterFunc(time.Second, func() { order = append(order, "a") })
	c.AfterFunc(time.Minute, func() { order = append(order, "late") })

	c.Advance(5 * time.Second)

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected fire order %v", order)
	}
	if got := c.Now(); !got.Equal(start.Add(5 * time.Second)) {
		t.Fatalf("expected now to be start+5s, got %v", got)
	}
	if c.Pending() != 1 {
		t.Fatalf("expected one pending timer, got %d", c.Pending())
	}
}

func TestFakeStopPreventsFire(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("expected first Stop to report true")
	}
	if timer.Stop() {
		t.Fatal("expected second Stop to report false")
	}

	c.Advance(time.Hour)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", c.Pending())
	}
}

func TestFakeCallbackObservesDeadlineAndCanReschedule(t *testing.T) {
	start := time.Unix(1000, 0)
	c := NewFake(start)

	var seen []time.Time
	var tick func()
	tick = func() {
		seen = append(seen, c.Now())
		if len(seen) < 3 {
			c.AfterFunc(10*time.Second, tick)
		}
	}
	c.AfterFunc(10*time.Second, tick)

	c.Advance(time.Minute)

	if len(seen) != 3 {
		t.Fatalf("expected 3 ticks, got %d", len(seen))
	}
	for i, ts := range seen {
		want := start.Add(time.Duration(i+1) * 10 * time.Second)
		if !ts.Equal(want) {
			t.Fatalf("tick %d saw %v, want %v", i, ts, want)
		}
	}
}

func TestFakeZeroDelayFiresOnAdvanceZero(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	fired := 0
	c.AfterFunc(0, func() { fired++ })
	if fired != 0 {
		t.Fatal("zero-delay timer must not fire before Advance")
	}
	c.Advance(0)
	if fired != 1 {
		t.Fatalf("expected one fire, got %d", fired)
	}
}

func TestFakeSetBackwardsDoesNotFire(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewFake(start)

	fired := false
	c.AfterFunc(time.Second, func() { fired = true })
	c.Set(start.Add(-time.Hour))

	if fired {
		t.Fatal("timer fired when moving clock backwards")
	}
	if _, ok := c.NextDeadline(); !ok {
		t.Fatal("expected a pending deadline")
	}
}
