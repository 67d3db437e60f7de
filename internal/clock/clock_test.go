package clock

import (
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := NewFake(start)
	if !fake.Now().Equal(start) {
		t.Fatalf("expected %s, got %s", start, fake.Now())
	}

	fake.Advance(90 * time.Second)
	if got := fake.Now().Sub(start); got != 90*time.Second {
		t.Fatalf("expected 90s elapsed, got %s", got)
	}

	later := start.Add(24 * time.Hour)
	fake.Set(later)
	if !fake.Now().Equal(later) {
		t.Fatalf("expected %s after Set, got %s", later, fake.Now())
	}
}

func TestRealIsMonotonicEnough(t *testing.T) {
	t.Parallel()

	var c Clock = Real{}
	before := time.Now()
	if c.Now().Before(before) {
		t.Fatalf("real clock went backwards")
	}
}
