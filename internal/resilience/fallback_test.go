package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCall_PrimaryWins(t *testing.T) {
	t.Parallel()

	c := NewChain("a", "A", BreakerConfig{})
	c.Add("b", "B")

	var tried []string
	got, err := Call(c, func(s string) (string, error) {
		tried = append(tried, s)
		return s + "!", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "A!" || len(tried) != 1 {
		t.Fatalf("got %q after %v, want A! from primary only", got, tried)
	}
}

func TestCall_FailsOver(t *testing.T) {
	t.Parallel()

	c := NewChain("a", "A", BreakerConfig{})
	c.Add("b", "B")

	got, err := Call(c, func(s string) (string, error) {
		if s == "A" {
			return "", errBackend
		}
		return s, nil
	})
	if err != nil || got != "B" {
		t.Fatalf("got (%q, %v), want (B, nil)", got, err)
	}
}

func TestCall_AllFail(t *testing.T) {
	t.Parallel()

	c := NewChain("a", 1, BreakerConfig{})
	c.Add("b", 2)

	_, err := Call(c, func(int) (int, error) { return 0, errBackend })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errBackend) {
		t.Fatalf("err = %v, should wrap the last backend error", err)
	}
}

func TestCall_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	c := NewChain("a", "A", BreakerConfig{Threshold: 1, CoolDown: time.Hour})
	c.Add("b", "B")

	calls := map[string]int{}
	fn := func(s string) (string, error) {
		calls[s]++
		if s == "A" {
			return "", errBackend
		}
		return s, nil
	}
	for i := 0; i < 3; i++ {
		if _, err := Call(c, fn); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if calls["A"] != 1 {
		t.Errorf("primary called %d times, want 1 before its breaker opened", calls["A"])
	}
	if calls["B"] != 3 {
		t.Errorf("fallback called %d times, want 3", calls["B"])
	}
	if c.Primary() != "A" || c.Len() != 2 {
		t.Errorf("Primary()=%q Len()=%d", c.Primary(), c.Len())
	}
}
