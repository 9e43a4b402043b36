package retry

import (
	"context"
	"testing"
	"time"

	"git.home.luguber.info/inful/shipwright/internal/config"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffLinear {
		t.Fatalf("expected linear default mode got %s", p.Mode)
	}
	if p.Initial != time.Second || p.Max != 30*time.Second || p.MaxRetries != 2 {
		t.Fatalf("unexpected defaults %+v", p)
	}
}

func TestNewPolicyClampsInitial(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != config.RetryBackoffFixed || p.MaxRetries != 5 {
		t.Fatalf("unexpected policy %+v", p)
	}
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(config.BuildConfig{RetryBackoff: "Exponential", RetryInitialDelay: 10 * time.Millisecond, RetryMaxDelay: time.Second, MaxRetries: 4})
	if p.Mode != config.RetryBackoffExponential || p.MaxRetries != 4 || p.Initial != 10*time.Millisecond {
		t.Fatalf("unexpected policy %+v", p)
	}
}

func TestDelayModes(t *testing.T) {
	ms := time.Millisecond
	cases := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{"fixed", NewPolicy(config.RetryBackoffFixed, 100*ms, 500*ms, 3), 3, 100 * ms},
		{"linear 2", NewPolicy(config.RetryBackoffLinear, 100*ms, 250*ms, 5), 2, 200 * ms},
		{"linear capped", NewPolicy(config.RetryBackoffLinear, 100*ms, 250*ms, 5), 3, 250 * ms},
		{"exponential 3", NewPolicy(config.RetryBackoffExponential, 100*ms, time.Second, 5), 3, 400 * ms},
		{"exponential capped", NewPolicy(config.RetryBackoffExponential, 100*ms, time.Second, 5), 5, time.Second},
		{"zero attempt", DefaultPolicy(), 0, 0},
	}
	for _, c := range cases {
		if got := c.policy.Delay(c.attempt); got != c.want {
			t.Fatalf("%s: attempt %d expected %v got %v", c.name, c.attempt, c.want, got)
		}
	}
}

func TestWaitHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 1)
	if err := p.Wait(ctx, 1); err == nil {
		t.Fatal("expected cancellation error")
	}
	if err := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 1).Wait(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	if err := (Policy{Initial: 0, Max: time.Second}).Validate(); err == nil {
		t.Fatal("expected error for zero initial")
	}
}
