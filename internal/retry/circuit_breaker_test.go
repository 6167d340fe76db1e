package retry

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

var errNoServer = errors.New("No server of type STREAMING")

// fail sends one request through cb and reports it as failed.
func fail(t *testing.T, cb *CircuitBreaker) {
	t.Helper()
	if err := cb.Allow(); err != nil {
		t.Fatalf("request rejected: %v", err)
	}
	cb.Record(errNoServer)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Hour, HalfOpenMax: 1})

	for i := 0; i < 2; i++ {
		fail(t, cb)
		if cb.CurrentState() != StateClosed {
			t.Fatalf("opened after %d failures", i+1)
		}
	}
	fail(t, cb)

	if cb.CurrentState() != StateOpen {
		t.Errorf("expected open after 3 failures, got %s", cb.CurrentState())
	}
	if err := cb.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
}

func TestCircuitBreaker_AllowRecord(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: 10 * time.Millisecond, HalfOpenMax: 1})

	fail(t, cb)
	fail(t, cb)
	if err := cb.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("request after cool-down rejected: %v", err)
	}
	cb.Record(nil)
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed after success, got %s", cb.CurrentState())
	}
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	tests := []struct {
		name    string
		results []error
		want    State
	}{
		{"one success of two", []error{nil}, StateHalfOpen},
		{"two successes", []error{nil, nil}, StateClosed},
		{"failure reopens", []error{errNoServer}, StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond, HalfOpenMax: 2})
			fail(t, cb)
			time.Sleep(20 * time.Millisecond)

			for _, r := range tt.results {
				if err := cb.Allow(); err != nil {
					t.Fatalf("rejected: %v", err)
				}
				cb.Record(r)
			}
			if got := cb.CurrentState(); got != tt.want {
				t.Errorf("state = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour, HalfOpenMax: 1})
	fail(t, cb)
	fail(t, cb)

	cb.Reset()
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed after reset, got %s", cb.CurrentState())
	}
	// The streak starts over: one failure is below the threshold.
	fail(t, cb)
	if cb.CurrentState() != StateClosed {
		t.Errorf("failure streak survived Reset")
	}
}

func TestCircuitBreaker_StateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  1,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, fmt.Sprintf("%s>%s", from, to))
		},
	})

	fail(t, cb)
	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatal(err)
	}
	cb.Record(nil)

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if fmt.Sprint(transitions) != fmt.Sprint(want) {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}
}

func TestCircuitBreaker_SuccessClearsStreak(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Hour, HalfOpenMax: 1})

	fail(t, cb)
	fail(t, cb)
	cb.Record(nil)
	fail(t, cb)
	fail(t, cb)

	if cb.CurrentState() != StateClosed {
		t.Errorf("success did not clear the failure streak")
	}
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	for _, cfg := range []*CircuitBreakerConfig{nil, {}} {
		cb := NewCircuitBreaker(cfg)
		if cb.cfg.MaxFailures != 5 || cb.cfg.HalfOpenMax != 2 || cb.cfg.ResetTimeout != 30*time.Second {
			t.Errorf("NewCircuitBreaker(%v) config = %+v", cfg, cb.cfg)
		}
	}
}

func TestState_String(t *testing.T) {
	if s := State(7).String(); s != "unknown" {
		t.Errorf("State(7) = %q", s)
	}
	if s := StateHalfOpen.String(); s != "half-open" {
		t.Errorf("StateHalfOpen = %q", s)
	}
}
