package retry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fastPolicy clamps every wait to a millisecond so tests do not sleep.
func fastPolicy(mode string) Policy {
	return Policy{
		MaxRetries:    2,
		BackoffFactor: 2,
		MaxWait:       time.Millisecond,
		Mode:          mode,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(ModeHard), discardLogger(), "op",
		func(context.Context) (int, error) {
			calls++
			return 42, nil
		}, 0)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Errorf("got %d after %d calls, want 42 after 1", got, calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(ModeHard), discardLogger(), "op",
		func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		}, "")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls, want ok after 3", got, calls)
	}
}

func TestDoHardModeExhaustion(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := Do(context.Background(), fastPolicy(ModeHard), discardLogger(), "op",
		func(context.Context) (int, error) {
			calls++
			return 0, boom
		}, 0)
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v, want ErrExhausted", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want the last cause wrapped", err)
	}
	// One initial attempt plus MaxRetries.
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoSoftModeReturnsFallback(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(ModeSoft), discardLogger(), "op",
		func(context.Context) (string, error) {
			calls++
			return "", errors.New("boom")
		}, "fallback")
	if err != nil {
		t.Fatalf("soft mode should not surface exhaustion: %v", err)
	}
	if got != "fallback" || calls != 3 {
		t.Errorf("got %q after %d calls, want fallback after 3", got, calls)
	}
}

func TestDoClassifyStopsRetry(t *testing.T) {
	badInput := errors.New("invalid input")
	p := fastPolicy(ModeHard)
	p.Classify = func(err error) bool { return !errors.Is(err, badInput) }

	calls := 0
	_, err := Do(context.Background(), p, discardLogger(), "op",
		func(context.Context) (int, error) {
			calls++
			return 0, badInput
		}, 0)
	if calls != 1 {
		t.Errorf("non-retryable error retried %d times", calls-1)
	}
	if errors.Is(err, ErrExhausted) {
		t.Error("refused error should not read as exhaustion")
	}
	if !errors.Is(err, badInput) {
		t.Errorf("err = %v, want the cause", err)
	}

	p.Mode = ModeSoft
	got, err := Do(context.Background(), p, discardLogger(), "op",
		func(context.Context) (int, error) {
			return 0, badInput
		}, 7)
	if err != nil || got != 7 {
		t.Errorf("soft refusal = (%d, %v), want (7, nil)", got, err)
	}
}

func TestDoContextCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxRetries: 5, BackoffFactor: 2, MaxWait: 10 * time.Second, Mode: ModeSoft}

	calls := 0
	_, err := Do(ctx, p, discardLogger(), "op",
		func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, errors.New("failing while caller cancels")
		}, 99)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled even in soft mode", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry after cancellation)", calls)
	}
}

func TestDoLogsEachFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	calls := 0
	_, err := Do(context.Background(), fastPolicy(ModeHard), logger, "health-check",
		func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("connection refused")
			}
			return 1, nil
		}, 0)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	logged := buf.String()
	if !strings.Contains(logged, "health-check attempt 1 failed") {
		t.Errorf("log missing attempt count: %q", logged)
	}
	if !strings.Contains(logged, "next attempt in") {
		t.Errorf("log missing wait time: %q", logged)
	}
}

func TestRunWrapsVoidOperations(t *testing.T) {
	calls := 0
	err := Run(context.Background(), fastPolicy(ModeHard), discardLogger(), "op",
		func(context.Context) error {
			calls++
			if calls < 2 {
				return errors.New("transient")
			}
			return nil
		})
	if err != nil || calls != 2 {
		t.Errorf("Run = %v after %d calls, want nil after 2", err, calls)
	}
}

func TestWaitScheduleMonotonicAndCapped(t *testing.T) {
	b := newExponential(Policy{BackoffFactor: 2, MaxWait: 5 * time.Second}.withDefaults())

	want := []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	prev := time.Duration(0)
	for i, w := range want {
		got := b.NextBackOff()
		if got != w {
			t.Errorf("wait %d = %s, want %s", i+1, got, w)
		}
		if got < prev {
			t.Errorf("wait %d decreased: %s after %s", i+1, got, prev)
		}
		if got > 5*time.Second {
			t.Errorf("wait %d = %s exceeds the cap", i+1, got)
		}
		prev = got
	}
}

func TestWaitScheduleClampsLargeFactor(t *testing.T) {
	b := newExponential(Policy{BackoffFactor: 60, MaxWait: 5 * time.Second}.withDefaults())
	if got := b.NextBackOff(); got != 5*time.Second {
		t.Errorf("first wait = %s, want the 5s cap", got)
	}
}
