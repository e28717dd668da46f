package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/kbukum/crmkit/errors"
)

func fastConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:    maxRetries,
		BaseDelay:     time.Millisecond,
		BackoffFactor: 1.5,
	}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), fastConfig(3), func(int) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("unexpected result %q, %v", result, err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	var seen []int
	result, err := Retry(context.Background(), fastConfig(3), func(n int) (string, error) {
		seen = append(seen, n)
		if n < 2 {
			return "", errors.Network(stderrors.New("connection reset"))
		}
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("unexpected result %q, %v", result, err)
	}
	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Errorf("expected retry counts [0 1 2], got %v", seen)
	}
}

func TestRetry_AttemptsMaxRetriesPlusOne(t *testing.T) {
	tests := []struct {
		maxRetries int
		want       int
	}{
		{0, 1},
		{1, 2},
		{3, 4},
	}
	for _, tc := range tests {
		calls := 0
		last := errors.Timeout(nil)
		_, err := Retry(context.Background(), fastConfig(tc.maxRetries), func(int) (int, error) {
			calls++
			return 0, last
		})
		if calls != tc.want {
			t.Errorf("maxRetries=%d: expected %d attempts, got %d", tc.maxRetries, tc.want, calls)
		}
		if !errors.IsRetriesExhausted(err) {
			t.Fatalf("expected RETRIES_EXHAUSTED, got %v", err)
		}
		app, _ := errors.AsAppError(err)
		if app.Attempts != tc.want {
			t.Errorf("expected Attempts=%d, got %d", tc.want, app.Attempts)
		}
		if !errors.IsTimeout(err) {
			t.Error("exhausted error should still expose the last cause")
		}
	}
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	retried := false
	cfg := fastConfig(3)
	cfg.OnRetry = func(int, error, time.Duration) { retried = true }

	_, err := Retry(context.Background(), cfg, func(int) (int, error) {
		calls++
		return 0, errors.SessionExpired()
	})
	if calls != 1 || retried {
		t.Errorf("expected one attempt and no backoff, got %d calls (retried=%v)", calls, retried)
	}
	if !errors.IsSessionExpired(err) || errors.IsRetriesExhausted(err) {
		t.Errorf("expected bare SESSION_EXPIRED, got %v", err)
	}
}

func TestRetry_CustomRetryIf(t *testing.T) {
	cfg := fastConfig(2)
	cfg.RetryIf = func(error) bool { return true }
	calls := 0
	_, _ = Retry(context.Background(), cfg, func(int) (struct{}, error) {
		calls++
		return struct{}{}, stderrors.New("plain")
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_DelaysStrictlyIncrease(t *testing.T) {
	var delays []time.Duration
	cfg := fastConfig(3)
	cfg.OnRetry = func(_ int, _ error, d time.Duration) { delays = append(delays, d) }

	_, _ = Retry(context.Background(), cfg, func(int) (int, error) {
		return 0, errors.Network(nil)
	})

	if len(delays) != 3 {
		t.Fatalf("expected 3 delays, got %v", delays)
	}
	for i := 1; i < len(delays); i++ {
		if delays[i] <= delays[i-1] {
			t.Errorf("delays not strictly increasing: %v", delays)
		}
	}
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, BackoffFactor: 1.5}
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, time.Second},
		{1, 1500 * time.Millisecond},
		{2, 2250 * time.Millisecond},
		{3, 3375 * time.Millisecond},
	}
	for _, tc := range tests {
		if got := Backoff(cfg, tc.retryCount); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.retryCount, got, tc.want)
		}
	}

	cfg.MaxDelay = 2 * time.Second
	if got := Backoff(cfg, 3); got != 2*time.Second {
		t.Errorf("expected cap at 2s, got %v", got)
	}
}

func TestRetryConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RetryConfig
		wantErr bool
	}{
		{"defaults", DefaultRetryConfig(), false},
		{"uncapped", RetryConfig{MaxRetries: 5, BaseDelay: time.Second, BackoffFactor: 1.5}, false},
		{"cap above last delay", RetryConfig{MaxRetries: 3, BaseDelay: time.Second, BackoffFactor: 1.5, MaxDelay: 2250 * time.Millisecond}, false},
		{"cap flattens delays", RetryConfig{MaxRetries: 3, BaseDelay: time.Second, BackoffFactor: 1.5, MaxDelay: 1500 * time.Millisecond}, true},
		{"cap with a single retry", RetryConfig{MaxRetries: 1, BaseDelay: time.Second, BackoffFactor: 1.5, MaxDelay: time.Millisecond}, false},
		{"flat factor", RetryConfig{MaxRetries: 2, BaseDelay: time.Second, BackoffFactor: 1}, true},
		{"negative retries", RetryConfig{MaxRetries: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			cfg := tt.cfg
			for n := 1; n < cfg.MaxRetries; n++ {
				if prev, cur := Backoff(cfg, n-1), Backoff(cfg, n); cur <= prev {
					t.Errorf("delay %d = %v, not above %v", n, cur, prev)
				}
			}
		})
	}
}

func TestBackoff_JitterStaysInRange(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, BackoffFactor: 2, Jitter: 0.1}
	for i := 0; i < 50; i++ {
		d := Backoff(cfg, 1)
		if d < 180*time.Millisecond || d > 220*time.Millisecond {
			t.Fatalf("jittered delay %v out of range", d)
		}
	}
}

func TestRetry_RespectsContextDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, BackoffFactor: 1.5}
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	calls := 0
	_, err := Retry(ctx, cfg, func(int) (int, error) {
		calls++
		return 0, errors.Network(nil)
	})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Retry(ctx, fastConfig(3), func(int) (int, error) {
		calls++
		return 0, nil
	})
	if !stderrors.Is(err, context.Canceled) || calls != 0 {
		t.Errorf("expected no attempts and Canceled, got %d calls, %v", calls, err)
	}
}
