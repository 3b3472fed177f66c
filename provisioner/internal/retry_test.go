package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gammadia/freetier/acquirer"
)

var errTransient = &acquirer.ProviderError{Status: 429, Code: "TooManyRequests"}

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), 3, func() error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), 3, func() error {
		attempts++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_StopsOnNonTransient(t *testing.T) {
	attempts := 0
	fatal := &acquirer.ProviderError{Status: 404, Code: "NotAuthorizedOrNotFound"}
	err := Retry(context.Background(), 5, func() error {
		attempts++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := Retry(ctx, 10, func() error {
		attempts++
		return errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts >= 10 {
		t.Fatalf("expected fewer than 10 attempts due to cancellation, got %d", attempts)
	}
}

func TestRetryResult_Success(t *testing.T) {
	attempts := 0
	result, err := RetryResult(context.Background(), 3, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected 'ok', got %q", result)
	}
}

func TestRetryResultIf_CustomPredicate(t *testing.T) {
	attempts := 0
	result, err := RetryResultIf(context.Background(), 2, func(error) bool { return true }, func() (int, error) {
		attempts++
		return -1, errors.New("always fails")
	})
	if err == nil || err.Error() != "always fails" {
		t.Fatalf("expected 'always fails' error, got %v", err)
	}
	if result != -1 {
		t.Fatalf("expected -1, got %d", result)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}
