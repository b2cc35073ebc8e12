package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_Success(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return nil
	}

	err := Do(context.Background(), operation)

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	err := Do(context.Background(), operation, WithInitialDelay(time.Millisecond))

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return errors.New("always fails")
	}

	err := Do(context.Background(), operation, WithMaxAttempts(3), WithInitialDelay(time.Millisecond))

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestDo_FatalNotRetried(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return Fatal(errors.New("permission denied"))
	}

	err := Do(context.Background(), operation, WithInitialDelay(time.Millisecond))

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestDo_BudgetExhausted(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return errors.New("slow failure")
	}

	err := Do(context.Background(), operation,
		WithMaxAttempts(10),
		WithInitialDelay(50*time.Millisecond),
		WithMultiplier(1.0),
		WithBudget(75*time.Millisecond))

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if attempts >= 10 {
		t.Errorf("Expected budget to cut retries short, got %d attempts", attempts)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	operation := func() error {
		attempts++
		cancel()
		return errors.New("failing while cancelled")
	}

	err := Do(ctx, operation, WithInitialDelay(10*time.Millisecond))

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestDo_AttemptObserver(t *testing.T) {
	var seen []int
	operation := func() error {
		if len(seen) < 2 {
			return errors.New("transient")
		}
		return nil
	}

	err := Do(context.Background(), operation,
		WithInitialDelay(time.Millisecond),
		WithAttemptObserver(func(attempt int) { seen = append(seen, attempt) }))

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("Expected attempts [1 2 3], got: %v", seen)
	}
}

func TestFatal_NilPassthrough(t *testing.T) {
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) should return nil")
	}
}

func TestIsFatal_WrappedChain(t *testing.T) {
	inner := Fatal(errors.New("bad request"))
	wrapped := errors.Join(errors.New("outer"), inner)
	if !IsFatal(wrapped) {
		t.Error("Expected wrapped fatal error to be detected")
	}
	if IsFatal(errors.New("plain")) {
		t.Error("Plain error should not be fatal")
	}
}
