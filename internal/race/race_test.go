package race

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunOperationWins(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := Run(ctx, func(context.Context) (int, error) {
		return 42, nil
	}, func(int) {
		t.Error("release called for winning value")
	})
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Fatalf("got %d want 42", v)
	}
}

func TestRunOperationError(t *testing.T) {
	want := errors.New("boom")

	_, err := Run(context.Background(), func(context.Context) (int, error) {
		return 0, want
	}, nil)
	if !errors.Is(err, want) {
		t.Fatalf("got %v want %v", err, want)
	}
}

func TestRunDeadlineWinsAndReleasesLateValue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	released := make(chan int, 1)
	unblock := make(chan struct{})

	start := time.Now()
	_, err := Run(ctx, func(context.Context) (int, error) {
		<-unblock
		return 7, nil
	}, func(v int) {
		released <- v
	})
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v want deadline exceeded", err)
	}
	if elapsed < 50*time.Millisecond || elapsed > time.Second {
		t.Fatalf("resolved after %s", elapsed)
	}

	close(unblock)
	select {
	case v := <-released:
		if v != 7 {
			t.Fatalf("released %d want 7", v)
		}
	case <-time.After(time.Second):
		t.Fatal("late value was not released")
	}
}

func TestRunSimultaneousOutcomesSettleOnce(t *testing.T) {
	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)

		var released atomic.Int32
		v, err := Run(ctx, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 1, nil
		}, func(int) {
			released.Add(1)
		})
		cancel()

		// Give a losing goroutine time to run its release.
		time.Sleep(time.Millisecond)

		switch {
		case err == nil:
			if v != 1 || released.Load() != 0 {
				t.Fatalf("success with v=%d released=%d", v, released.Load())
			}
		case errors.Is(err, context.DeadlineExceeded):
			deadline := time.Now().Add(time.Second)
			for released.Load() == 0 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			if released.Load() != 1 {
				t.Fatalf("timeout won but late value released %d times", released.Load())
			}
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
