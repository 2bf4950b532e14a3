package backoff

import (
	"context"
	"testing"
	"time"
)

func TestWaitWithYieldsBeforeSleeping(t *testing.T) {
	ctx := context.Background()

	var first time.Duration
	got := false
	for attempt, elapsed := range WaitWith(ctx, time.Second, 50*time.Millisecond, 200*time.Millisecond) {
		if attempt != 0 {
			t.Errorf("first attempt = %d, want 0", attempt)
		}
		first = elapsed
		got = true
		break
	}

	if !got {
		t.Fatal("iterator yielded nothing")
	}
	if first > 20*time.Millisecond {
		t.Errorf("first yield arrived after %v, want immediate", first)
	}
}

func TestWaitWithSleepScheduleGrowsAndCaps(t *testing.T) {
	ctx := context.Background()
	initial := 20 * time.Millisecond
	max := 80 * time.Millisecond

	var stamps []time.Time
	for attempt := range WaitWith(ctx, 0, initial, max) {
		stamps = append(stamps, time.Now())
		if attempt == 5 {
			break
		}
	}
	if len(stamps) != 6 {
		t.Fatalf("yields = %d, want 6", len(stamps))
	}

	var gaps []time.Duration
	for i := 1; i < len(stamps); i++ {
		gaps = append(gaps, stamps[i].Sub(stamps[i-1]))
	}

	// Expected pauses: 20, 40, 80, 80, 80 ms.
	if gaps[0] < initial {
		t.Errorf("first pause %v shorter than initial delay %v", gaps[0], initial)
	}
	for i := 1; i < len(gaps); i++ {
		// Scheduler noise allowance; growth must still be visible overall.
		if gaps[i] < gaps[i-1]-10*time.Millisecond {
			t.Errorf("pause %d (%v) shrank from previous (%v)", i, gaps[i], gaps[i-1])
		}
	}
	if gaps[2] <= gaps[0] {
		t.Errorf("pause 3 (%v) did not grow from pause 1 (%v)", gaps[2], gaps[0])
	}
	for i, g := range gaps {
		if g > max+60*time.Millisecond {
			t.Errorf("pause %d = %v exceeds cap %v", i, g, max)
		}
	}
}

func TestWaitWithStopsAfterBudget(t *testing.T) {
	ctx := context.Background()
	timeout := 150 * time.Millisecond

	start := time.Now()
	var last time.Duration
	yields := 0
	for _, elapsed := range WaitWith(ctx, timeout, 20*time.Millisecond, 50*time.Millisecond) {
		last = elapsed
		yields++
	}
	total := time.Since(start)

	if yields == 0 {
		t.Fatal("iterator yielded nothing")
	}
	if last <= timeout {
		t.Errorf("final elapsed = %v, want > %v so the consumer observes the over-budget state", last, timeout)
	}
	if total < timeout {
		t.Errorf("iterator ended after %v, before the %v budget", total, timeout)
	}
	// Sleeps are clamped to the remaining budget, so overshoot stays small.
	if total > timeout+100*time.Millisecond {
		t.Errorf("iterator ran %v, far past the %v budget", total, timeout)
	}
}

func TestWaitWithNoDeadline(t *testing.T) {
	ctx := context.Background()

	for _, timeout := range []time.Duration{0, -time.Second} {
		yields := 0
		for attempt := range WaitWith(ctx, timeout, time.Millisecond, 2*time.Millisecond) {
			yields++
			if attempt == 9 {
				break
			}
		}
		if yields != 10 {
			t.Errorf("timeout %v: yields = %d, want 10 (only the consumer stops an unbounded wait)", timeout, yields)
		}
	}
}

func TestWaitWithContextCancelStopsIteration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	yields := 0
	for range WaitWith(ctx, 0, 50*time.Millisecond, 100*time.Millisecond) {
		yields++
		cancel()
	}
	if yields != 1 {
		t.Errorf("yields = %d, want 1 (cancellation takes effect at the next sleep)", yields)
	}
}

func TestWaitAttemptNumbersAreSequential(t *testing.T) {
	ctx := context.Background()

	want := 0
	for attempt := range WaitWith(ctx, 0, time.Millisecond, time.Millisecond) {
		if attempt != want {
			t.Fatalf("attempt = %d, want %d", attempt, want)
		}
		want++
		if want == 5 {
			break
		}
	}
}

func TestWaitUsesPackageDefaults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	n := 0
	for range Wait(ctx, time.Second) {
		n++
		if n == 2 {
			break
		}
	}
	gap := time.Since(start)
	if gap < DefaultInitialDelay {
		t.Errorf("gap before second yield = %v, want >= %v", gap, DefaultInitialDelay)
	}
}
