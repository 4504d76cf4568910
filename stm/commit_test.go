package stm

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestConcurrentIncrements(t *testing.T) {
	t.Parallel()

	const (
		workers = 16
		rounds  = 500
	)
	ref := NewRef(0)
	increment := Update[int](ref, func(n int) int { return n + 1 })

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < rounds; i++ {
				if _, err := Atomically(context.Background(), increment); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, workers*rounds, ref.UnsafeGet())
	assert.Equal(t, uint64(workers*rounds), ref.Versioned().Version)
}

func transfer(from, to *Ref[int], amount int) STM[Unit] {
	return FlatMap(from.Get(), func(balance int) STM[Unit] {
		if balance < amount {
			return Fail[Unit](errOverdrawn)
		}
		return Then(
			from.Set(balance-amount),
			Update[int](to, func(n int) int { return n + amount }),
		)
	})
}

func TestTransfersPreserveTotal(t *testing.T) {
	t.Parallel()

	const accounts = 8
	refs := make([]*Ref[int], accounts)
	for i := range refs {
		refs[i] = NewRef(100)
	}
	sum := Suspend(func() STM[int] {
		return Map(ForEach(refs, func(r *Ref[int]) STM[int] { return r.Get() }), func(xs []int) int {
			total := 0
			for _, x := range xs {
				total += x
			}
			return total
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		rng := rand.New(rand.NewPCG(uint64(w), 99))
		g.Go(func() error {
			for i := 0; i < 300; i++ {
				from, to := rng.IntN(accounts), rng.IntN(accounts)
				if from == to {
					continue
				}
				if _, err := Atomically(ctx, transfer(refs[from], refs[to], rng.IntN(50))); err != nil && !errors.Is(err, errOverdrawn) {
					return err
				}
			}
			return nil
		})
	}
	// Concurrent readers must always see the full total
	g.Go(func() error {
		for i := 0; i < 300; i++ {
			total, err := Atomically(ctx, sum)
			if err != nil {
				return err
			}
			assert.Equal(t, accounts*100, total)
		}
		return nil
	})
	require.NoError(t, g.Wait())

	total, err := Atomically(ctx, sum)
	require.NoError(t, err)
	assert.Equal(t, accounts*100, total)
}

func TestRetryWaitsForChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ref := NewRef(0)
	atLeast3 := FlatMap(ref.Get(), func(n int) STM[int] {
		if n < 3 {
			return Retry[int]()
		}
		return Succeed(n)
	})

	done := make(chan int, 1)
	go func() {
		v, err := Atomically(ctx, atLeast3)
		assert.NoError(t, err)
		done <- v
	}()

	for i := 0; i < 3; i++ {
		_, err := Atomically(ctx, Update[int](ref, func(n int) int { return n + 1 }))
		require.NoError(t, err)
	}

	select {
	case v := <-done:
		assert.Equal(t, 3, v)
	case <-time.After(5 * time.Second):
		t.Fatal("retrying transaction was never woken")
	}
	assert.Eventually(t, func() bool { return todoCount(ref) == 0 }, time.Second, time.Millisecond)
}

func TestRetryAcrossOrElseWatchesBothBranches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, b := NewRef(false), NewRef(false)
	either := OrElse(
		Then(FlatMap(a.Get(), Check), Succeed("a")),
		Then(FlatMap(b.Get(), Check), Succeed("b")),
	)

	done := make(chan string, 1)
	go func() {
		v, err := Atomically(ctx, either)
		assert.NoError(t, err)
		done <- v
	}()

	require.Eventually(t, func() bool { return todoCount(b) == 1 }, 5*time.Second, time.Millisecond)
	_, err := Atomically(ctx, b.Set(true))
	require.NoError(t, err)

	select {
	case v := <-done:
		assert.Equal(t, "b", v)
	case <-time.After(5 * time.Second):
		t.Fatal("retrying transaction was never woken")
	}
}

func TestCancelBlockedTransaction(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	rt, err := New(WithLogger(logger))
	require.NoError(t, err)

	ref := NewRef(0)
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := AtomicallyWith(ctx, rt, Then(FlatMap(ref.Get(), func(n int) STM[Unit] {
			return Check(n > 0)
		}), Succeed(1)))
		errs <- err
	}()

	require.Eventually(t, func() bool { return rt.Stats().Suspensions == 1 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled transaction never returned")
	}
	assert.Equal(t, 0, todoCount(ref))
	assert.Equal(t, uint64(1), rt.Stats().Cancellations)
	assert.Contains(t, logger.Messages(), "info: stm: blocked transaction cancelled")

	_, err = AtomicallyWith(ctx, rt, ref.Get())
	assert.ErrorIs(t, err, context.Canceled)
}

// conflictOnce writes ref from another goroutine the first time it runs,
// so the attempt that ran it must be discarded.
func conflictOnce(t *testing.T, rt *Runtime, ref *Ref[int], runs *atomic.Int32) STM[int] {
	return FlatMap(ref.Get(), func(n int) STM[int] {
		if runs.Add(1) == 1 {
			done := make(chan struct{})
			go func() {
				defer close(done)
				_, err := AtomicallyWith(context.Background(), rt, ref.Set(100))
				assert.NoError(t, err)
			}()
			<-done
		}
		return Then(ref.Set(n+1), Succeed(n+1))
	})
}

func TestConflictReruns(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	reg := prometheus.NewRegistry()
	rt, err := New(WithRegisterer(reg), WithLogger(logger), WithRetryWarnThreshold(1), WithValidateEvery(0))
	require.NoError(t, err)

	ref := NewRef(0)
	var runs atomic.Int32
	v, err := AtomicallyWith(context.Background(), rt, conflictOnce(t, rt, ref, &runs))
	require.NoError(t, err)

	assert.Equal(t, 101, v)
	assert.Equal(t, int32(2), runs.Load())
	assert.Equal(t, 101, ref.UnsafeGet())

	stats := rt.Stats()
	assert.Equal(t, uint64(1), stats.Conflicts)
	assert.Equal(t, uint64(2), stats.Commits)
	assert.Equal(t, 1.0, testutil.ToFloat64(rt.metrics.conflicts))
	assert.Equal(t, 2.0, testutil.ToFloat64(rt.metrics.commits))
	assert.Contains(t, logger.Messages(), "warn: stm: transaction rerun repeatedly")

	hot := rt.HotRefs(10)
	require.Len(t, hot, 1)
	assert.Equal(t, HotRef{ID: ref.ID(), Conflicts: 1}, hot[0])

	count, err := testutil.GatherAndCount(reg, "rbstm_stm_commits_total", "rbstm_stm_conflicts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStaleReadIsNeverMixedWithFreshRead(t *testing.T) {
	t.Parallel()

	for _, every := range []int{0, 1, 32} {
		rt, err := New(WithValidateEvery(every))
		require.NoError(t, err)

		a, b := NewRef(0), NewRef(0)
		var runs atomic.Int32
		pair := FlatMap(a.Get(), func(x int) STM[[]int] {
			if runs.Add(1) == 1 {
				done := make(chan struct{})
				go func() {
					defer close(done)
					_, err := AtomicallyWith(context.Background(), rt, Then(a.Set(1), b.Set(1)))
					assert.NoError(t, err)
				}()
				<-done
			}
			return Map(b.Get(), func(y int) []int { return []int{x, y} })
		})

		v, err := AtomicallyWith(context.Background(), rt, pair)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 1}, v, "validate every %d", every)
		assert.Equal(t, int32(2), runs.Load(), "validate every %d", every)
		assert.Equal(t, uint64(1), rt.Stats().Conflicts, "validate every %d", every)
	}
}

func TestMidRunValidationAbandonsStaleAttempt(t *testing.T) {
	t.Parallel()

	rt, err := New(WithValidateEvery(1))
	require.NoError(t, err)

	ref := NewRef(0)
	var runs atomic.Int32
	v, err := AtomicallyWith(context.Background(), rt, conflictOnce(t, rt, ref, &runs))
	require.NoError(t, err)
	assert.Equal(t, 101, v)
	assert.Equal(t, int32(2), runs.Load())
	assert.Equal(t, uint64(1), rt.Stats().Conflicts)
}

func TestFailureCommitsWrites(t *testing.T) {
	t.Parallel()

	ref := NewRef(0)
	_, err := Atomically(context.Background(), Then(ref.Set(5), Fail[int](errBoom)))
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 5, ref.UnsafeGet())
}

func TestDefectPanics(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	rt, err := New(WithLogger(logger))
	require.NoError(t, err)

	ref := NewRef(0)
	defect := catchDefect(func() {
		_, _ = AtomicallyWith(context.Background(), rt, Then(ref.Set(1), Die[int](errBoom)))
	})
	require.NotNil(t, defect)
	assert.ErrorIs(t, defect, errBoom)
	assert.Equal(t, 0, ref.UnsafeGet())
	assert.Equal(t, uint64(1), rt.Stats().Defects)
	assert.Equal(t, []string{"error: stm: transaction died"}, logger.Messages())

	defect = catchDefect(func() {
		_, _ = AtomicallyWith(context.Background(), rt, Map(Succeed(1), func(int) int {
			panic("user code")
		}))
	})
	require.NotNil(t, defect)
	assert.Equal(t, "user code", defect.Value)
}

func TestNilRuntime(t *testing.T) {
	t.Parallel()

	_, err := AtomicallyWith(context.Background(), nil, Succeed(1))
	assert.ErrorIs(t, err, ErrNilRuntime)
}

func TestMaxConcurrent(t *testing.T) {
	t.Parallel()

	rt, err := New(WithMaxConcurrent(1))
	require.NoError(t, err)

	gate := NewRef(false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 1)
	go func() {
		_, err := AtomicallyWith(ctx, rt, FlatMap(gate.Get(), Check))
		errs <- err
	}()
	require.Eventually(t, func() bool { return rt.Active() == 1 }, 5*time.Second, time.Millisecond)

	oldest, ok := rt.OldestFiber()
	assert.True(t, ok)
	assert.NotZero(t, oldest)

	_, err = AtomicallyWith(ctx, rt, Succeed(1))
	assert.ErrorIs(t, err, ErrTooManyTransactions)

	_, err = Atomically(ctx, gate.Set(true))
	require.NoError(t, err)
	require.NoError(t, <-errs)
	assert.Equal(t, 0, rt.Active())

	v, err := AtomicallyWith(ctx, rt, Succeed(1))
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, ok = Default().OldestFiber()
	assert.False(t, ok)
}
