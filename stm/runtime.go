package stm

import (
	"cmp"
	"encoding/binary"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alexhholmes/rbstm/internal/slots"
)

// Runtime runs transactions and keeps their statistics. Transactions run
// on different runtimes still synchronize with each other, since commit
// locks belong to the refs.
type Runtime struct {
	opts    Options
	metrics *metrics
	hot     *freelru.SyncedLRU[uint64, uint64] // nil when contention tracking is off
	fibers  *slots.Table                       // nil when concurrency is unlimited

	active atomic.Int64

	commits       atomic.Uint64
	readOnly      atomic.Uint64
	conflicts     atomic.Uint64
	retries       atomic.Uint64
	suspensions   atomic.Uint64
	defects       atomic.Uint64
	cancellations atomic.Uint64
}

// New creates a runtime.
func New(opts ...Option) (*Runtime, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	rt := &Runtime{opts: options}
	if options.hotRefCapacity > 0 {
		hot, err := freelru.NewSynced[uint64, uint64](options.hotRefCapacity, hashRefID)
		if err != nil {
			return nil, err
		}
		rt.hot = hot
	}
	if options.maxConcurrent > 0 {
		rt.fibers = slots.New(options.maxConcurrent)
	}
	rt.metrics = newMetrics(options.registerer)
	return rt, nil
}

var defaultRuntime = sync.OnceValue(func() *Runtime {
	rt, err := New()
	if err != nil {
		panic(err)
	}
	return rt
})

// Default returns the runtime used by Atomically.
func Default() *Runtime {
	return defaultRuntime()
}

func hashRefID(id uint64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], id)
	return uint32(xxhash.Sum64(buf[:]))
}

// Stats is a point in time copy of a runtime's counters.
type Stats struct {
	Commits       uint64 // Transactions that wrote at least one ref
	ReadOnly      uint64 // Transactions that completed without writing
	Conflicts     uint64 // Attempts discarded because a read went stale
	Retries       uint64 // Attempts ended by Retry
	Suspensions   uint64 // Retries that blocked waiting for a commit
	Defects       uint64
	Cancellations uint64
}

// Stats returns the runtime's counters.
func (rt *Runtime) Stats() Stats {
	return Stats{
		Commits:       rt.commits.Load(),
		ReadOnly:      rt.readOnly.Load(),
		Conflicts:     rt.conflicts.Load(),
		Retries:       rt.retries.Load(),
		Suspensions:   rt.suspensions.Load(),
		Defects:       rt.defects.Load(),
		Cancellations: rt.cancellations.Load(),
	}
}

// Active returns the number of Atomically calls in progress.
func (rt *Runtime) Active() int {
	return int(rt.active.Load())
}

// OldestFiber returns the longest running fiber. It is only tracked when
// the runtime was created with WithMaxConcurrent.
func (rt *Runtime) OldestFiber() (FiberID, bool) {
	if rt.fibers == nil {
		return 0, false
	}
	id, ok := rt.fibers.Oldest()
	return FiberID(id), ok
}

// HotRef is a ref and the number of conflicts it caused.
type HotRef struct {
	ID        uint64
	Conflicts uint64
}

// HotRefs returns up to n of the most conflicted refs among those still
// tracked, highest count first. Counts are approximate under concurrent
// conflicts on the same ref.
func (rt *Runtime) HotRefs(n int) []HotRef {
	if rt.hot == nil || n <= 0 {
		return nil
	}
	var refs []HotRef
	for _, id := range rt.hot.Keys() {
		if count, ok := rt.hot.Get(id); ok {
			refs = append(refs, HotRef{ID: id, Conflicts: count})
		}
	}
	slices.SortFunc(refs, func(a, b HotRef) int {
		if c := cmp.Compare(b.Conflicts, a.Conflicts); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(refs) > n {
		refs = refs[:n]
	}
	return refs
}

func (rt *Runtime) recordConflict(id uint64) {
	rt.conflicts.Add(1)
	rt.metrics.conflicts.Inc()
	if rt.hot == nil {
		return
	}
	count, _ := rt.hot.Get(id)
	rt.hot.Add(id, count+1)
}

type metrics struct {
	commits       prometheus.Counter
	readOnly      prometheus.Counter
	conflicts     prometheus.Counter
	retries       prometheus.Counter
	suspensions   prometheus.Counter
	defects       prometheus.Counter
	cancellations prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rbstm",
			Subsystem: "stm",
			Name:      name,
			Help:      help,
		})
	}
	return &metrics{
		commits:       counter("commits_total", "Transactions committed with at least one write."),
		readOnly:      counter("read_only_total", "Transactions completed without writes."),
		conflicts:     counter("conflicts_total", "Transaction attempts discarded after a conflicting commit."),
		retries:       counter("retries_total", "Transaction attempts ended by retry."),
		suspensions:   counter("suspensions_total", "Retries that blocked until a read ref changed."),
		defects:       counter("defects_total", "Transactions that died with a defect."),
		cancellations: counter("cancellations_total", "Blocked transactions abandoned by context cancellation."),
	}
}
