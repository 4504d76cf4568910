package sorted

import (
	"cmp"

	"github.com/alexhholmes/rbstm/rbtree"
	"github.com/alexhholmes/rbstm/stm"
)

// TMap is a sorted map shared between goroutines through transactions.
// The whole map lives in one stm.Ref, so readers of a snapshot never see
// a partial update and every write conflicts with every other write.
type TMap[K, V any] struct {
	ref *stm.Ref[*Map[K, V]]
}

// NewTMap creates an empty transactional map ordered by compare.
func NewTMap[K, V any](compare func(a, b K) int) *TMap[K, V] {
	return &TMap[K, V]{ref: stm.NewRef(NewMap[K, V](compare))}
}

// NewOrderedTMap creates an empty transactional map in the natural order
// of K.
func NewOrderedTMap[K cmp.Ordered, V any]() *TMap[K, V] {
	return NewTMap[K, V](cmp.Compare[K])
}

// MakeTMap creates a transactional map holding m inside a transaction.
func MakeTMap[K, V any](m *Map[K, V]) stm.STM[*TMap[K, V]] {
	return stm.Map(stm.MakeRef(m), func(ref *stm.Ref[*Map[K, V]]) *TMap[K, V] {
		return &TMap[K, V]{ref: ref}
	})
}

// Ref returns the ref holding the map.
func (t *TMap[K, V]) Ref() *stm.Ref[*Map[K, V]] {
	return t.ref
}

// Snapshot returns the current persistent map.
func (t *TMap[K, V]) Snapshot() stm.STM[*Map[K, V]] {
	return t.ref.Get()
}

// Size returns the number of entries.
func (t *TMap[K, V]) Size() stm.STM[int] {
	return stm.Map(t.ref.Get(), (*Map[K, V]).Len)
}

// Get returns the value stored for key, failing with ErrKeyNotFound.
func (t *TMap[K, V]) Get(key K) stm.STM[V] {
	return stm.FlatMap(t.ref.Get(), func(m *Map[K, V]) stm.STM[V] {
		v, ok := m.Get(key)
		if !ok {
			return stm.Fail[V](ErrKeyNotFound)
		}
		return stm.Succeed(v)
	})
}

// Has reports whether key is present.
func (t *TMap[K, V]) Has(key K) stm.STM[bool] {
	return stm.Map(t.ref.Get(), func(m *Map[K, V]) bool {
		return m.Has(key)
	})
}

// WaitFor returns the value for key, retrying until some transaction puts
// it.
func (t *TMap[K, V]) WaitFor(key K) stm.STM[V] {
	return stm.FlatMap(t.ref.Get(), func(m *Map[K, V]) stm.STM[V] {
		v, ok := m.Get(key)
		if !ok {
			return stm.Retry[V]()
		}
		return stm.Succeed(v)
	})
}

// Put binds key to value.
func (t *TMap[K, V]) Put(key K, value V) stm.STM[stm.Unit] {
	return stm.Update[*Map[K, V]](t.ref, func(m *Map[K, V]) *Map[K, V] {
		return m.Set(key, value)
	})
}

// Upsert stores f of the current value for key, or of the zero value and
// false when key is absent, and returns the stored value.
func (t *TMap[K, V]) Upsert(key K, f func(V, bool) V) stm.STM[V] {
	return stm.Modify[*Map[K, V]](t.ref, func(m *Map[K, V]) (V, *Map[K, V]) {
		v := f(m.Get(key))
		return v, m.Set(key, v)
	})
}

// Delete removes key and reports whether it was present. A map without
// key is left untouched.
func (t *TMap[K, V]) Delete(key K) stm.STM[bool] {
	return stm.FlatMap(t.ref.Get(), func(m *Map[K, V]) stm.STM[bool] {
		next, ok := m.Delete(key)
		if !ok {
			return stm.Succeed(false)
		}
		return stm.As(t.ref.Set(next), true)
	})
}

// Range returns the entries with lo <= key < hi.
func (t *TMap[K, V]) Range(lo, hi K) stm.STM[[]rbtree.Entry[K, V]] {
	return stm.Map(t.ref.Get(), func(m *Map[K, V]) []rbtree.Entry[K, V] {
		var entries []rbtree.Entry[K, V]
		for k, v := range m.Range(lo, hi) {
			entries = append(entries, rbtree.Entry[K, V]{Key: k, Value: v})
		}
		return entries
	})
}

// PopMin removes and returns the entry with the smallest key, retrying
// while the map is empty.
func (t *TMap[K, V]) PopMin() stm.STM[rbtree.Entry[K, V]] {
	return stm.FlatMap(t.ref.Get(), func(m *Map[K, V]) stm.STM[rbtree.Entry[K, V]] {
		e, ok := m.Min()
		if !ok {
			return stm.Retry[rbtree.Entry[K, V]]()
		}
		next, _ := m.Delete(e.Key)
		return stm.As(t.ref.Set(next), e)
	})
}
