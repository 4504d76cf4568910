package stm

// Fold derives a TRef[A] from a TRef[S]. get reads an A out of the
// parent's value and set builds the parent's value from an A. Either may
// fail, and the failure becomes the failure of the operation.
func Fold[S, A any](parent TRef[S], get func(S) (A, error), set func(A) (S, error)) TRef[A] {
	return &derivedRef[S, A]{
		parent: parent,
		get:    get,
		set: func(a A, _ S) (S, error) {
			return set(a)
		},
		blind: set,
	}
}

// FoldAll is Fold where building the parent's value may use its current
// value.
func FoldAll[S, A any](parent TRef[S], get func(S) (A, error), set func(A, S) (S, error)) TRef[A] {
	return &derivedRef[S, A]{
		parent: parent,
		get:    get,
		set:    set,
	}
}

// Dimap derives a TRef[A] from a TRef[S] through a pair of conversions
// that cannot fail.
func Dimap[S, A any](parent TRef[S], to func(S) A, from func(A) S) TRef[A] {
	return Fold(parent,
		func(s S) (A, error) { return to(s), nil },
		func(a A) (S, error) { return from(a), nil },
	)
}

// ReadOnly returns a view of ref whose writes fail with ErrReadOnlyRef.
func ReadOnly[A any](ref TRef[A]) TRef[A] {
	return Fold(ref,
		func(a A) (A, error) { return a, nil },
		func(a A) (A, error) { return a, ErrReadOnlyRef },
	)
}

type derivedRef[S, A any] struct {
	parent TRef[S]
	get    func(S) (A, error)
	set    func(A, S) (S, error)
	// blind is set for Fold views, whose writes do not need to read the
	// parent first.
	blind func(A) (S, error)
}

func (d *derivedRef[S, A]) Get() STM[A] {
	return FlatMap(d.parent.Get(), func(s S) STM[A] {
		a, err := d.get(s)
		if err != nil {
			return Fail[A](err)
		}
		return Succeed(a)
	})
}

func (d *derivedRef[S, A]) Set(value A) STM[Unit] {
	if d.blind != nil {
		return Suspend(func() STM[Unit] {
			s, err := d.blind(value)
			if err != nil {
				return Fail[Unit](err)
			}
			return d.parent.Set(s)
		})
	}
	return As(d.parent.modify(func(s S) (any, S, error) {
		next, err := d.set(value, s)
		if err != nil {
			return nil, s, err
		}
		return nil, next, nil
	}), Unit{})
}

func (d *derivedRef[S, A]) modify(f func(A) (any, A, error)) STM[any] {
	return d.parent.modify(func(s S) (any, S, error) {
		a, err := d.get(s)
		if err != nil {
			return nil, s, err
		}
		b, next, err := f(a)
		if err != nil {
			return nil, s, err
		}
		updated, err := d.set(next, s)
		if err != nil {
			return nil, s, err
		}
		return b, updated, nil
	})
}
