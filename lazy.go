package mondoc

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Ref is a deferred reference to an association target. A Ref read from a
// lazy association carries the stored source (a DBRef or pointer value) and
// a resolution closure; the fetch runs the first time Resolve is called and
// the result is memoized.
//
// Resolve is safe for concurrent use: the fetch runs at most once, later
// callers observe the memoized result. A failed fetch leaves the Ref
// unresolved so a later call may retry.
//
// String and Pointer never trigger resolution; printing or comparing a Ref
// must not force a load.
type Ref[T any] struct {
	mu       sync.Mutex
	source   any
	load     func(ctx context.Context) (any, error)
	value    *T
	resolved bool
}

// NewRef returns an already resolved reference wrapping the given value.
func NewRef[T any](value *T) *Ref[T] {
	return &Ref[T]{value: value, resolved: true}
}

// Resolve returns the referenced value, fetching it on first call.
func (r *Ref[T]) Resolve(ctx context.Context) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved {
		return r.value, nil
	}

	if r.load == nil {
		return nil, ErrUnboundReference
	}

	value, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	if value != nil {
		typed, ok := value.(*T)
		if !ok {
			return nil, fmt.Errorf("mondoc: reference resolved to %T, want %T", value, r.value)
		}
		r.value = typed
	}
	r.resolved = true

	return r.value, nil
}

// IsResolved reports whether the reference has been resolved.
func (r *Ref[T]) IsResolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.resolved
}

// Pointer returns the raw stored source (a DBRef or id pointer value)
// without resolving.
func (r *Ref[T]) Pointer() any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.source
}

func (r *Ref[T]) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.resolved {
		return fmt.Sprintf("Ref[%T](resolved)", zero)
	}

	return fmt.Sprintf("Ref[%T](unresolved, source=%v)", zero, r.source)
}

// attach binds the stored source and the resolution closure. Used by the
// converter when reading a lazy association.
func (r *Ref[T]) attach(source any, load func(ctx context.Context) (any, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.source = source
	r.load = load
	r.value = nil
	r.resolved = false
}

// bind stores an already resolved value. Used by the converter for eager
// associations.
func (r *Ref[T]) bind(source any, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.source = source
	r.load = nil
	r.resolved = true
	if value == nil {
		r.value = nil
		return
	}
	r.value = value.(*T)
}

func (r *Ref[T]) rawSource() any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.source
}

func (r *Ref[T]) resolvedValue() (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.resolved || r.value == nil {
		return nil, r.resolved
	}

	return r.value, true
}

func (r *Ref[T]) elemType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// lazyRef is the non-generic view the converter uses to wire Ref fields via
// reflection.
type lazyRef interface {
	attach(source any, load func(ctx context.Context) (any, error))
	bind(source any, value any)
	rawSource() any
	resolvedValue() (any, bool)
	elemType() reflect.Type
}

var lazyRefType = reflect.TypeOf((*lazyRef)(nil)).Elem()

func isRefType(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		return t.Implements(lazyRefType)
	}

	return reflect.PtrTo(t).Implements(lazyRefType)
}

func refElemOf(t reflect.Type) reflect.Type {
	if t.Kind() != reflect.Ptr {
		t = reflect.PtrTo(t)
	}

	ref := reflect.New(t.Elem()).Interface().(lazyRef)

	return ref.elemType()
}
