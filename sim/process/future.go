package process

import (
	"errors"

	"github.com/matrix-sim/matrix/sim/core"
)

// ErrTimeout fails a future wrapped by WithTimeout when the deadline passes first.
var ErrTimeout = errors.New("timeout")

// Parker suspends the calling fiber until the wake func handed to register
// is invoked. *Fibers implements it.
type Parker interface {
	Suspend(register func(wake func()))
}

// Future is a value of type T (or an error) that becomes available later.
type Future[T any] struct {
	ready       bool
	value       T
	err         error
	subscribers []func()
}

// Promise is the producing side of a Future.
type Promise[T any] struct {
	f *Future[T]
}

// NewContract returns a pending future and the promise fulfilling it.
func NewContract[T any]() (*Future[T], *Promise[T]) {
	f := &Future[T]{}
	return f, &Promise[T]{f: f}
}

// Ready returns a future already holding v.
func Ready[T any](v T) *Future[T] {
	return &Future[T]{ready: true, value: v}
}

// Failed returns a future already holding err.
func Failed[T any](err error) *Future[T] {
	return &Future[T]{ready: true, err: err}
}

func (f *Future[T]) IsReady() bool {
	return f.ready
}

// Result returns the value and error. Panics if the future is pending.
func (f *Future[T]) Result() (T, error) {
	if !f.ready {
		panic("Future.Result() on pending future")
	}
	return f.value, f.err
}

// Subscribe runs cb once the future is ready; immediately if it already is.
func (f *Future[T]) Subscribe(cb func()) {
	if f.ready {
		cb()
		return
	}
	f.subscribers = append(f.subscribers, cb)
}

// Set fulfills the promise. Panics if it was already fulfilled.
func (p *Promise[T]) Set(v T, err error) {
	if !p.TrySet(v, err) {
		panic("promise already fulfilled")
	}
}

func (p *Promise[T]) SetValue(v T) {
	p.Set(v, nil)
}

func (p *Promise[T]) SetError(err error) {
	var zero T
	p.Set(zero, err)
}

// TrySet fulfills the promise unless it already was; reports whether it did.
func (p *Promise[T]) TrySet(v T, err error) bool {
	f := p.f
	if f.ready {
		return false
	}
	f.ready = true
	f.value = v
	f.err = err
	subs := f.subscribers
	f.subscribers = nil
	for _, cb := range subs {
		cb()
	}
	return true
}

// IsFulfilled reports whether the future has been set.
func (p *Promise[T]) IsFulfilled() bool {
	return p.f.ready
}

// Await parks the current fiber until f is ready and returns its result.
func Await[T any](p Parker, f *Future[T]) (T, error) {
	if !f.ready {
		p.Suspend(func(wake func()) { f.Subscribe(wake) })
	}
	return f.value, f.err
}

// Then chains fn after f.
func Then[T, U any](f *Future[T], fn func(T, error) (U, error)) *Future[U] {
	out, p := NewContract[U]()
	f.Subscribe(func() { p.Set(fn(f.value, f.err)) })
	return out
}

// WithTimeout mirrors f but fails with ErrTimeout if f is still pending d
// jiffies from now.
func WithTimeout[T any](s *Scheduler, f *Future[T], d core.Jiffies) *Future[T] {
	if f.ready {
		return f
	}
	out, p := NewContract[T]()
	f.Subscribe(func() { p.TrySet(f.value, f.err) })
	s.After(d, func() {
		var zero T
		p.TrySet(zero, ErrTimeout)
	})
	return out
}
