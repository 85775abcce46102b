package factory

import (
	"context"
	"fmt"

	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/errors"
	"go.uber.org/zap"
)

// FailPolicy selects how a failed lookup reaches the operation.
type FailPolicy uint8

const (
	// FailResult hands the lookup result to the operation, which branches on
	// it itself.
	FailResult FailPolicy = iota
	// FailBool skips the operation when the lookup fails.
	FailBool
	// FailRaise always runs the operation; touching the missing reference
	// through Handle.Must aborts it with the lookup error.
	FailRaise

	FailDefault = FailRaise
)

func (p FailPolicy) String() string {
	switch p {
	case FailResult:
		return "result"
	case FailBool:
		return "bool"
	case FailRaise:
		return "raise"
	}
	return fmt.Sprintf("FailPolicy(%d)", uint8(p))
}

// LaunchPolicy selects where the operation runs.
type LaunchPolicy uint8

const (
	Blocking LaunchPolicy = iota
	Async

	LaunchDefault = Blocking
)

// Outcome is the result of an async operation.
type Outcome[R any] struct {
	Value R
	Err   error
}

// OperateResult resolves key and passes the result, bound or failed, to fn.
// A bound handle is released when fn returns.
func OperateResult[T entity.Kind, K ident.Key, R any](r *Registry, key K, fn func(Expected[*Handle[T]]) R) R {
	res := lookup[T](r, key)
	if h, err := res.Get(); err == nil {
		defer h.Release()
	}
	return fn(res)
}

// OperateBool runs fn only if key resolves to a reference of kind T and
// reports whether it ran.
func OperateBool[T entity.Kind, K ident.Key](r *Registry, key K, fn func(*Handle[T])) bool {
	h, err := lookup[T](r, key).Get()
	if err != nil {
		return false
	}
	defer h.Release()
	fn(h)
	return true
}

// Operate always runs fn, with an empty handle if key does not resolve.
// Calling Must on the empty handle stops fn; the lookup error is returned.
// Other panics propagate.
func Operate[T entity.Kind, K ident.Key, R any](r *Registry, key K, fn func(*Handle[T]) R) (R, error) {
	h := bind(lookup[T](r, key))
	defer h.Release()
	return raise(func() R { return fn(h) })
}

// raise runs fn and converts a Handle.Must panic into an error.
func raise[R any](fn func() R) (res R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			lp, ok := rec.(*errors.LookupPanic)
			if !ok {
				panic(rec)
			}
			err = fmt.Errorf("operate: %w", lp.Err)
		}
	}()
	return fn(), nil
}

// OperateAsync resolves key now and runs fn on a registry worker. The
// session is held until fn returns and ends before the outcome is sent, so
// fn never sees a released handle. If ctx is done before a worker is free,
// fn is not run and the outcome carries ctx.Err(). A panic in fn is
// reported as an error.
func OperateAsync[T entity.Kind, K ident.Key, R any](ctx context.Context, r *Registry, key K, fn func(*Handle[T]) R) <-chan Outcome[R] {
	out := make(chan Outcome[R], 1)
	h, err := lookup[T](r, key).Get()
	if err != nil {
		out <- Outcome[R]{Err: err}
		close(out)
		return out
	}
	go func() {
		defer close(out)
		if err := r.workers.Acquire(ctx, 1); err != nil {
			h.Release()
			out <- Outcome[R]{Err: fmt.Errorf("operate async: %w", err)}
			return
		}
		var v R
		err := r.recovered(func() error {
			defer h.Release()
			v = fn(h)
			return nil
		})
		r.workers.Release(1)
		out <- Outcome[R]{Value: v, Err: err}
	}()
	return out
}

// Dispatch runs fn against the reference under key with the failure policy
// chosen by the caller.
//
//	FailResult: fn runs with a possibly empty handle.
//	FailBool:   fn is skipped and the lookup error returned.
//	FailRaise:  fn runs; Must on an empty handle returns the lookup error.
func Dispatch[T entity.Kind, K ident.Key](r *Registry, policy FailPolicy, key K, fn func(*Handle[T]) error) error {
	return run(policy, lookup[T](r, key), fn)
}

// Launch is Dispatch with a launch policy. The returned channel yields one
// error and is closed. Async launches resolve key before returning.
func Launch[T entity.Kind, K ident.Key](ctx context.Context, r *Registry, launch LaunchPolicy, policy FailPolicy, key K, fn func(*Handle[T]) error) <-chan error {
	out := make(chan error, 1)
	res := lookup[T](r, key)
	if launch == Blocking {
		out <- run(policy, res, fn)
		close(out)
		return out
	}
	go func() {
		defer close(out)
		if err := r.workers.Acquire(ctx, 1); err != nil {
			bind(res).Release()
			out <- fmt.Errorf("launch: %w", err)
			return
		}
		defer r.workers.Release(1)
		out <- r.recovered(func() error { return run(policy, res, fn) })
	}()
	return out
}

// run applies policy to a lookup result and consumes its handle.
func run[T entity.Kind](policy FailPolicy, res Expected[*Handle[T]], fn func(*Handle[T]) error) error {
	if policy == FailBool {
		h, err := res.Get()
		if err != nil {
			return err
		}
		defer h.Release()
		return fn(h)
	}
	h := bind(res)
	defer h.Release()
	if policy == FailResult {
		return fn(h)
	}
	ferr, err := raise(func() error { return fn(h) })
	if err != nil {
		return err
	}
	return ferr
}

// recovered runs fn on a worker goroutine, turning a panic into an error so
// one bad operation cannot take the process down.
func (r *Registry) recovered(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("async operation panic recovered", zap.Any("panic", rec))
			err = fmt.Errorf("async operation panic: %v", rec)
		}
	}()
	return fn()
}
