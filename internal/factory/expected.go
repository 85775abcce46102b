package factory

import "github.com/l1jgo/gamefactory/internal/entity"

// Expected holds either a value or the error that prevented it.
type Expected[V any] struct {
	val V
	err error
}

func Ok[V any](v V) Expected[V] { return Expected[V]{val: v} }

func Fail[V any](err error) Expected[V] { return Expected[V]{err: err} }

func (e Expected[V]) OK() bool   { return e.err == nil }
func (e Expected[V]) Err() error { return e.err }

func (e Expected[V]) Get() (V, error) { return e.val, e.err }

// Value returns the held value, or the zero value on failure.
func (e Expected[V]) Value() V { return e.val }

// ValueOr returns the held value, or def on failure.
func (e Expected[V]) ValueOr(def V) V {
	if e.err != nil {
		return def
	}
	return e.val
}

// ReleaseResults ends the session of every successful result.
func ReleaseResults[T entity.Kind](rs []Expected[*Handle[T]]) {
	for _, r := range rs {
		if h, err := r.Get(); err == nil {
			h.Release()
		}
	}
}

// bind turns a lookup result into a handle that is either bound or empty
// with the lookup error attached.
func bind[T entity.Kind](res Expected[*Handle[T]]) *Handle[T] {
	if h, err := res.Get(); err == nil {
		return h
	}
	return emptyHandle[T](res.Err())
}
