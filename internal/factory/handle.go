package factory

import (
	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/errors"
)

// Handle is one session on a reference, viewed as kind T. While a handle is
// bound the reference is not reclaimed, even if it is destroyed meanwhile.
// The zero Handle is empty.
//
// A Handle belongs to one goroutine. Clone it to hand the reference to
// another; sessions are counted atomically on the reference, so Clone and
// Release never touch the registry lock.
type Handle[T entity.Kind] struct {
	inst entity.Instance
	view *T
	tag  tag.Tag
	miss error // why the handle is empty, reported by Must
}

// bindHandle starts a session on inst viewed as T. It must be called under
// the registry lock so the reference cannot be detached before the session
// starts. A reference that does not satisfy T yields an empty handle.
func bindHandle[T entity.Kind](inst entity.Instance) *Handle[T] {
	view := entity.As[T](inst)
	if view == nil {
		return &Handle[T]{}
	}
	inst.Base().StartSession()
	return &Handle[T]{inst: inst, view: view, tag: inst.Base().Type()}
}

// emptyHandle returns an unbound handle remembering why the lookup failed.
func emptyHandle[T entity.Kind](miss error) *Handle[T] {
	return &Handle[T]{miss: miss}
}

// Valid reports whether h is bound to a reference.
func (h *Handle[T]) Valid() bool { return h != nil && h.inst != nil }

// Get returns the typed view, or nil if h is empty.
func (h *Handle[T]) Get() *T {
	if !h.Valid() {
		return nil
	}
	return h.view
}

// Must returns the typed view. On an empty handle it panics with a
// *errors.LookupPanic carrying the failed lookup; Operate recovers it.
func (h *Handle[T]) Must() *T {
	if !h.Valid() {
		err := errors.ErrNotFound
		if h != nil && h.miss != nil {
			err = h.miss
		}
		panic(&errors.LookupPanic{Err: err})
	}
	return h.view
}

// Instance returns the underlying reference, or nil.
func (h *Handle[T]) Instance() entity.Instance {
	if !h.Valid() {
		return nil
	}
	return h.inst
}

// Type returns the concrete tag of the bound reference, tag.None when empty.
func (h *Handle[T]) Type() tag.Tag {
	if !h.Valid() {
		return tag.None
	}
	return h.tag
}

func (h *Handle[T]) ID() ident.Identity {
	if !h.Valid() {
		return 0
	}
	return h.inst.Base().ID()
}

func (h *Handle[T]) Slot() ident.SlotID {
	if !h.Valid() {
		return 0
	}
	return h.inst.Base().Slot()
}

// Is reports whether the bound reference satisfies kind.
func (h *Handle[T]) Is(kind tag.Tag) bool {
	return h.Type().Satisfies(kind)
}

// Equal reports whether both handles refer to the same reference. Two empty
// handles are equal.
func (h *Handle[T]) Equal(o *Handle[T]) bool {
	return h.Instance() == o.Instance()
}

// Clone starts a second session on the same reference.
func (h *Handle[T]) Clone() *Handle[T] {
	if !h.Valid() {
		return &Handle[T]{}
	}
	h.inst.Base().StartSession()
	return &Handle[T]{inst: h.inst, view: h.view, tag: h.tag}
}

// Move transfers the session to a new handle and leaves h empty.
func (h *Handle[T]) Move() *Handle[T] {
	if h == nil {
		return &Handle[T]{}
	}
	m := *h
	*h = Handle[T]{}
	return &m
}

// Release ends the session. It is safe to call more than once.
func (h *Handle[T]) Release() {
	if !h.Valid() {
		return
	}
	inst := h.inst
	*h = Handle[T]{}
	inst.Base().EndSession()
}

// Assign rebinds h to the reference o is bound to, ending h's own session.
// The new session starts before the old one ends, so assigning a handle to
// itself or to a clone of itself never lets the reference be reclaimed.
func (h *Handle[T]) Assign(o *Handle[T]) {
	if o.Valid() {
		o.inst.Base().StartSession()
	}
	old := h.inst
	if o.Valid() {
		*h = Handle[T]{inst: o.inst, view: o.view, tag: o.tag}
	} else {
		*h = Handle[T]{}
	}
	if old != nil {
		old.Base().EndSession()
	}
}

// Sessions returns the live session count of the bound reference.
func (h *Handle[T]) Sessions() int32 {
	if !h.Valid() {
		return 0
	}
	return h.inst.Base().Sessions()
}

// Validate reports whether h is bound and its reference can be viewed as U.
func Validate[U, T entity.Kind](h *Handle[T]) bool {
	return h.Valid() && entity.Validate[U](h.tag)
}

// ReleaseAll ends every session in hs.
func ReleaseAll[T entity.Kind](hs []*Handle[T]) {
	for _, h := range hs {
		h.Release()
	}
}
