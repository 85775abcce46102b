package entity

import (
	"sync"
	"sync/atomic"

	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
)

// Instance is any reference owned by the registry. Every concrete kind
// embeds a Reference, directly or through its parent kind.
type Instance interface {
	Base() *Reference
}

// Reference is the root of every kind. Identity, slot and tag are fixed at
// construction. The embedded RWMutex guards payload fields of the embedding
// kinds; the registry never takes it.
type Reference struct {
	sync.RWMutex

	id      ident.Identity
	slot    ident.SlotID
	baseID  uint32
	tag     tag.Tag
	changed bool

	sessions  atomic.Int32
	detached  atomic.Bool
	reclaimed atomic.Bool
	onReclaim func(*Reference)
}

func (r *Reference) Base() *Reference { return r }

func (r *Reference) ID() ident.Identity { return r.id }
func (r *Reference) Slot() ident.SlotID { return r.slot }
func (r *Reference) BaseID() uint32     { return r.baseID }
func (r *Reference) Type() tag.Tag      { return r.tag }

// Changed reports whether the reference was created with the change flag
// set, i.e. it still has to be propagated to peers.
func (r *Reference) Changed() bool { return r.changed }

func (r *Reference) Sessions() int32 { return r.sessions.Load() }
func (r *Reference) Detached() bool  { return r.detached.Load() }
func (r *Reference) Reclaimed() bool { return r.reclaimed.Load() }

// StartSession registers one more live handle and returns the new count.
func (r *Reference) StartSession() int32 {
	return r.sessions.Add(1)
}

// EndSession drops one live handle. When the count reaches zero on a
// detached reference, the reclaim hook runs exactly once.
func (r *Reference) EndSession() int32 {
	n := r.sessions.Add(-1)
	if n < 0 {
		panic("entity: session count below zero")
	}
	if n == 0 && r.detached.Load() {
		r.reclaim()
	}
	return n
}

// Detach marks the reference as removed from the registry indexes. The
// reclaim hook runs now if no session is outstanding, otherwise when the last
// one ends. Detach reports whether the hook ran synchronously.
func (r *Reference) Detach() bool {
	if !r.detached.CompareAndSwap(false, true) {
		return false
	}
	if r.sessions.Load() == 0 {
		return r.reclaim()
	}
	return false
}

func (r *Reference) reclaim() bool {
	if !r.reclaimed.CompareAndSwap(false, true) {
		return false
	}
	if r.onReclaim != nil {
		r.onReclaim(r)
	}
	return true
}
