package factory

import (
	"container/list"
	"fmt"

	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/errors"
)

// index holds the live references in insertion order, the identity and slot
// lookups into that order, live counts per kind and the retired identities.
// All methods expect the registry lock to be held.
type index struct {
	order   *list.List // of entity.Instance
	byID    map[ident.Identity]*list.Element
	bySlot  map[ident.SlotID]*list.Element
	counts  map[tag.Tag]uint32
	deleted map[ident.Identity]struct{}
}

func newIndex() *index {
	return &index{
		order:   list.New(),
		byID:    make(map[ident.Identity]*list.Element, 1024),
		bySlot:  make(map[ident.SlotID]*list.Element, 1024),
		counts:  make(map[tag.Tag]uint32, len(tag.Concrete)),
		deleted: make(map[ident.Identity]struct{}),
	}
}

func (x *index) insert(inst entity.Instance) {
	r := inst.Base()
	e := x.order.PushBack(inst)
	x.byID[r.ID()] = e
	x.bySlot[r.Slot()] = e
	x.counts[r.Type()]++
}

// remove unindexes id and retires it.
func (x *index) remove(id ident.Identity) (entity.Instance, bool) {
	e, ok := x.byID[id]
	if !ok {
		return nil, false
	}
	inst := e.Value.(entity.Instance)
	r := inst.Base()
	if x.bySlot[r.Slot()] != e {
		corrupt(id, "slot %s does not map back", r.Slot())
	}

	x.order.Remove(e)
	delete(x.byID, id)
	delete(x.bySlot, r.Slot())
	if n := x.counts[r.Type()]; n > 1 {
		x.counts[r.Type()] = n - 1
	} else {
		delete(x.counts, r.Type())
	}
	x.deleted[id] = struct{}{}
	return inst, true
}

func (x *index) byIdentity(id ident.Identity) entity.Instance {
	if e, ok := x.byID[id]; ok {
		return e.Value.(entity.Instance)
	}
	return nil
}

func (x *index) bySlotID(s ident.SlotID) entity.Instance {
	e, ok := x.bySlot[s]
	if !ok {
		return nil
	}
	inst := e.Value.(entity.Instance)
	if x.byID[inst.Base().ID()] != e {
		corrupt(s, "identity %s does not map back", inst.Base().ID())
	}
	return inst
}

// resolve looks up either key space.
func resolve[K ident.Key](x *index, key K) entity.Instance {
	switch k := any(key).(type) {
	case ident.Identity:
		return x.byIdentity(k)
	case ident.SlotID:
		return x.bySlotID(k)
	}
	return nil
}

func (x *index) live(id ident.Identity) bool {
	_, ok := x.byID[id]
	return ok
}

func (x *index) retired(id ident.Identity) bool {
	_, ok := x.deleted[id]
	return ok
}

// taken reports whether id may not be issued again.
func (x *index) taken(id ident.Identity) bool {
	return x.live(id) || x.retired(id)
}

// each visits every live reference whose tag intersects mask, oldest first.
func (x *index) each(mask tag.Tag, fn func(entity.Instance)) {
	for e := x.order.Front(); e != nil; e = e.Next() {
		inst := e.Value.(entity.Instance)
		if inst.Base().Type().Matches(mask) {
			fn(inst)
		}
	}
}

func (x *index) count(mask tag.Tag) uint32 {
	var n uint32
	for t, c := range x.counts {
		if t.Matches(mask) {
			n += c
		}
	}
	return n
}

func (x *index) len() int { return x.order.Len() }

func (x *index) reset() {
	x.order.Init()
	clear(x.byID)
	clear(x.bySlot)
	clear(x.counts)
	clear(x.deleted)
}

// verify walks the whole index and reports the first inconsistency as an
// *errors.IndexCorruptError.
func (x *index) verify() error {
	if len(x.byID) != x.order.Len() || len(x.bySlot) != x.order.Len() {
		detail := fmt.Sprintf("sizes differ: order=%d ids=%d slots=%d",
			x.order.Len(), len(x.byID), len(x.bySlot))
		return &errors.IndexCorruptError{Key: "index", Detail: detail}
	}
	counts := make(map[tag.Tag]uint32, len(x.counts))
	for e := x.order.Front(); e != nil; e = e.Next() {
		r := e.Value.(entity.Instance).Base()
		if x.byID[r.ID()] != e {
			return corruption(r.ID(), "identity not indexed")
		}
		if x.bySlot[r.Slot()] != e {
			return corruption(r.Slot(), "slot not indexed")
		}
		if x.retired(r.ID()) {
			return corruption(r.ID(), "both live and retired")
		}
		counts[r.Type()]++
	}
	for t, c := range counts {
		if x.counts[t] != c {
			return &errors.IndexCorruptError{
				Key:    "count " + t.String(),
				Detail: fmt.Sprintf("is %d, want %d", x.counts[t], c),
			}
		}
	}
	if len(counts) != len(x.counts) {
		return &errors.IndexCorruptError{Key: "counts", Detail: fmt.Sprintf("stale: %v", x.counts)}
	}
	return nil
}

func corruption[K ident.Key](key K, format string, args ...any) *errors.IndexCorruptError {
	return &errors.IndexCorruptError{Key: ident.Describe(key), Detail: fmt.Sprintf(format, args...)}
}

// corrupt aborts on an index the registry can no longer trust.
func corrupt[K ident.Key](key K, format string, args ...any) {
	panic(corruption(key, format, args...))
}
