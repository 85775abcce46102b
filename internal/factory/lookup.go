package factory

import (
	"fmt"

	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/errors"
	"go.uber.org/zap"
)

// lookup resolves key and binds a handle of kind T. A missing reference is
// reported as not-found, one of the wrong kind as a type mismatch.
func lookup[T entity.Kind, K ident.Key](r *Registry, key K) Expected[*Handle[T]] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookupLocked[T](r, key)
}

func lookupLocked[T entity.Kind, K ident.Key](r *Registry, key K) Expected[*Handle[T]] {
	inst := resolve(r.idx, key)
	if inst == nil {
		return Fail[*Handle[T]](errors.NewNotFoundError(ident.Describe(key)))
	}
	h := bindHandle[T](inst)
	if !h.Valid() {
		return Fail[*Handle[T]](errors.NewTypeMismatchError(ident.Describe(key), inst.Base().Type(), entity.MaskOf[T]()))
	}
	return Ok(h)
}

// GetObject draws a handle of kind T on the reference with identity id.
func GetObject[T entity.Kind](r *Registry, id ident.Identity) Expected[*Handle[T]] {
	return lookup[T](r, id)
}

// GetObjectBySlot draws a handle of kind T on the current owner of slot.
func GetObjectBySlot[T entity.Kind](r *Registry, slot ident.SlotID) Expected[*Handle[T]] {
	return lookup[T](r, slot)
}

// GetMultiple resolves every id independently. The result has one entry per
// input, in input order.
func GetMultiple[T entity.Kind](r *Registry, ids []ident.Identity) []Expected[*Handle[T]] {
	return lookupAll[T](r, ids)
}

func GetMultipleBySlot[T entity.Kind](r *Registry, slots []ident.SlotID) []Expected[*Handle[T]] {
	return lookupAll[T](r, slots)
}

func lookupAll[T entity.Kind, K ident.Key](r *Registry, keys []K) []Expected[*Handle[T]] {
	out := make([]Expected[*Handle[T]], len(keys))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, k := range keys {
		out[i] = lookupLocked[T](r, k)
	}
	return out
}

// GetObjectTypes snapshots every live reference whose tag intersects mask,
// in creation order, as handles of kind T. References that cannot be viewed
// as T are skipped. The caller owns the returned sessions.
func GetObjectTypes[T entity.Kind](r *Registry, mask tag.Tag) []*Handle[T] {
	hs, _ := GetObjectTypesMarked[T](r, mask)
	return hs
}

// GetObjectTypesMarked is GetObjectTypes plus the bus sequence number of
// the last lifecycle event the snapshot reflects. Lifecycle events are
// emitted under the registry lock, so events numbered above the mark
// describe changes the snapshot does not contain.
func GetObjectTypesMarked[T entity.Kind](r *Registry, mask tag.Tag) ([]*Handle[T], uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hs := make([]*Handle[T], 0, r.idx.count(mask))
	r.idx.each(mask, func(inst entity.Instance) {
		if h := bindHandle[T](inst); h.Valid() {
			hs = append(hs, h)
		}
	})
	return hs, r.bus.Seq()
}

// DestroyHandle destroys the reference h is bound to, provided h holds its
// only session. The check and the destroy happen under one lock, so no other
// goroutine can draw a handle in between. On success h is consumed; on
// failure it is left untouched.
func DestroyHandle[T entity.Kind](r *Registry, h *Handle[T]) (ident.Identity, error) {
	const op = "destroy handle"
	if !h.Valid() {
		return 0, fmt.Errorf("%s: %w", op, errors.NewNotFoundError("empty handle"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ref := h.inst.Base()
	if ref.Detached() {
		return 0, fmt.Errorf("%s: %w", op, errors.NewNotFoundError(ident.Describe(ref.ID())))
	}
	// New sessions start only under the registry lock or from an existing
	// handle; with one session held by the caller the count cannot grow here.
	if n := ref.Sessions(); n != 1 {
		r.log.Warn("strict destroy refused",
			zap.Uint64("id", uint64(ref.ID())),
			zap.Int32("sessions", n),
		)
		return 0, fmt.Errorf("%s: %w", op, errors.NewPreconditionError(op, n))
	}
	id := ref.ID()
	if err := r.destroy(op, id); err != nil {
		return 0, err
	}
	h.Release()
	return id, nil
}
