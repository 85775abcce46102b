// Package factory owns every reference in the world. It issues identities
// and slots, indexes live references by both ids and by kind, and hands out
// counted session handles that keep a reference valid while in use.
//
// All structural changes go through one registry lock. The lock is never
// held while caller code runs; payload fields are guarded by each
// reference's own lock.
package factory

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/l1jgo/gamefactory/internal/core/event"
	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// TemplateSource supplies base templates. A template may name the kind its
// instances must satisfy; tag.None accepts any kind.
type TemplateSource interface {
	Template(baseID uint32) (entity.Fields, tag.Tag, bool)
}

// Descriptor describes a reference announced by a peer. Zero ID or Slot
// means allocate locally. Fields override the base template.
type Descriptor struct {
	ID     ident.Identity
	Slot   ident.SlotID
	BaseID uint32
	Fields entity.Fields
}

// Stats is a point-in-time summary for logs and the STATS request.
type Stats struct {
	Live           int
	Retired        int
	PendingReclaim int64
	SlotsHeld      int
	NextIdentity   ident.Identity
	Closed         bool
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithBus publishes lifecycle events to b.
func WithBus(b *event.Bus) Option {
	return func(r *Registry) { r.bus = b }
}

// WithTemplates seeds new references from the base templates in src.
func WithTemplates(src TemplateSource) Option {
	return func(r *Registry) { r.templates = src }
}

// WithFirstIdentity sets the first identity issued locally.
func WithFirstIdentity(id ident.Identity) Option {
	return func(r *Registry) { r.first = id }
}

// WithAsyncWorkers bounds the number of concurrently running async
// operations. Non-positive values keep the default of GOMAXPROCS.
func WithAsyncWorkers(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.workers = semaphore.NewWeighted(int64(n))
		}
	}
}

// Registry owns every live reference and both of its indexes.
type Registry struct {
	mu      sync.RWMutex // guards idx, seq, changed, closed
	idx     *index
	seq     *ident.Sequence
	changed bool
	closed  bool

	slots   *ident.SlotPool // own lock; taken after mu
	pending atomic.Int64    // destroyed but not yet reclaimed

	first     ident.Identity
	bus       *event.Bus
	templates TemplateSource
	workers   *semaphore.Weighted
	log       *zap.Logger
}

// New builds an initialized registry.
func New(log *zap.Logger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		idx:     newIndex(),
		slots:   ident.NewSlotPool(),
		workers: semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
		log:     log.With(zap.String("component", "factory")),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.seq = ident.NewSequence(r.first)
	r.Initialize()
	return r
}

// Initialize makes the registry ready for use. References still registered
// are torn down first. The identity sequence is never rewound, so
// identities stay unique across resets.
func (r *Registry) Initialize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idx.len() > 0 {
		r.teardown()
	}
	r.closed = false
	r.log.Info("registry initialized", zap.Stringer("next_id", r.seq.Peek()))
}

// CreateInstance creates a reference of concrete kind t from template base
// and returns its new identity.
func (r *Registry) CreateInstance(t tag.Tag, base uint32) (ident.Identity, error) {
	return r.create("create instance", t, Descriptor{BaseID: base}, false)
}

// CreateInstanceAt is CreateInstance with a slot hint. A zero slot lets the
// pool choose; a slot that is still held fails with a duplicate error.
func (r *Registry) CreateInstanceAt(t tag.Tag, slot ident.SlotID, base uint32) (ident.Identity, error) {
	return r.create("create instance", t, Descriptor{Slot: slot, BaseID: base}, false)
}

// CreateLocalInstance creates a reference of concrete kind t described by d.
// The identity is always allocated locally and d.ID is ignored; d.Slot is a
// hint as for CreateInstanceAt and d.Fields override the base template.
func (r *Registry) CreateLocalInstance(t tag.Tag, d Descriptor) (ident.Identity, error) {
	d.ID = 0
	return r.create("create instance", t, d, false)
}

// CreateKnownInstance registers a reference whose identity and slot were
// assigned by a peer. An identity that is live or retired, or a slot still
// held, is rejected as a duplicate.
func (r *Registry) CreateKnownInstance(t tag.Tag, d Descriptor) (ident.Identity, error) {
	id, err := r.create("create known instance", t, d, true)
	if err != nil {
		r.log.Warn("known instance rejected",
			zap.Uint64("id", uint64(d.ID)),
			zap.Uint32("slot", uint32(d.Slot)),
			zap.Stringer("type", t),
			zap.Error(err),
		)
	}
	return id, err
}

func (r *Registry) create(op string, t tag.Tag, d Descriptor, known bool) (ident.Identity, error) {
	if !t.IsConcrete() {
		return 0, fmt.Errorf("%s: %w", op, errors.NewTypeMismatchError("", t, tag.AllReferences))
	}
	fields, err := r.fieldsFor(t, d)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, fmt.Errorf("%s: %w", op, errors.ErrClosed)
	}

	id := d.ID
	if known && !id.IsZero() {
		if r.idx.taken(id) {
			return 0, fmt.Errorf("%s: %w", op, errors.NewDuplicateError(ident.Describe(id)))
		}
	} else {
		id = r.seq.Next(r.idx.taken)
	}

	slot := d.Slot
	if slot.IsZero() {
		slot = r.slots.Acquire()
	} else if !r.slots.Claim(slot) {
		return 0, fmt.Errorf("%s: %w", op, errors.NewDuplicateError(ident.Describe(slot)))
	}

	inst, err := entity.New(t, entity.Params{
		ID:        id,
		Slot:      slot,
		BaseID:    d.BaseID,
		Changed:   r.changed,
		OnReclaim: r.reclaimer(r.slots.Generation()),
	})
	if err != nil {
		r.slots.Release(slot)
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	r.changed = false
	entity.Apply(inst, fields)
	r.idx.insert(inst)

	event.Emit(r.bus, event.InstanceCreated{ID: id, Slot: slot, Type: t, Changed: inst.Base().Changed()})
	r.log.Debug("instance created",
		zap.Uint64("id", uint64(id)),
		zap.Uint32("slot", uint32(slot)),
		zap.Stringer("type", t),
	)
	return id, nil
}

// fieldsFor merges the base template with the descriptor's own fields.
func (r *Registry) fieldsFor(t tag.Tag, d Descriptor) (entity.Fields, error) {
	var f entity.Fields
	if r.templates != nil && d.BaseID != 0 {
		tf, want, ok := r.templates.Template(d.BaseID)
		if ok {
			if want != tag.None && !t.Satisfies(want) {
				return f, errors.NewTypeMismatchError(fmt.Sprintf("base %08x", d.BaseID), t, want)
			}
			f = tf
		}
	}
	if d.Fields.Name != "" {
		f.Name = d.Fields.Name
	}
	if d.Fields.HasPos {
		f.Pos, f.HasPos = d.Fields.Pos, true
	}
	return f, nil
}

// reclaimer returns the hook that frees a destroyed reference's slot once
// its last session has ended. Hooks from before a teardown are ignored.
func (r *Registry) reclaimer(gen uint64) func(*entity.Reference) {
	return func(ref *entity.Reference) {
		if !r.slots.ReleaseGen(ref.Slot(), gen) {
			return
		}
		r.pending.Add(-1)
		event.Emit(r.bus, event.InstanceReclaimed{ID: ref.ID(), Slot: ref.Slot()})
		r.log.Debug("instance reclaimed",
			zap.Uint64("id", uint64(ref.ID())),
			zap.Uint32("slot", uint32(ref.Slot())),
		)
	}
}

// DestroyInstance removes the reference from every index and retires its
// identity. Outstanding handles stay usable; the slot is reclaimed when the
// last of them is released.
func (r *Registry) DestroyInstance(id ident.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroy("destroy instance", id)
}

func (r *Registry) destroy(op string, id ident.Identity) error {
	inst, ok := r.idx.remove(id)
	if !ok {
		return fmt.Errorf("%s: %w", op, errors.NewNotFoundError(ident.Describe(id)))
	}
	ref := inst.Base()
	r.pending.Add(1)
	event.Emit(r.bus, event.InstanceDestroyed{ID: id, Slot: ref.Slot(), Type: ref.Type(), Changed: ref.Changed()})
	deferred := !ref.Detach()
	r.log.Debug("instance destroyed",
		zap.Uint64("id", uint64(id)),
		zap.Uint32("slot", uint32(ref.Slot())),
		zap.Stringer("type", ref.Type()),
		zap.Bool("deferred", deferred),
	)
	return nil
}

// DestroyAllInstances tears the registry down: every reference is detached
// regardless of outstanding sessions and all indexes, counts, retired
// identities and slots are cleared. Creation fails with errors.ErrClosed
// until Initialize is called again.
func (r *Registry) DestroyAllInstances() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.log.Warn("registry already torn down")
		return
	}
	r.teardown()
	r.closed = true
}

func (r *Registry) teardown() {
	n := r.idx.len()
	// Reset the pool first so that detach hooks see a stale generation.
	r.slots.Reset()
	r.idx.each(tag.AllReferences, func(inst entity.Instance) {
		inst.Base().Detach()
	})
	r.idx.reset()
	r.pending.Store(0)
	r.changed = false
	r.log.Info("registry torn down", zap.Int("released", n))
}

// SetChangeFlag marks the next created reference as changed. The flag is
// cleared by that creation.
func (r *Registry) SetChangeFlag(changed bool) {
	r.mu.Lock()
	r.changed = changed
	r.mu.Unlock()
}

// GetType returns the concrete tag of a live reference, tag.None otherwise.
func (r *Registry) GetType(id ident.Identity) tag.Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return typeOf(r.idx.byIdentity(id))
}

// GetTypeBySlot is GetType keyed by slot.
func (r *Registry) GetTypeBySlot(slot ident.SlotID) tag.Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return typeOf(r.idx.bySlotID(slot))
}

// GetTypeOf returns the tag of inst if it is live in this registry.
func (r *Registry) GetTypeOf(inst entity.Instance) tag.Tag {
	if inst == nil {
		return tag.None
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if live := r.idx.byIdentity(inst.Base().ID()); live == nil || live.Base() != inst.Base() {
		return tag.None
	}
	return inst.Base().Type()
}

func typeOf(inst entity.Instance) tag.Tag {
	if inst == nil {
		return tag.None
	}
	return inst.Base().Type()
}

// GetIDObjectTypes returns the identities of every live reference whose tag
// intersects mask, in creation order.
func (r *Registry) GetIDObjectTypes(mask tag.Tag) []ident.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ident.Identity, 0, r.idx.count(mask))
	r.idx.each(mask, func(inst entity.Instance) {
		ids = append(ids, inst.Base().ID())
	})
	return ids
}

// GetObjectCount returns the number of live references whose tag intersects
// mask.
func (r *Registry) GetObjectCount(mask tag.Tag) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idx.count(mask)
}

// LookupNetworkID translates a slot to the identity of its live owner, 0 if
// the slot is unmapped.
func (r *Registry) LookupNetworkID(slot ident.SlotID) ident.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if inst := r.idx.bySlotID(slot); inst != nil {
		return inst.Base().ID()
	}
	return 0
}

// LookupRefID translates an identity to the slot of the live reference, 0
// if the identity is unmapped.
func (r *Registry) LookupRefID(id ident.Identity) ident.SlotID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if inst := r.idx.byIdentity(id); inst != nil {
		return inst.Base().Slot()
	}
	return 0
}

// IsDeleted reports whether id was destroyed since the last teardown.
func (r *Registry) IsDeleted(id ident.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idx.retired(id)
}

// Stats returns a point-in-time summary of the registry.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Live:           r.idx.len(),
		Retired:        len(r.idx.deleted),
		PendingReclaim: r.pending.Load(),
		SlotsHeld:      r.slots.Len(),
		NextIdentity:   r.seq.Peek(),
		Closed:         r.closed,
	}
}

// Verify checks the index for internal consistency. Unlike the lookups,
// which panic on a corrupt index, it returns an *errors.IndexCorruptError.
func (r *Registry) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idx.verify()
}
