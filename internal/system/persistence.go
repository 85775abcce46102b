package system

import (
	"context"
	"time"

	"github.com/l1jgo/gamefactory/internal/core/event"
	"github.com/l1jgo/gamefactory/internal/core/ident"
	coresys "github.com/l1jgo/gamefactory/internal/core/system"
	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/factory"
	"github.com/l1jgo/gamefactory/internal/persist"
	"go.uber.org/zap"
)

// Snapshotter stores the live reference set. *persist.SnapshotRepo
// satisfies it.
type Snapshotter interface {
	Save(ctx context.Context, refs []entity.Summary) error
}

// Journaler appends lifecycle records. *persist.JournalRepo satisfies it.
type Journaler interface {
	Write(ctx context.Context, entries []persist.JournalEntry) error
}

// PersistenceSystem journals every lifecycle event each tick and saves a
// full snapshot every interval ticks. Phase 4 (Persist).
type PersistenceSystem struct {
	reg       *factory.Registry
	snapshots Snapshotter
	journal   Journaler
	pending   []persist.JournalEntry
	log       *zap.Logger
	tickCount int
	interval  int // snapshot every N ticks; 0 disables periodic snapshots
}

func NewPersistenceSystem(reg *factory.Registry, bus *event.Bus, snapshots Snapshotter, journal Journaler, intervalTicks int, log *zap.Logger) *PersistenceSystem {
	s := &PersistenceSystem{
		reg:       reg,
		snapshots: snapshots,
		journal:   journal,
		log:       log.With(zap.String("component", "persist")),
		interval:  intervalTicks,
	}
	if journal != nil {
		event.Subscribe(bus, func(ev event.InstanceCreated) {
			s.record(persist.OpCreate, ev.ID, ev.Slot, ev.Type)
		})
		event.Subscribe(bus, func(ev event.InstanceDestroyed) {
			s.record(persist.OpDestroy, ev.ID, ev.Slot, ev.Type)
		})
		event.Subscribe(bus, func(ev event.InstanceReclaimed) {
			s.record(persist.OpReclaim, ev.ID, ev.Slot, tag.None)
		})
	}
	return s
}

func (s *PersistenceSystem) record(op string, id ident.Identity, slot ident.SlotID, t tag.Tag) {
	s.pending = append(s.pending, persist.JournalEntry{Op: op, ID: id, Slot: slot, Type: t})
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.flushJournal()
	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.SnapshotNow()
}

// flushJournal writes the pending records. On failure they are kept for
// the next tick.
func (s *PersistenceSystem) flushJournal() {
	if s.journal == nil || len(s.pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.journal.Write(ctx, s.pending); err != nil {
		s.log.Error("journal flush failed", zap.Int("entries", len(s.pending)), zap.Error(err))
		return
	}
	s.pending = s.pending[:0]
}

// SnapshotNow saves every live reference immediately. Called for graceful
// shutdown before the registry is torn down.
func (s *PersistenceSystem) SnapshotNow() {
	if s.snapshots == nil {
		return
	}
	hs := factory.GetObjectTypes[entity.Reference](s.reg, tag.AllReferences)
	refs := make([]entity.Summary, 0, len(hs))
	for _, h := range hs {
		refs = append(refs, entity.Summarize(h.Instance()))
	}
	factory.ReleaseAll(hs)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	if err := s.snapshots.Save(ctx, refs); err != nil {
		s.log.Error("snapshot failed", zap.Int("references", len(refs)), zap.Error(err))
		return
	}
	s.log.Info("snapshot saved", zap.Int("references", len(refs)), zap.Duration("took", time.Since(start)))
}

// Restore recreates stored references with their identities and slots.
// Restored references are not marked changed. Returns how many were created.
func Restore(reg *factory.Registry, refs []entity.Summary, log *zap.Logger) int {
	n := 0
	for _, s := range refs {
		d := factory.Descriptor{ID: s.ID, Slot: s.Slot, BaseID: s.BaseID}
		d.Fields.Name = s.Name
		if s.Type.Matches(tag.AllObjects) {
			d.Fields.Pos, d.Fields.HasPos = s.Pos, true
		}
		if _, err := reg.CreateKnownInstance(s.Type, d); err != nil {
			log.Warn("snapshot entry skipped", zap.Uint64("id", uint64(s.ID)), zap.Error(err))
			continue
		}
		n++
	}
	return n
}
