package factory

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/l1jgo/gamefactory/internal/core/event"
	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	return New(zaptest.NewLogger(t), opts...)
}

func mustCreate(t *testing.T, r *Registry, k tag.Tag) ident.Identity {
	t.Helper()
	id, err := r.CreateInstance(k, 0)
	require.NoError(t, err)
	return id
}

func TestCreateInstanceIndexesBothIDs(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindItem)

	slot := r.LookupRefID(id)
	require.False(t, slot.IsZero())
	assert.Equal(t, id, r.LookupNetworkID(slot))
	assert.Equal(t, tag.KindItem, r.GetType(id))
	assert.Equal(t, tag.KindItem, r.GetTypeBySlot(slot))
	assert.Equal(t, uint32(1), r.GetObjectCount(tag.Item))
	require.NoError(t, r.Verify())
}

func TestCreateRejectsAbstractKinds(t *testing.T) {
	r := newTestRegistry(t)
	for _, bad := range []tag.Tag{tag.None, tag.Reference, tag.Actor, tag.AllObjects, tag.Tag(0x8000)} {
		_, err := r.CreateInstance(bad, 0)
		assert.True(t, errors.IsTypeMismatch(err), "tag %v: %v", bad, err)
	}
	assert.Equal(t, 0, r.Stats().Live)
}

func TestUnknownLookupsReturnSentinels(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, tag.None, r.GetType(99))
	assert.Equal(t, tag.None, r.GetTypeBySlot(99))
	assert.Equal(t, tag.None, r.GetTypeOf(nil))
	assert.Equal(t, ident.Identity(0), r.LookupNetworkID(99))
	assert.Equal(t, ident.SlotID(0), r.LookupRefID(99))
	assert.False(t, r.IsDeleted(99))
}

func TestCreateInstanceAtSlotHint(t *testing.T) {
	r := newTestRegistry(t)
	id, err := r.CreateInstanceAt(tag.KindContainer, 40, 0)
	require.NoError(t, err)
	assert.Equal(t, ident.SlotID(40), r.LookupRefID(id))

	_, err = r.CreateInstanceAt(tag.KindContainer, 40, 0)
	assert.True(t, errors.IsDuplicate(err))
}

func TestCreateLocalInstance(t *testing.T) {
	r := newTestRegistry(t)
	first := mustCreate(t, r, tag.KindItem)
	id, err := r.CreateLocalInstance(tag.KindItem, Descriptor{
		ID:     first, // ignored
		Slot:   12,
		Fields: entity.Fields{Name: "Stimpak", Pos: entity.Vector{X: 4}, HasPos: true},
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, id)
	assert.Equal(t, ident.SlotID(12), r.LookupRefID(id))

	res := GetObject[entity.Item](r, id)
	require.True(t, res.OK())
	defer res.Value().Release()
	assert.Equal(t, "Stimpak", res.Value().Get().Name())
	assert.Equal(t, entity.Vector{X: 4}, res.Value().Get().Pos())

	_, err = r.CreateLocalInstance(tag.KindItem, Descriptor{Slot: 12})
	assert.True(t, errors.IsDuplicate(err))
}

func TestCreateKnownInstance(t *testing.T) {
	r := newTestRegistry(t)
	id, err := r.CreateKnownInstance(tag.KindActor, Descriptor{
		ID:     0x1000,
		Slot:   7,
		BaseID: 0x20,
		Fields: entity.Fields{Name: "Vulpes", Pos: entity.Vector{X: 1, Y: 2, Z: 3}, HasPos: true},
	})
	require.NoError(t, err)
	assert.Equal(t, ident.Identity(0x1000), id)
	assert.Equal(t, ident.SlotID(7), r.LookupRefID(id))

	h := GetObject[entity.Actor](r, id).Value()
	require.True(t, h.Valid())
	defer h.Release()
	assert.Equal(t, "Vulpes", h.Get().Name())
	assert.Equal(t, entity.Vector{X: 1, Y: 2, Z: 3}, h.Get().Pos())
	assert.Equal(t, uint32(0x20), h.Instance().Base().BaseID())
}

func TestCreateKnownInstanceRejectsDuplicates(t *testing.T) {
	r := newTestRegistry(t)
	id, err := r.CreateKnownInstance(tag.KindObject, Descriptor{ID: 500, Slot: 5})
	require.NoError(t, err)

	_, err = r.CreateKnownInstance(tag.KindObject, Descriptor{ID: 500, Slot: 6})
	assert.True(t, errors.IsDuplicate(err), "live identity")

	_, err = r.CreateKnownInstance(tag.KindObject, Descriptor{ID: 501, Slot: 5})
	assert.True(t, errors.IsDuplicate(err), "held slot")

	require.NoError(t, r.DestroyInstance(id))
	_, err = r.CreateKnownInstance(tag.KindObject, Descriptor{ID: 500})
	assert.True(t, errors.IsDuplicate(err), "retired identity")
	require.NoError(t, r.Verify())
}

func TestLocalIdentitiesSkipKnownOnes(t *testing.T) {
	r := newTestRegistry(t, WithFirstIdentity(10))
	_, err := r.CreateKnownInstance(tag.KindObject, Descriptor{ID: 11})
	require.NoError(t, err)

	a := mustCreate(t, r, tag.KindObject)
	b := mustCreate(t, r, tag.KindObject)
	assert.Equal(t, ident.Identity(10), a)
	assert.Equal(t, ident.Identity(12), b)
}

func TestDestroyInstance(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindItem)
	slot := r.LookupRefID(id)

	require.NoError(t, r.DestroyInstance(id))
	assert.Equal(t, tag.None, r.GetType(id))
	assert.Equal(t, ident.Identity(0), r.LookupNetworkID(slot))
	assert.True(t, r.IsDeleted(id))
	assert.Equal(t, uint32(0), r.GetObjectCount(tag.AllReferences))

	err := r.DestroyInstance(id)
	assert.True(t, errors.IsNotFound(err))
	require.NoError(t, r.Verify())
}

func TestIsDeletedIsPermanent(t *testing.T) {
	r := newTestRegistry(t)
	gone := mustCreate(t, r, tag.KindObject)
	require.NoError(t, r.DestroyInstance(gone))

	for i := 0; i < 50; i++ {
		id := mustCreate(t, r, tag.Concrete[i%len(tag.Concrete)])
		if i%3 == 0 {
			require.NoError(t, r.DestroyInstance(id))
		}
		assert.True(t, r.IsDeleted(gone))
	}
	assert.NotContains(t, r.GetIDObjectTypes(tag.AllReferences), gone)
}

func TestDestroyWithOutstandingHandleDefersReclaim(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindContainer)
	slot := r.LookupRefID(id)

	h := GetObject[entity.Container](r, id).Value()
	require.True(t, h.Valid())
	require.NoError(t, r.DestroyInstance(id))

	// Unreachable, but the payload stays valid and the slot stays reserved.
	assert.False(t, GetObject[entity.Container](r, id).OK())
	assert.True(t, h.Get().AddItem(1))
	assert.True(t, r.slots.InUse(slot))
	assert.Equal(t, int64(1), r.Stats().PendingReclaim)
	_, err := r.CreateInstanceAt(tag.KindObject, slot, 0)
	assert.True(t, errors.IsDuplicate(err), "slot reused before reclaim")

	ref := h.Instance().Base()
	h.Release()
	assert.True(t, ref.Reclaimed())
	assert.False(t, r.slots.InUse(slot))
	assert.Equal(t, int64(0), r.Stats().PendingReclaim)

	_, err = r.CreateInstanceAt(tag.KindObject, slot, 0)
	assert.NoError(t, err)
}

func TestChangeFlagAppliesOnce(t *testing.T) {
	r := newTestRegistry(t)
	r.SetChangeFlag(true)
	a := mustCreate(t, r, tag.KindObject)
	b := mustCreate(t, r, tag.KindObject)

	ha := GetObject[entity.Reference](r, a).Value()
	hb := GetObject[entity.Reference](r, b).Value()
	defer ha.Release()
	defer hb.Release()
	assert.True(t, ha.Get().Changed())
	assert.False(t, hb.Get().Changed())
}

func TestCountMatchesSnapshot(t *testing.T) {
	r := newTestRegistry(t)
	for i := 0; i < 40; i++ {
		mustCreate(t, r, tag.Concrete[i%len(tag.Concrete)])
	}
	for _, mask := range []tag.Tag{
		tag.AllReferences, tag.AllObjects, tag.AllContainers, tag.AllActors,
		tag.AllWindows, tag.Item, tag.Player, tag.RadioButton,
	} {
		ids := r.GetIDObjectTypes(mask)
		assert.Equal(t, int(r.GetObjectCount(mask)), len(ids), "mask %v", mask)

		hs := GetObjectTypes[entity.Reference](r, mask)
		assert.Equal(t, len(ids), len(hs), "mask %v", mask)
		ReleaseAll(hs)
	}
}

func TestSnapshotIsInCreationOrder(t *testing.T) {
	r := newTestRegistry(t)
	a := mustCreate(t, r, tag.KindItem)
	b := mustCreate(t, r, tag.KindPlayer)
	mustCreate(t, r, tag.KindButton)
	c := mustCreate(t, r, tag.KindContainer)

	assert.Equal(t, []ident.Identity{a, b, c}, r.GetIDObjectTypes(tag.AllObjects))

	// Only references viewable as Container are handed out.
	hs := GetObjectTypes[entity.Container](r, tag.AllObjects)
	defer ReleaseAll(hs)
	require.Len(t, hs, 2)
	assert.Equal(t, b, hs[0].ID())
	assert.Equal(t, c, hs[1].ID())
}

func TestPlayerScenario(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindPlayer)

	typ := r.GetType(id)
	for _, kind := range []tag.Tag{tag.KindPlayer, tag.KindActor, tag.KindContainer, tag.KindObject, tag.Reference} {
		assert.True(t, typ.Satisfies(kind), "%v should satisfy %v", typ, kind)
	}
	assert.False(t, typ.Satisfies(tag.KindItem))
	assert.False(t, typ.Matches(tag.Item))
	assert.False(t, typ.Matches(tag.AllWindows))

	require.NoError(t, r.DestroyInstance(id))
	res := GetObject[entity.Player](r, id)
	assert.True(t, errors.IsNotFound(res.Err()))
	assert.True(t, r.IsDeleted(id))
}

func TestGetObjectTypeMismatch(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindActor)

	res := GetObject[entity.Player](r, id)
	assert.False(t, res.OK())
	assert.True(t, errors.IsTypeMismatch(res.Err()))
	assert.Nil(t, res.Value())

	// A failed lookup must not leave a session behind.
	h := GetObject[entity.Actor](r, id).Value()
	defer h.Release()
	assert.Equal(t, int32(1), h.Sessions())
}

func TestGetMultipleWithHole(t *testing.T) {
	r := newTestRegistry(t)
	id1 := mustCreate(t, r, tag.KindObject)
	id2 := mustCreate(t, r, tag.KindObject)
	id3 := mustCreate(t, r, tag.KindItem)
	require.NoError(t, r.DestroyInstance(id2))

	res := GetMultiple[entity.Object](r, []ident.Identity{id1, id2, id3})
	defer ReleaseResults(res)
	require.Len(t, res, 3)
	assert.True(t, res[0].OK())
	assert.Equal(t, id1, res[0].Value().ID())
	assert.True(t, errors.IsNotFound(res[1].Err()))
	assert.True(t, res[2].OK())
	assert.Equal(t, id3, res[2].Value().ID())
}

func TestGetMultipleBySlot(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindEdit)
	res := GetMultipleBySlot[entity.Window](r, []ident.SlotID{999, r.LookupRefID(id)})
	defer ReleaseResults(res)
	assert.False(t, res[0].OK())
	assert.Equal(t, id, res[1].Value().ID())
}

func TestStrictDestroySoleSession(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindItem)
	h := GetObject[entity.Item](r, id).Value()

	got, err := DestroyHandle(r, h)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.False(t, h.Valid(), "handle is consumed")
	assert.True(t, errors.IsNotFound(GetObject[entity.Reference](r, id).Err()))
	assert.True(t, r.IsDeleted(id))
	assert.Equal(t, int64(0), r.Stats().PendingReclaim)
}

func TestStrictDestroyRefusedWithTwoSessions(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindItem)
	h := GetObject[entity.Item](r, id).Value()
	other := GetObject[entity.Object](r, id).Value()

	_, err := DestroyHandle(r, h)
	assert.True(t, errors.IsPrecondition(err))
	assert.True(t, h.Valid())
	assert.Equal(t, tag.KindItem, r.GetType(id))
	assert.False(t, r.IsDeleted(id))

	other.Release()
	_, err = DestroyHandle(r, h)
	assert.NoError(t, err)
}

func TestStrictDestroyEmptyHandle(t *testing.T) {
	r := newTestRegistry(t)
	_, err := DestroyHandle(r, &Handle[entity.Object]{})
	assert.True(t, errors.IsNotFound(err))
}

func TestGetTypeOfDetached(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindText)
	h := GetObject[entity.Text](r, id).Value()
	defer h.Release()

	assert.Equal(t, tag.KindText, r.GetTypeOf(h.Instance()))
	require.NoError(t, r.DestroyInstance(id))
	assert.Equal(t, tag.None, r.GetTypeOf(h.Instance()))
}

func TestDestroyAllInstances(t *testing.T) {
	r := newTestRegistry(t)
	a := mustCreate(t, r, tag.KindObject)
	mustCreate(t, r, tag.KindPlayer)
	stale := GetObject[entity.Object](r, a).Value()
	require.NoError(t, r.DestroyInstance(mustCreate(t, r, tag.KindItem)))

	r.DestroyAllInstances()
	assert.Equal(t, uint32(0), r.GetObjectCount(tag.AllReferences))
	assert.False(t, r.IsDeleted(a), "retired set is cleared")
	assert.True(t, stale.Valid(), "outstanding handles stay usable")
	assert.True(t, r.Stats().Closed)

	_, err := r.CreateInstance(tag.KindObject, 0)
	assert.True(t, errors.IsClosed(err))
	r.DestroyAllInstances() // no-op

	r.Initialize()
	b := mustCreate(t, r, tag.KindObject)
	assert.NotEqual(t, a, b, "identities are not reused across resets")
	slot := r.LookupRefID(b)

	// The stale handle's slot number may now belong to b; releasing it must
	// not free b's slot.
	stale.Release()
	assert.True(t, r.slots.InUse(slot))
	assert.Equal(t, int64(0), r.Stats().PendingReclaim)
	require.NoError(t, r.Verify())
}

func TestLifecycleEvents(t *testing.T) {
	bus := event.NewBus()
	r := newTestRegistry(t, WithBus(bus))

	var created []event.InstanceCreated
	var destroyed []event.InstanceDestroyed
	var reclaimed []event.InstanceReclaimed
	event.Subscribe(bus, func(ev event.InstanceCreated) { created = append(created, ev) })
	event.Subscribe(bus, func(ev event.InstanceDestroyed) { destroyed = append(destroyed, ev) })
	event.Subscribe(bus, func(ev event.InstanceReclaimed) { reclaimed = append(reclaimed, ev) })

	r.SetChangeFlag(true)
	id := mustCreate(t, r, tag.KindActor)
	h := GetObject[entity.Actor](r, id).Value()
	require.NoError(t, r.DestroyInstance(id))
	bus.SwapBuffers()
	bus.DispatchAll()

	require.Len(t, created, 1)
	assert.Equal(t, id, created[0].ID)
	assert.True(t, created[0].Changed)
	require.Len(t, destroyed, 1)
	assert.Equal(t, tag.KindActor, destroyed[0].Type)
	assert.Empty(t, reclaimed)

	h.Release()
	bus.SwapBuffers()
	bus.DispatchAll()
	require.Len(t, reclaimed, 1)
	assert.Equal(t, id, reclaimed[0].ID)
}

type fakeTemplates map[uint32]struct {
	fields entity.Fields
	kind   tag.Tag
}

func (f fakeTemplates) Template(base uint32) (entity.Fields, tag.Tag, bool) {
	t, ok := f[base]
	return t.fields, t.kind, ok
}

func TestTemplatesSeedFields(t *testing.T) {
	src := fakeTemplates{
		0x14: {fields: entity.Fields{Name: "Courier"}, kind: tag.KindActor},
		0x15: {fields: entity.Fields{Name: "Lucky 38 Key"}},
	}
	r := newTestRegistry(t, WithTemplates(src))

	id, err := r.CreateInstance(tag.KindPlayer, 0x14)
	require.NoError(t, err)
	h := GetObject[entity.Player](r, id).Value()
	defer h.Release()
	assert.Equal(t, "Courier", h.Get().Name())

	// Descriptor fields win over the template.
	id, err = r.CreateKnownInstance(tag.KindItem, Descriptor{BaseID: 0x15, Fields: entity.Fields{Name: "Key"}})
	require.NoError(t, err)
	hi := GetObject[entity.Item](r, id).Value()
	defer hi.Release()
	assert.Equal(t, "Key", hi.Get().Name())

	_, err = r.CreateInstance(tag.KindItem, 0x14)
	assert.True(t, errors.IsTypeMismatch(err), "template requires an actor")
}

func TestRandomOperationsKeepIndexConsistent(t *testing.T) {
	r := newTestRegistry(t)
	rng := rand.New(rand.NewSource(7))
	var live []ident.Identity
	var retired []ident.Identity

	for i := 0; i < 500; i++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			live = append(live, mustCreate(t, r, tag.Concrete[rng.Intn(len(tag.Concrete))]))
		} else {
			j := rng.Intn(len(live))
			require.NoError(t, r.DestroyInstance(live[j]))
			retired = append(retired, live[j])
			live = append(live[:j], live[j+1:]...)
		}
		require.NoError(t, r.Verify(), "step %d", i)
	}

	slots := make(map[ident.SlotID]ident.Identity, len(live))
	for _, id := range live {
		s := r.LookupRefID(id)
		require.False(t, s.IsZero())
		_, dup := slots[s]
		require.False(t, dup, "slot %v shared", s)
		slots[s] = id
		assert.Equal(t, id, r.LookupNetworkID(s))
	}
	for _, id := range retired {
		assert.True(t, r.IsDeleted(id))
	}
	assert.Equal(t, len(live), int(r.GetObjectCount(tag.AllReferences)))
}

func TestConcurrentUse(t *testing.T) {
	r := newTestRegistry(t)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id, err := r.CreateInstance(tag.Concrete[(w+i)%len(tag.Concrete)], 0)
				if err != nil {
					t.Errorf("create: %v", err)
					return
				}
				h := GetObject[entity.Reference](r, id).Value()
				c := h.Clone()
				if i%2 == 0 {
					if err := r.DestroyInstance(id); err != nil {
						t.Errorf("destroy: %v", err)
					}
				}
				h.Release()
				c.Release()
				if i%10 == 0 {
					hs := GetObjectTypes[entity.Object](r, tag.AllObjects)
					ReleaseAll(hs)
				}
			}
		}(w)
	}
	wg.Wait()

	require.NoError(t, r.Verify())
	st := r.Stats()
	assert.Equal(t, 800, st.Live)
	assert.Equal(t, 800, st.Retired)
	assert.Equal(t, int64(0), st.PendingReclaim)
	assert.Equal(t, 800, st.SlotsHeld)
}
