package factory

import (
	"testing"

	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindActor)

	h := GetObject[entity.Actor](r, id).Value()
	require.True(t, h.Valid())
	ref := h.Instance().Base()
	assert.Equal(t, int32(1), ref.Sessions())

	clones := make([]*Handle[entity.Actor], 5)
	for i := range clones {
		clones[i] = h.Clone()
		assert.True(t, clones[i].Equal(h))
	}
	assert.Equal(t, int32(6), ref.Sessions())

	ReleaseAll(clones)
	h.Release()
	assert.Equal(t, int32(0), ref.Sessions())
	assert.False(t, ref.Reclaimed(), "a live reference is never reclaimed")
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindObject)
	h := GetObject[entity.Object](r, id).Value()
	ref := h.Instance().Base()

	h.Release()
	h.Release()
	assert.Equal(t, int32(0), ref.Sessions())
	assert.False(t, h.Valid())
	assert.Nil(t, h.Get())
	assert.Equal(t, tag.None, h.Type())
}

func TestMoveTransfersSession(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindItem)
	h := GetObject[entity.Item](r, id).Value()

	m := h.Move()
	assert.False(t, h.Valid())
	assert.True(t, m.Valid())
	assert.Equal(t, int32(1), m.Sessions())
	assert.Equal(t, id, m.ID())
	m.Release()
}

func TestAssign(t *testing.T) {
	r := newTestRegistry(t)
	a := GetObject[entity.Object](r, mustCreate(t, r, tag.KindObject)).Value()
	b := GetObject[entity.Object](r, mustCreate(t, r, tag.KindItem)).Value()
	refA, refB := a.Instance().Base(), b.Instance().Base()

	a.Assign(b)
	assert.Equal(t, int32(0), refA.Sessions())
	assert.Equal(t, int32(2), refB.Sessions())
	assert.True(t, a.Equal(b))

	// Self-assignment keeps the session.
	a.Assign(a)
	assert.Equal(t, int32(2), refB.Sessions())

	a.Assign(&Handle[entity.Object]{})
	assert.False(t, a.Valid())
	assert.Equal(t, int32(1), refB.Sessions())
	b.Release()
}

func TestAssignKeepsDestroyedReferenceAlive(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindObject)
	h := GetObject[entity.Object](r, id).Value()
	require.NoError(t, r.DestroyInstance(id))
	ref := h.Instance().Base()

	h.Assign(h)
	assert.False(t, ref.Reclaimed())
	h.Release()
	assert.True(t, ref.Reclaimed())
}

func TestValidate(t *testing.T) {
	r := newTestRegistry(t)
	item := GetObject[entity.Item](r, mustCreate(t, r, tag.KindItem)).Value()
	defer item.Release()

	assert.True(t, Validate[entity.Item](item))
	assert.True(t, Validate[entity.Object](item))
	assert.True(t, Validate[entity.Reference](item))
	assert.False(t, Validate[entity.Container](item), "sibling kinds share only Object")
	assert.False(t, Validate[entity.Window](item))
	assert.False(t, Validate[entity.Item](&Handle[entity.Item]{}))

	assert.True(t, item.Is(tag.KindObject))
	assert.False(t, item.Is(tag.KindContainer))
}

func TestSiblingWindowsDoNotValidate(t *testing.T) {
	r := newTestRegistry(t)
	btn := GetObject[entity.Window](r, mustCreate(t, r, tag.KindButton)).Value()
	defer btn.Release()

	assert.True(t, Validate[entity.Button](btn))
	assert.False(t, Validate[entity.Text](btn))
	assert.False(t, Validate[entity.RadioButton](btn))
}

func TestCast(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindPlayer)
	obj := GetObject[entity.Object](r, id).Value()
	defer obj.Release()

	res := Cast[entity.Player](obj)
	require.True(t, res.OK())
	p := res.Value()
	assert.Equal(t, int32(2), obj.Sessions(), "cast starts its own session")
	p.Get().SetName("Six")
	assert.Equal(t, "Six", obj.Get().Name())
	p.Release()

	bad := Cast[entity.Item](obj)
	assert.True(t, errors.IsNotFound(bad.Err()))
	assert.True(t, errors.IsTypeMismatch(bad.Err()))
	assert.Equal(t, int32(1), obj.Sessions())
}

func TestCastChecksTheReferenceNotTheHandleKind(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindItem)
	ref := GetObject[entity.Reference](r, id).Value()
	defer ref.Release()

	// Drawn as the common ancestor; casting sideways still fails.
	assert.False(t, Cast[entity.Container](ref).OK())
	assert.False(t, Cast[entity.Window](ref).OK())

	item := Cast[entity.Item](ref)
	require.True(t, item.OK())
	item.Value().Release()
}

func TestCastEmptyHandle(t *testing.T) {
	res := Cast[entity.Actor](&Handle[entity.Object]{})
	assert.True(t, errors.IsNotFound(res.Err()))
	assert.False(t, errors.IsTypeMismatch(res.Err()))
}

func TestCastMove(t *testing.T) {
	r := newTestRegistry(t)
	id := mustCreate(t, r, tag.KindContainer)
	h := GetObject[entity.Object](r, id).Value()

	res := CastMove[entity.Container](h)
	require.True(t, res.OK())
	assert.False(t, h.Valid())
	c := res.Value()
	assert.Equal(t, int32(1), c.Sessions())
	c.Release()
}

func TestMustPanicsOnEmptyHandle(t *testing.T) {
	h := emptyHandle[entity.Object](errors.NewNotFoundError("id 1"))
	defer func() {
		rec := recover()
		lp, ok := rec.(*errors.LookupPanic)
		require.True(t, ok, "panic payload %T", rec)
		assert.True(t, errors.IsNotFound(lp))
	}()
	h.Must()
}

func TestExpected(t *testing.T) {
	ok := Ok(3)
	assert.True(t, ok.OK())
	assert.Equal(t, 3, ok.ValueOr(9))

	failed := Fail[int](errors.ErrNotFound)
	assert.False(t, failed.OK())
	assert.Equal(t, 9, failed.ValueOr(9))
	assert.Equal(t, 0, failed.Value())
	_, err := failed.Get()
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
