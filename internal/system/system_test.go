package system

import (
	"context"
	"errors"
	gonet "net"
	"testing"
	"time"

	"github.com/l1jgo/gamefactory/internal/core/event"
	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/factory"
	"github.com/l1jgo/gamefactory/internal/net"
	"github.com/l1jgo/gamefactory/internal/net/packet"
	"github.com/l1jgo/gamefactory/internal/persist"
	"github.com/l1jgo/gamefactory/internal/scripting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSnapshots struct {
	saved [][]entity.Summary
	err   error
}

func (f *fakeSnapshots) Save(_ context.Context, refs []entity.Summary) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, refs)
	return nil
}

type fakeJournal struct {
	entries []persist.JournalEntry
	err     error
}

func (f *fakeJournal) Write(_ context.Context, entries []persist.JournalEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func TestPersistenceJournalsAndSnapshots(t *testing.T) {
	log := zaptest.NewLogger(t)
	bus := event.NewBus()
	reg := factory.New(log, factory.WithBus(bus))
	snaps, journal := &fakeSnapshots{}, &fakeJournal{}
	events := NewEventSystem(bus)
	ps := NewPersistenceSystem(reg, bus, snaps, journal, 2, log)

	a, err := reg.CreateInstance(tag.KindPlayer, 0)
	require.NoError(t, err)
	b, err := reg.CreateInstance(tag.KindItem, 0)
	require.NoError(t, err)
	require.NoError(t, reg.DestroyInstance(b))

	events.Update(0)
	ps.Update(0)
	require.Len(t, journal.entries, 4, "two creates, a destroy and its reclaim")
	assert.Equal(t, persist.OpCreate, journal.entries[0].Op)
	assert.Equal(t, a, journal.entries[0].ID)
	assert.Equal(t, persist.OpDestroy, journal.entries[2].Op)
	assert.Equal(t, persist.OpReclaim, journal.entries[3].Op)
	assert.Empty(t, snaps.saved, "snapshot waits for the interval")

	ps.Update(0)
	require.Len(t, snaps.saved, 1)
	require.Len(t, snaps.saved[0], 1)
	assert.Equal(t, a, snaps.saved[0][0].ID)
	assert.Equal(t, tag.KindPlayer, snaps.saved[0][0].Type)
	assert.Equal(t, int32(0), sessionsOf(t, reg, a), "snapshot released its handles")
}

func sessionsOf(t *testing.T, reg *factory.Registry, id ident.Identity) int32 {
	t.Helper()
	res := factory.GetObject[entity.Reference](reg, id)
	require.True(t, res.OK())
	h := res.Value()
	defer h.Release()
	return h.Sessions() - 1
}

func TestJournalRetriesAfterFailure(t *testing.T) {
	log := zaptest.NewLogger(t)
	bus := event.NewBus()
	reg := factory.New(log, factory.WithBus(bus))
	journal := &fakeJournal{err: errors.New("db down")}
	ps := NewPersistenceSystem(reg, bus, nil, journal, 0, log)

	_, err := reg.CreateInstance(tag.KindObject, 0)
	require.NoError(t, err)
	NewEventSystem(bus).Update(0)
	ps.Update(0)
	assert.Empty(t, journal.entries)

	journal.err = nil
	ps.Update(0)
	assert.Len(t, journal.entries, 1)
}

func TestRestore(t *testing.T) {
	log := zaptest.NewLogger(t)
	reg := factory.New(log)
	n := Restore(reg, []entity.Summary{
		{ID: 0x10, Slot: 4, Type: tag.KindActor, Name: "Eyebot", Pos: entity.Vector{X: 5}},
		{ID: 0x10, Slot: 5, Type: tag.KindActor},
		{ID: 0x11, Slot: 6, Type: tag.KindButton, Name: "OK"},
	}, log)
	assert.Equal(t, 2, n, "duplicate identity skipped")
	assert.Equal(t, uint32(4), uint32(reg.LookupRefID(0x10)))

	pos, err := factory.Operate(reg, identOf(0x10), func(h *factory.Handle[entity.Object]) entity.Vector {
		return h.Must().Pos()
	})
	require.NoError(t, err)
	assert.Equal(t, float32(5), pos.X)
}

func TestAuditSystem(t *testing.T) {
	log := zaptest.NewLogger(t)
	reg := factory.New(log)
	_, err := reg.CreateInstance(tag.KindObject, 0)
	require.NoError(t, err)

	audit := NewAuditSystem(reg, 1, log)
	audit.Update(0)
	audit.Update(0)
	assert.Equal(t, 0, audit.Failures())
}

type fakeSource struct {
	newCh  chan *net.Session
	deadCh chan uint64
	dead   []uint64
}

func (f *fakeSource) NewSessions() <-chan *net.Session { return f.newCh }
func (f *fakeSource) DeadSessions() <-chan uint64 { return f.deadCh }
func (f *fakeSource) NotifyDead(id uint64) { f.dead = append(f.dead, id) }

func TestInputSystemDispatchesAndDropsClosed(t *testing.T) {
	log := zaptest.NewLogger(t)
	src := &fakeSource{newCh: make(chan *net.Session, 4), deadCh: make(chan uint64, 4)}
	reg := packet.NewRegistry(nil, log)
	var seen []uint64
	reg.Register(packet.C_OPCODE_STATS, []packet.SessionState{packet.StateHandshake, packet.StateDisconnecting}, func(sess any, _ *packet.Reader) {
		seen = append(seen, sess.(*net.Session).ID)
	})
	store := net.NewSessionStore()
	input := NewInputSystem(src, reg, store, 2, log)
	runOutput := NewOutputSystem(store)

	conn, peer := gonet.Pipe()
	t.Cleanup(func() { conn.Close(); peer.Close() })
	sess := net.NewSession(conn, 9, net.SessionOptions{InQueueSize: 8, OutQueueSize: 8}, log)
	for i := 0; i < 3; i++ {
		sess.InQueue <- []byte{packet.C_OPCODE_STATS}
	}
	src.newCh <- sess

	input.Update(0)
	assert.Equal(t, []uint64{9, 9}, seen, "at most maxPerTick packets per tick")
	assert.Equal(t, 1, store.Len())
	runOutput.Update(0)

	src.deadCh <- 9
	input.Update(0)
	assert.Equal(t, []uint64{9, 9, 9}, seen, "queued packets drain before removal")
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, []uint64{9}, src.dead)
}

func TestScriptSystemRunsHooks(t *testing.T) {
	log := zaptest.NewLogger(t)
	bus := event.NewBus()
	reg := factory.New(log, factory.WithBus(bus))
	eng := newTestEngine(t, reg)
	require.NoError(t, eng.DoString(`
		made, ms = 0, 0
		function on_create(id, kind) made = made + 1 end
		function on_tick(d) ms = ms + d end
	`))
	scripts := NewScriptSystem(eng, bus)

	_, err := reg.CreateInstance(tag.KindItem, 0)
	require.NoError(t, err)
	NewEventSystem(bus).Update(0)
	scripts.Update(150 * time.Millisecond)
	require.NoError(t, eng.DoString(`assert(made == 1 and ms == 150)`))
}

func identOf(v uint64) ident.Identity { return ident.Identity(v) }

func newTestEngine(t *testing.T, reg *factory.Registry) *scripting.Engine {
	t.Helper()
	eng, err := scripting.NewEngine("", reg, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return eng
}
