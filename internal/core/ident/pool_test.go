package ident

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotPoolReuse(t *testing.T) {
	p := NewSlotPool()
	a := p.Acquire()
	b := p.Acquire()
	require.Equal(t, SlotID(1), a)
	require.Equal(t, SlotID(2), b)

	p.Release(a)
	assert.False(t, p.InUse(a))
	assert.Equal(t, a, p.Acquire(), "released slot should be reused first")
	assert.Equal(t, 2, p.Len())
}

func TestSlotPoolClaim(t *testing.T) {
	p := NewSlotPool()
	require.True(t, p.Claim(3))
	assert.False(t, p.Claim(3), "double claim must fail")
	assert.False(t, p.Claim(0), "zero slot is never claimable")

	// Sequential allocation steps over the claimed slot.
	got := []SlotID{p.Acquire(), p.Acquire(), p.Acquire()}
	assert.Equal(t, []SlotID{1, 2, 4}, got)
}

func TestSlotPoolClaimWhileFree(t *testing.T) {
	p := NewSlotPool()
	s := p.Acquire()
	p.Release(s)
	require.True(t, p.Claim(s))
	assert.NotEqual(t, s, p.Acquire(), "claimed slot must not be handed out from the free list")
}

func TestSlotPoolReleaseUnknown(t *testing.T) {
	p := NewSlotPool()
	p.Release(42)
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, SlotID(1), p.Acquire())
}

func TestSlotPoolConcurrentAcquire(t *testing.T) {
	p := NewSlotPool()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[SlotID]bool)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := p.Acquire()
				mu.Lock()
				if seen[s] {
					t.Errorf("slot %d handed out twice", s)
				}
				seen[s] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, p.Len())
}

func TestSequenceSkipsTaken(t *testing.T) {
	seq := NewSequence(0)
	taken := map[Identity]bool{2: true, 3: true}
	isTaken := func(id Identity) bool { return taken[id] }

	assert.Equal(t, Identity(1), seq.Next(isTaken))
	assert.Equal(t, Identity(4), seq.Next(isTaken))
	assert.Equal(t, Identity(5), seq.Peek())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "id 000000000000002a", Describe(Identity(42)))
	assert.Equal(t, "slot 0000002a", Describe(SlotID(42)))
}

func TestSlotPoolReleaseAfterReset(t *testing.T) {
	p := NewSlotPool()
	gen := p.Generation()
	s := p.Acquire()

	p.Reset()
	require.Equal(t, s, p.Acquire(), "fresh generation starts over")
	assert.False(t, p.ReleaseGen(s, gen), "stale release must not free the new owner's slot")
	assert.True(t, p.InUse(s))
	assert.True(t, p.ReleaseGen(s, p.Generation()))
	assert.False(t, p.InUse(s))
}
