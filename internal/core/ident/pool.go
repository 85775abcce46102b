package ident

import "sync"

// SlotPool hands out reusable slot ids with a free list. Slots can also be
// claimed explicitly when the id is dictated by a remote peer. SlotPool has
// its own lock because slots are returned when the last session on a
// destroyed reference ends, which happens outside the registry lock.
type SlotPool struct {
	mu       sync.Mutex
	inUse    map[SlotID]struct{}
	freeList []SlotID
	next     SlotID
	gen      uint64 // bumped by Reset
}

func NewSlotPool() *SlotPool {
	return &SlotPool{
		inUse:    make(map[SlotID]struct{}, 1024),
		freeList: make([]SlotID, 0, 256),
		next:     1,
	}
}

// Acquire returns a free slot, preferring recently released ones.
func (p *SlotPool) Acquire() SlotID {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.freeList) > 0 {
		s := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		if _, taken := p.inUse[s]; taken {
			continue // claimed explicitly while it sat in the free list
		}
		p.inUse[s] = struct{}{}
		return s
	}
	for {
		s := p.next
		p.next++
		if p.next == 0 {
			p.next = 1
		}
		if _, taken := p.inUse[s]; !taken {
			p.inUse[s] = struct{}{}
			return s
		}
	}
}

// Claim reserves a specific slot. It fails if the slot is already held.
func (p *SlotPool) Claim(s SlotID) bool {
	if s.IsZero() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, taken := p.inUse[s]; taken {
		return false
	}
	p.inUse[s] = struct{}{}
	return true
}

// Release returns a slot to the pool. Releasing a slot that is not held is a
// no-op.
func (p *SlotPool) Release(s SlotID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, taken := p.inUse[s]; !taken {
		return
	}
	delete(p.inUse, s)
	p.freeList = append(p.freeList, s)
}

// Generation identifies the current pool lifetime. Slots acquired under one
// generation must be returned with ReleaseGen so that a release arriving
// after a Reset cannot free a slot that has since been handed out again.
func (p *SlotPool) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// ReleaseGen releases s only if the pool has not been reset since gen.
func (p *SlotPool) ReleaseGen(s SlotID, gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return false
	}
	if _, taken := p.inUse[s]; !taken {
		return false
	}
	delete(p.inUse, s)
	p.freeList = append(p.freeList, s)
	return true
}

// InUse reports whether s is currently held.
func (p *SlotPool) InUse(s SlotID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, taken := p.inUse[s]
	return taken
}

// Len returns the number of held slots.
func (p *SlotPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}

// Reset forgets every slot and starts a new generation.
func (p *SlotPool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.inUse)
	p.freeList = p.freeList[:0]
	p.next = 1
	p.gen++
}

// Sequence issues identities in increasing order, skipping any the caller
// reports as taken. Not safe for concurrent use; the registry calls it under
// its lock.
type Sequence struct {
	next Identity
}

func NewSequence(first Identity) *Sequence {
	if first == 0 {
		first = 1
	}
	return &Sequence{next: first}
}

// Next returns the lowest unissued identity for which taken is false.
func (s *Sequence) Next(taken func(Identity) bool) Identity {
	for {
		id := s.next
		s.next++
		if s.next == 0 {
			s.next = 1
		}
		if !taken(id) {
			return id
		}
	}
}

// Peek returns the identity Next would try first.
func (s *Sequence) Peek() Identity { return s.next }
