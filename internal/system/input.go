package system

import (
	"time"

	coresys "github.com/l1jgo/gamefactory/internal/core/system"
	"github.com/l1jgo/gamefactory/internal/net"
	"github.com/l1jgo/gamefactory/internal/net/packet"
	"go.uber.org/zap"
)

// SessionSource hands over peers accepted by the listener. *net.Server
// satisfies it.
type SessionSource interface {
	NewSessions() <-chan *net.Session
	DeadSessions() <-chan uint64
	NotifyDead(sessionID uint64)
}

// InputSystem drains packet queues from all sessions and dispatches them
// through the packet registry. Phase 0 (Input).
type InputSystem struct {
	source     SessionSource
	registry   *packet.Registry
	store      *net.SessionStore
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(source SessionSource, registry *packet.Registry, store *net.SessionStore, maxPerTick int, log *zap.Logger) *InputSystem {
	return &InputSystem{
		source:     source,
		registry:   registry,
		store:      store,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	s.acceptNew()
	s.dropDead()

	for id, sess := range s.store.Raw() {
		s.drain(sess)
		if sess.IsClosed() {
			// Flush what the last packets produced before forgetting the peer.
			sess.FlushOutput()
			s.log.Info("peer disconnected", zap.Uint64("session", id), zap.String("peer", sess.PeerName))
			s.source.NotifyDead(id)
			s.store.Remove(id)
		}
	}

	// Flush early so replies leave while later phases run.
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}

func (s *InputSystem) acceptNew() {
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.store.Add(sess)
		default:
			return
		}
	}
}

func (s *InputSystem) dropDead() {
	for {
		select {
		case id := <-s.source.DeadSessions():
			if sess := s.store.Get(id); sess != nil && !sess.IsClosed() {
				sess.Close()
			}
		default:
			return
		}
	}
}

// drain dispatches up to maxPerTick queued packets from sess.
func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case data := <-sess.InQueue:
			if err := s.registry.Dispatch(sess, sess.State(), data); err != nil {
				s.log.Debug("packet dispatch failed",
					zap.Uint64("session", sess.ID),
					zap.Error(err),
				)
			}
		default:
			return
		}
	}
}
