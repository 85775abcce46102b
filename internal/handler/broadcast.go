package handler

import (
	"github.com/l1jgo/gamefactory/internal/core/event"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/factory"
	"github.com/l1jgo/gamefactory/internal/net"
)

// SubscribeBroadcasts forwards lifecycle events of changed references to
// every ready peer except the one that announced them.
func SubscribeBroadcasts(bus *event.Bus, deps *Deps) {
	deps.bus = bus
	event.Subscribe(bus, func(ev event.InstanceCreated) {
		origin, fromPeer := deps.createdBy[ev.ID]
		delete(deps.createdBy, ev.ID)
		if !ev.Changed {
			return
		}
		res := factory.GetObject[entity.Reference](deps.Registry, ev.ID)
		if !res.OK() {
			return // already destroyed; the DELETE that follows is enough
		}
		h := res.Value()
		pkt := newPacket(deps, entity.Summarize(h.Instance()), true)
		h.Release()
		broadcast(deps, pkt, origin, fromPeer)
	})

	event.Subscribe(bus, func(ev event.InstanceDestroyed) {
		origin, fromPeer := deps.destroyedBy[ev.ID]
		delete(deps.destroyedBy, ev.ID)
		if !ev.Changed {
			return
		}
		broadcast(deps, deletePacket(deps, ev.ID), origin, fromPeer)
	})
}

func broadcast(deps *Deps, pkt []byte, origin uint64, skip bool) {
	seq := deps.bus.Current()
	deps.Sessions.Ready(func(s *net.Session) {
		if skip && s.ID == origin {
			return
		}
		if mark, ok := deps.replayMarks[s.ID]; ok {
			if seq <= mark {
				return
			}
			delete(deps.replayMarks, s.ID) // events only move forward
		}
		s.Send(pkt)
	})
}
