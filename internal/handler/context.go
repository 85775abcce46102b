// Package handler implements the reference mirror protocol: peers announce
// and retire references over the wire and the factory keeps its registry
// and every other ready peer in step.
package handler

import (
	"github.com/l1jgo/gamefactory/internal/config"
	"github.com/l1jgo/gamefactory/internal/core/event"
	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/errors"
	"github.com/l1jgo/gamefactory/internal/factory"
	"github.com/l1jgo/gamefactory/internal/net"
	"github.com/l1jgo/gamefactory/internal/net/packet"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	Registry *factory.Registry
	Sessions *net.SessionStore
	Charset  encoding.Encoding

	// Sessions whose announcement caused a pending lifecycle event; the
	// broadcast skips them. Tick loop only.
	createdBy   map[ident.Identity]uint64
	destroyedBy map[ident.Identity]uint64

	// Bus sequence covered by each session's handshake replay. Broadcasts
	// of events at or below the mark are already part of the replay.
	replayMarks map[uint64]uint64
	bus         *event.Bus
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	deps.createdBy = make(map[ident.Identity]uint64)
	deps.destroyedBy = make(map[ident.Identity]uint64)
	deps.replayMarks = make(map[uint64]uint64)

	reg.Register(packet.C_OPCODE_HELLO,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) {
			HandleHello(sess.(*net.Session), r, deps)
		},
	)

	ready := []packet.SessionState{packet.StateReady}
	reg.Register(packet.C_OPCODE_NEW, ready,
		func(sess any, r *packet.Reader) {
			HandleNew(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_DELETE, ready,
		func(sess any, r *packet.Reader) {
			HandleDelete(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_LOOKUP_SLOT, ready,
		func(sess any, r *packet.Reader) {
			HandleLookupSlot(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_LOOKUP_ID, ready,
		func(sess any, r *packet.Reader) {
			HandleLookupID(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_STATS, ready,
		func(sess any, r *packet.Reader) {
			HandleStats(sess.(*net.Session), r, deps)
		},
	)
}

// statusOf maps a registry error to the status byte of an acknowledgement.
func statusOf(err error) byte {
	switch {
	case err == nil:
		return packet.StatusOK
	case errors.IsNotFound(err):
		return packet.StatusNotFound
	case errors.IsTypeMismatch(err):
		return packet.StatusTypeMismatch
	case errors.IsDuplicate(err):
		return packet.StatusDuplicate
	case errors.IsPrecondition(err):
		return packet.StatusPrecondition
	case errors.IsClosed(err):
		return packet.StatusClosed
	default:
		return packet.StatusError
	}
}
