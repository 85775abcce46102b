package handler

import (
	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/factory"
	"github.com/l1jgo/gamefactory/internal/net"
	"github.com/l1jgo/gamefactory/internal/net/packet"
	"go.uber.org/zap"
)

// HandleHello processes C_HELLO. Responds with S_HELLO, moves the session
// to Ready and replays every changed reference so the peer starts in step.
// Lifecycle events still queued on the bus that the replay already covers
// are not broadcast to this session again.
func HandleHello(sess *net.Session, r *packet.Reader, deps *Deps) {
	sess.PeerName = r.ReadS()

	cfg := deps.Config
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_HELLO, deps.Charset)
	w.WriteD(uint32(cfg.Server.ID))
	w.WriteS(cfg.Server.Name)
	sess.Send(w.Bytes())
	sess.SetState(packet.StateReady)

	refs, mark := factory.GetObjectTypesMarked[entity.Reference](deps.Registry, tag.AllReferences)
	defer factory.ReleaseAll(refs)
	deps.replayMarks[sess.ID] = mark
	replayed := 0
	for _, h := range refs {
		if !h.Get().Changed() {
			continue
		}
		sess.Send(newPacket(deps, entity.Summarize(h.Instance()), true))
		replayed++
	}

	deps.Log.Info("peer ready",
		zap.Uint64("session", sess.ID),
		zap.String("peer", sess.PeerName),
		zap.Int("replayed", replayed),
	)
}
