package handler

import (
	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/net"
	"github.com/l1jgo/gamefactory/internal/net/packet"
)

// HandleLookupSlot answers which identity holds a slot; 0 when none does.
func HandleLookupSlot(sess *net.Session, r *packet.Reader, deps *Deps) {
	slot := ident.SlotID(r.ReadD())
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_LOOKUP_SLOT, deps.Charset)
	w.WriteD(uint32(slot))
	w.WriteQ(uint64(deps.Registry.LookupNetworkID(slot)))
	sess.Send(w.Bytes())
}

// HandleLookupID answers which slot an identity holds; 0 when not live.
func HandleLookupID(sess *net.Session, r *packet.Reader, deps *Deps) {
	id := ident.Identity(r.ReadQ())
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_LOOKUP_ID, deps.Charset)
	w.WriteQ(uint64(id))
	w.WriteD(uint32(deps.Registry.LookupRefID(id)))
	sess.Send(w.Bytes())
}

func HandleStats(sess *net.Session, _ *packet.Reader, deps *Deps) {
	st := deps.Registry.Stats()
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_STATS, deps.Charset)
	w.WriteD(uint32(st.Live))
	w.WriteD(uint32(st.Retired))
	w.WriteD(uint32(st.PendingReclaim))
	w.WriteD(uint32(st.SlotsHeld))
	w.WriteQ(uint64(st.NextIdentity))
	sess.Send(w.Bytes())
}
