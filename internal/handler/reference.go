package handler

import (
	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"github.com/l1jgo/gamefactory/internal/factory"
	"github.com/l1jgo/gamefactory/internal/net"
	"github.com/l1jgo/gamefactory/internal/net/packet"
	"go.uber.org/zap"
)

// HandleNew processes C_NEW: a peer announces a reference it owns.
// The reference is created with the peer's identity and slot; the change
// flag carried in the packet decides whether other peers hear about it.
func HandleNew(sess *net.Session, r *packet.Reader, deps *Deps) {
	t := tag.Tag(r.ReadD())
	id := ident.Identity(r.ReadQ())
	slot := ident.SlotID(r.ReadD())
	d := factory.Descriptor{
		ID:     id,
		Slot:   slot,
		BaseID: r.ReadD(),
	}
	changed := r.ReadC() != 0
	d.Fields.Name = r.ReadS()
	if r.Remaining() >= 12 {
		d.Fields.Pos = entity.Vector{X: r.ReadF(), Y: r.ReadF(), Z: r.ReadF()}
		d.Fields.HasPos = true
	}
	if r.Short() {
		sendNewAck(sess, deps, id, slot, packet.StatusMalformed)
		return
	}

	deps.Registry.SetChangeFlag(changed)
	got, err := deps.Registry.CreateKnownInstance(t, d)
	if err != nil {
		deps.Registry.SetChangeFlag(false)
		deps.Log.Debug("peer announcement rejected",
			zap.Uint64("session", sess.ID),
			zap.Uint64("id", uint64(id)),
			zap.Error(err),
		)
		sendNewAck(sess, deps, id, slot, statusOf(err))
		return
	}
	if changed {
		deps.createdBy[got] = sess.ID
	}
	sendNewAck(sess, deps, got, deps.Registry.LookupRefID(got), packet.StatusOK)
}

// HandleDelete processes C_DELETE: a peer retires a reference.
func HandleDelete(sess *net.Session, r *packet.Reader, deps *Deps) {
	id := ident.Identity(r.ReadQ())
	if r.Short() {
		sendDeleteAck(sess, deps, id, packet.StatusMalformed)
		return
	}
	deps.destroyedBy[id] = sess.ID
	err := deps.Registry.DestroyInstance(id)
	if err != nil {
		delete(deps.destroyedBy, id)
	}
	sendDeleteAck(sess, deps, id, statusOf(err))
}

func sendNewAck(sess *net.Session, deps *Deps, id ident.Identity, slot ident.SlotID, status byte) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_NEW_ACK, deps.Charset)
	w.WriteQ(uint64(id))
	w.WriteD(uint32(slot))
	w.WriteC(status)
	sess.Send(w.Bytes())
}

func sendDeleteAck(sess *net.Session, deps *Deps, id ident.Identity, status byte) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_DELETE_ACK, deps.Charset)
	w.WriteQ(uint64(id))
	w.WriteC(status)
	sess.Send(w.Bytes())
}

// newPacket encodes s with the C_NEW layout for forwarding to peers.
func newPacket(deps *Deps, s entity.Summary, changed bool) []byte {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_NEW, deps.Charset)
	w.WriteD(uint32(s.Type))
	w.WriteQ(uint64(s.ID))
	w.WriteD(uint32(s.Slot))
	w.WriteD(s.BaseID)
	if changed {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	w.WriteS(s.Name)
	if s.Type.Matches(tag.AllObjects) {
		w.WriteF(s.Pos.X)
		w.WriteF(s.Pos.Y)
		w.WriteF(s.Pos.Z)
	}
	return w.Bytes()
}

func deletePacket(deps *Deps, id ident.Identity) []byte {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_DELETE, deps.Charset)
	w.WriteQ(uint64(id))
	return w.Bytes()
}
