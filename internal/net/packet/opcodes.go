package packet

// Peer → factory.
const (
	C_OPCODE_HELLO       byte = 0x00 // name S
	C_OPCODE_NEW         byte = 0x01 // tag D, id Q, slot D, base D, changed C, name S, [x F, y F, z F]
	C_OPCODE_DELETE      byte = 0x02 // id Q
	C_OPCODE_LOOKUP_SLOT byte = 0x03 // slot D
	C_OPCODE_LOOKUP_ID   byte = 0x04 // id Q
	C_OPCODE_STATS       byte = 0x05
)

// Factory → peer. NEW and DELETE are also broadcast to peers with the
// C_OPCODE layout when a changed reference is created or destroyed.
const (
	S_OPCODE_HELLO       byte = 0x80 // server id D, name S
	S_OPCODE_NEW_ACK     byte = 0x81 // id Q, slot D, status C
	S_OPCODE_DELETE_ACK  byte = 0x82 // id Q, status C
	S_OPCODE_LOOKUP_SLOT byte = 0x83 // slot D, id Q
	S_OPCODE_LOOKUP_ID   byte = 0x84 // id Q, slot D
	S_OPCODE_STATS       byte = 0x85 // live D, retired D, pending D, slots D, next id Q
)

// Status codes carried by acknowledgements.
const (
	StatusOK           byte = 0
	StatusNotFound     byte = 1
	StatusTypeMismatch byte = 2
	StatusDuplicate    byte = 3
	StatusPrecondition byte = 4
	StatusClosed       byte = 5
	StatusMalformed    byte = 6
	StatusError        byte = 0xFF
)
