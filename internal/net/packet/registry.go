package packet

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
)

// SessionState represents the peer session's protocol phase.
type SessionState int

const (
	StateHandshake SessionState = iota // connected, awaiting HELLO
	StateReady                         // peer identified, may announce references
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateReady:
		return "Ready"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// stateSet is a bitmask of session states.
type stateSet uint8

func (s stateSet) has(st SessionState) bool { return s&(1<<st) != 0 }

// HandlerFunc is the callback signature for packet handlers.
// The session is passed opaquely so handlers can live outside this package.
type HandlerFunc func(sess any, r *Reader)

type route struct {
	fn      HandlerFunc
	allowed stateSet
}

// OpcodeStats counts how one opcode fared in Dispatch.
type OpcodeStats struct {
	Handled  uint64
	Rejected uint64 // not allowed in the session's state
	Panicked uint64
}

// Registry maps opcodes to handlers with state-based access control.
// It is used from the tick goroutine only.
type Registry struct {
	routes map[byte]route
	stats  map[byte]*OpcodeStats
	enc    encoding.Encoding
	log    *zap.Logger
}

// NewRegistry builds a registry whose readers decode strings with enc.
func NewRegistry(enc encoding.Encoding, log *zap.Logger) *Registry {
	return &Registry{
		routes: make(map[byte]route),
		stats:  make(map[byte]*OpcodeStats),
		enc:    enc,
		log:    log,
	}
}

// Register maps an opcode to a handler, restricted to the given session
// states. Registering an opcode twice replaces the earlier handler.
func (reg *Registry) Register(opcode byte, states []SessionState, fn HandlerFunc) {
	var allowed stateSet
	for _, s := range states {
		allowed |= 1 << s
	}
	reg.routes[opcode] = route{fn: fn, allowed: allowed}
	if reg.stats[opcode] == nil {
		reg.stats[opcode] = &OpcodeStats{}
	}
}

// Stats returns a copy of the counters for every registered opcode.
func (reg *Registry) Stats() map[byte]OpcodeStats {
	out := make(map[byte]OpcodeStats, len(reg.stats))
	for op, st := range reg.stats {
		out[op] = *st
	}
	return out
}

// Dispatch runs the handler registered for the payload's opcode. Unknown
// opcodes are ignored; opcodes not allowed in state are rejected.
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty packet")
	}
	opcode := data[0]
	rt, ok := reg.routes[opcode]
	if !ok {
		reg.log.Debug("unknown opcode", zap.Uint8("opcode", opcode), zap.Stringer("state", state))
		return nil
	}
	st := reg.stats[opcode]
	if !rt.allowed.has(state) {
		st.Rejected++
		reg.log.Warn("opcode not allowed in state",
			zap.Uint8("opcode", opcode),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("opcode 0x%02x not allowed in state %s", opcode, state)
	}
	if err := reg.call(rt.fn, sess, NewReader(data, reg.enc), opcode); err != nil {
		st.Panicked++
		return err
	}
	st.Handled++
	return nil
}

// call recovers handler panics so one bad packet cannot stop the tick loop.
func (reg *Registry) call(fn HandlerFunc, sess any, r *Reader, opcode byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Uint8("opcode", opcode),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for opcode 0x%02x: %v", opcode, rec)
		}
	}()
	fn(sess, r)
	return nil
}
