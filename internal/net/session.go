package net

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/l1jgo/gamefactory/internal/net/packet"
	"go.uber.org/zap"
)

// Session is one mirror peer connection. Network I/O runs in dedicated
// goroutines; registry work for the peer happens on the tick loop.
type Session struct {
	ID   uint64
	conn net.Conn

	state atomic.Int32 // packet.SessionState stored as int32

	InQueue  chan []byte // tick loop reads packets from here
	OutQueue chan []byte // writer goroutine reads from here

	IP       string
	PeerName string // set by HELLO

	outBuf [][]byte // buffered packets, flushed by OutputSystem (tick loop only)

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	readTimeout  time.Duration
	writeTimeout time.Duration

	// Per-second packet rate limiter (readLoop goroutine only)
	pktPerSec  int
	pktCount   int
	pktResetAt int64

	log *zap.Logger
}

// SessionOptions sizes a session's queues and sets its I/O limits.
type SessionOptions struct {
	InQueueSize   int
	OutQueueSize  int
	ReadTimeout   time.Duration // 0 = no deadline
	WriteTimeout  time.Duration // 0 = no deadline
	PacketsPerSec int           // 0 = unlimited
}

func NewSession(conn net.Conn, id uint64, opts SessionOptions, log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		conn:         conn,
		InQueue:      make(chan []byte, opts.InQueueSize),
		OutQueue:     make(chan []byte, opts.OutQueueSize),
		IP:           conn.RemoteAddr().String(),
		closeCh:      make(chan struct{}),
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		pktPerSec:    opts.PacketsPerSec,
		log:          log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(packet.StateHandshake))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// Start launches the reader and writer goroutines. The peer speaks first
// with HELLO.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a packet. Nothing reaches the socket until FlushOutput.
// Called only from the tick loop goroutine.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, data)
}

// FlushOutput drains the output buffer to OutQueue for the writeLoop goroutine.
// A full OutQueue disconnects the peer.
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow peer")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Close shuts the session down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.closeCh
}

func (s *Session) readLoop() {
	defer s.Close()

	for {
		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		payload, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read failed", zap.Error(err))
			}
			return
		}

		if s.pktPerSec > 0 {
			now := time.Now().Unix()
			if now != s.pktResetAt {
				s.pktCount = 0
				s.pktResetAt = now
			}
			s.pktCount++
			if s.pktCount > s.pktPerSec {
				s.log.Warn("packet rate exceeded, disconnecting", zap.Int("pps", s.pktCount))
				return
			}
		}

		// Block rather than drop: announcements must arrive in order.
		select {
		case s.InQueue <- payload:
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeOnePacket(data) {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeOnePacket(data []byte) bool {
	if len(data) > 0 {
		s.log.Debug("TX", zap.Uint8("opcode", data[0]), zap.Int("len", len(data)))
	}
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := WriteFrame(s.conn, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write failed", zap.Error(err))
		}
		return false
	}
	return true
}
