package packet

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding"
)

// Reader reads mirror packet fields from a frame payload.
// Byte 0 is always the opcode. Reads past the end return zero values and
// mark the reader short.
type Reader struct {
	data  []byte
	off   int
	enc   encoding.Encoding
	short bool
}

// NewReader reads data with strings in enc; nil selects DefaultCharset.
func NewReader(data []byte, enc encoding.Encoding) *Reader {
	if enc == nil {
		enc = DefaultCharset
	}
	return &Reader{data: data, off: 1, enc: enc} // skip opcode byte
}

func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

func (r *Reader) take(n int) []byte {
	if r.off+n > len(r.data) {
		r.off = len(r.data)
		r.short = true
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

// ReadD reads 4 bytes as little-endian uint32.
func (r *Reader) ReadD() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

// ReadQ reads 8 bytes as little-endian uint64.
func (r *Reader) ReadQ() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// ReadF reads a little-endian IEEE 754 float32.
func (r *Reader) ReadF() float32 {
	return math.Float32frombits(r.ReadD())
}

// ReadS reads a null-terminated string and returns UTF-8. A string running
// to the end of the payload without a terminator marks the reader short.
func (r *Reader) ReadS() string {
	start := r.off
	for r.off < len(r.data) {
		if r.data[r.off] == 0 {
			raw := r.data[start:r.off]
			r.off++ // skip null terminator
			return decodeString(r.enc, raw)
		}
		r.off++
	}
	r.short = true
	return decodeString(r.enc, r.data[start:r.off])
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if r.off+n > len(r.data) {
		remaining := r.data[r.off:]
		r.off = len(r.data)
		r.short = true
		return remaining
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Short reports whether any read ran past the end of the payload.
func (r *Reader) Short() bool {
	return r.short
}
