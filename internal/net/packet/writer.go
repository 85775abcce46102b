package packet

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding"
)

// Writer builds a mirror packet. All multi-byte writes are little-endian.
type Writer struct {
	buf []byte
	enc encoding.Encoding
}

// NewWriter writes strings in enc; nil selects DefaultCharset.
func NewWriter(enc encoding.Encoding) *Writer {
	if enc == nil {
		enc = DefaultCharset
	}
	return &Writer{buf: make([]byte, 0, 64), enc: enc}
}

func NewWriterWithOpcode(opcode byte, enc encoding.Encoding) *Writer {
	w := NewWriter(enc)
	w.WriteC(opcode)
	return w
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteD writes 4 bytes little-endian.
func (w *Writer) WriteD(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteQ writes 8 bytes little-endian.
func (w *Writer) WriteQ(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteF writes a float32 as its IEEE 754 bits.
func (w *Writer) WriteF(v float32) {
	w.WriteD(math.Float32bits(v))
}

// WriteS writes a null-terminated string in the writer's charset.
func (w *Writer) WriteS(s string) {
	w.buf = append(w.buf, encodeString(w.enc, s)...)
	w.buf = append(w.buf, 0) // null terminator
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the packet content.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length.
func (w *Writer) Len() int {
	return len(w.buf)
}
