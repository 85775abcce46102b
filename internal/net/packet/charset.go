package packet

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultCharset is used for wire strings when no charset is configured.
var DefaultCharset encoding.Encoding = charmap.Windows1252

// Charset resolves a charset name such as "windows-1252", "big5" or
// "utf-8". An empty name selects DefaultCharset.
func Charset(name string) (encoding.Encoding, error) {
	if name == "" {
		return DefaultCharset, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	return enc, nil
}

// decodeString converts wire bytes to a UTF-8 string.
// Pure ASCII passes through unchanged.
func decodeString(enc encoding.Encoding, raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if isASCII(raw) {
		return string(raw)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw) // fallback to raw bytes
	}
	return string(decoded)
}

// encodeString converts a UTF-8 string to wire bytes. Runes the charset
// cannot represent are replaced by the charset's substitute byte.
func encodeString(enc encoding.Encoding, s string) []byte {
	if isASCII([]byte(s)) {
		return []byte(s)
	}
	encoded, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return encoded
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
