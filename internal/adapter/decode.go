package adapter

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEncoding is returned when input text cannot be decoded.
var ErrEncoding = errors.New("unrecognised text encoding")

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeText converts input to UTF-8. A byte-order mark selects UTF-8 or
// UTF-16; unmarked input must be valid UTF-8 or Windows-1252.
func DecodeText(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, bomUTF8) || bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		if bytes.ContainsRune(out, utf8.RuneError) {
			return nil, fmt.Errorf("%w: invalid byte sequence after byte-order mark", ErrEncoding)
		}
		return out, nil
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: binary content", ErrEncoding)
	}
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if bytes.ContainsFunc(out, undefined1252) {
		return nil, fmt.Errorf("%w: bytes undefined in Windows-1252", ErrEncoding)
	}
	return out, nil
}

// undefined1252 matches the replacement rune and the C1 controls that
// unassigned Windows-1252 bytes decode to.
func undefined1252(r rune) bool {
	return r == utf8.RuneError || (r >= 0x80 && r <= 0x9F)
}
