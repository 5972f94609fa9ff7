// Package encoding normalises uploaded payloads to UTF-8 before they are
// split into lines.
package encoding

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	xenc "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// detectLen caps the window handed to chardet. The window starts just before
// the first byte that is not valid UTF-8.
const (
	detectLen    = 64 << 10
	detectLeadIn = 1 << 10
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Charset names returned by Detect.
const (
	UTF8        = "UTF-8"
	UTF8BOM     = "UTF-8-BOM"
	UTF16LE     = "UTF-16LE"
	UTF16BE     = "UTF-16BE"
	Windows1252 = "windows-1252"
	ISO8859_9   = "ISO-8859-9"
)

// Detect names the charset of a complete payload. The order is: byte order
// mark, UTF-8 validity of every byte, chardet heuristics, then windows-1252.
func Detect(payload []byte) string {
	switch {
	case bytes.HasPrefix(payload, bomUTF8):
		return UTF8BOM
	case bytes.HasPrefix(payload, bomUTF16LE):
		return UTF16LE
	case bytes.HasPrefix(payload, bomUTF16BE):
		return UTF16BE
	}

	bad := firstInvalid(payload)
	if bad < 0 {
		return UTF8
	}

	res, err := chardet.NewTextDetector().DetectBest(detectWindow(payload, bad))
	if err == nil && res.Charset == "ISO-8859-9" {
		return ISO8859_9
	}
	// A UTF-8 verdict is ignored: the payload already failed validation.
	return Windows1252
}

// ToUTF8 decodes a whole payload to UTF-8. A UTF-8 BOM is dropped.
func ToUTF8(b []byte) ([]byte, error) {
	charset := Detect(b)
	if charset == UTF8BOM {
		return b[len(bomUTF8):], nil
	}
	dec := decoderFor(charset)
	if dec == nil {
		return b, nil
	}
	out, _, err := transform.Bytes(dec.NewDecoder(), b)
	if err != nil {
		return nil, fmt.Errorf("decode %s upload: %w", charset, err)
	}
	return out, nil
}

func decoderFor(charset string) xenc.Encoding {
	switch charset {
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case ISO8859_9:
		return charmap.ISO8859_9
	case Windows1252:
		return charmap.Windows1252
	}
	return nil
}

// firstInvalid returns the offset of the first byte that does not start a
// valid UTF-8 sequence, or -1 when b is valid UTF-8.
func firstInvalid(b []byte) int {
	if utf8.Valid(b) {
		return -1
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}

func detectWindow(b []byte, bad int) []byte {
	start := max(0, bad-detectLeadIn)
	end := min(len(b), start+detectLen)
	return b[start:end]
}
