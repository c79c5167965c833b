package parser

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Byte-order marks recognized before falling through the encoding chain.
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeResult reports how a raw dump file was turned into text. The
// encoding name is informational only; downstream logic never branches
// on it.
type DecodeResult struct {
	Text     string
	Encoding string
	// Lossy is set when no encoding in the chain decoded cleanly and
	// invalid bytes were replaced with U+FFFD.
	Lossy bool
}

// DecodeBytes decodes vendor dump bytes trying, in order: UTF-8 (with
// optional BOM), UTF-16 with BOM, UTF-16LE, UTF-16BE, CP1252 and strict
// UTF-8. If nothing decodes cleanly it falls back to UTF-8 with
// replacement characters instead of failing.
func DecodeBytes(data []byte) DecodeResult {
	if bytes.HasPrefix(data, bomUTF8) {
		rest := data[len(bomUTF8):]
		if utf8.Valid(rest) {
			return DecodeResult{Text: string(rest), Encoding: "utf-8-sig"}
		}
	} else if utf8.Valid(data) {
		return DecodeResult{Text: string(data), Encoding: "utf-8"}
	}

	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if text, err := decodeWith(data, dec); err == nil {
			return DecodeResult{Text: text, Encoding: "utf-16"}
		}
	}

	if len(data)%2 == 0 {
		if looksUTF16(data, 1) {
			dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
			if text, err := decodeWith(data, dec); err == nil && !strings.ContainsRune(text, utf8.RuneError) {
				return DecodeResult{Text: text, Encoding: "utf-16le"}
			}
		}
		if looksUTF16(data, 0) {
			dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
			if text, err := decodeWith(data, dec); err == nil && !strings.ContainsRune(text, utf8.RuneError) {
				return DecodeResult{Text: text, Encoding: "utf-16be"}
			}
		}
	}

	if text, err := decodeWith(data, charmap.Windows1252.NewDecoder()); err == nil && !strings.ContainsRune(text, utf8.RuneError) {
		return DecodeResult{Text: text, Encoding: "cp1252"}
	}

	return DecodeResult{Text: strings.ToValidUTF8(string(data), string(utf8.RuneError)), Encoding: "utf-8", Lossy: true}
}

func decodeWith(data []byte, dec transform.Transformer) (string, error) {
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// looksUTF16 reports whether at least a third of the bytes at the given
// parity (1 = odd positions, i.e. LE high bytes) are NUL, which is what
// ASCII-heavy dump text looks like in UTF-16.
func looksUTF16(data []byte, parity int) bool {
	if len(data) < 4 {
		return false
	}
	zeros, total := 0, 0
	for i := parity; i < len(data); i += 2 {
		total++
		if data[i] == 0 {
			zeros++
		}
	}
	return total > 0 && zeros*3 >= total
}

// SplitLines breaks decoded text into lines, tolerating CRLF and a
// trailing newline.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
