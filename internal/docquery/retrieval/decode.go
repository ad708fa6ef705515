package retrieval

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// TextDecoder turns a stored text artifact into a string.
type TextDecoder interface {
	Decode(raw []byte) (string, error)
}

type TextDecoderFunc func(raw []byte) (string, error)

func (f TextDecoderFunc) Decode(raw []byte) (string, error) { return f(raw) }

// Characters whose presence marks a UTF-16 decode as plausible. ASCII-range
// UTF-8 input never decodes to either of them because it contains no NUL bytes.
var commonChars = []string{" ", "e"}

// DefaultDecoder tries UTF-16LE first and falls back to UTF-8.
var DefaultDecoder TextDecoder = TextDecoderFunc(decodeUTF16OrUTF8)

func decodeUTF16OrUTF8(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	if len(raw) >= 2 {
		if b, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(raw); err == nil {
			if s := string(b); looksLikeText(s) {
				return s, nil
			}
		}
	}
	b, err := unicode.UTF8BOM.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func looksLikeText(s string) bool {
	for _, c := range commonChars {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}
