package indexer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const byteOrderMark = "\ufeff"

// Preprocess cleans raw file text before chunking: it drops a leading byte
// order mark, replaces invalid UTF-8 and removes control characters other
// than whitespace.
func Preprocess(text string) string {
	text = strings.TrimPrefix(text, byteOrderMark)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}
