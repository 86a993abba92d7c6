package multipart

import (
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// decodeCharset transcodes a field value declared in a non-UTF-8 charset to
// UTF-8. Unknown or undecodable charsets leave the raw bytes untouched; a
// field is never rejected for its charset alone.
func decodeCharset(raw []byte, charset string) string {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return string(raw)
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(raw)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
