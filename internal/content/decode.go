package content

import (
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// decodeCharset decodes raw bytes per the fetcher's declared charset. An
// empty or unrecognized charset defaults to UTF-8. A UTF-16LE charset (and
// a bare UTF-8 BOM) are unwrapped before the BOM is stripped.
func decodeCharset(raw []byte, charset string) string {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return decodeBytesUTF8(raw)
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return decodeBytesUTF8(raw)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return decodeBytesUTF8(raw)
	}
	return decodeBytesUTF8(decoded)
}
