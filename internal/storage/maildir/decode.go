package maildir

import (
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// wordDecoder handles RFC 2047 encoded-words. The charset hook goes through
// htmlindex, which knows far more legacy charsets than the stdlib decoder.
var wordDecoder = mime.WordDecoder{CharsetReader: charsetReader}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	if enc == nil {
		return input, nil
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// decodeHeader converts a raw header value to clean UTF-8 for overview
// output: encoded-words are decoded, then anything still invalid is
// reinterpreted as Latin-1 before falling back to replacement characters.
func decodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		decoded = value
	}
	if utf8.ValidString(decoded) {
		return decoded
	}
	latin1, _, err := transform.String(charmap.ISO8859_1.NewDecoder(), decoded)
	if err != nil {
		return strings.ToValidUTF8(decoded, "�")
	}
	return latin1
}
