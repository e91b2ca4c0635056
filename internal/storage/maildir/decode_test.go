package maildir

import (
	"testing"
	"unicode/utf8"
)

func TestDecodeHeader(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		// Plain ASCII passes through.
		{"Hello world", "Hello world"},
		// Valid UTF-8 passes through.
		{"héllo", "héllo"},
		// RFC 2047 quoted-printable, Latin-1.
		{"=?ISO-8859-1?Q?Andr=E9?= Pirard", "André Pirard"},
		// RFC 2047 base64, UTF-8.
		{"=?UTF-8?B?Z3LDvG4=?=", "grün"},
		// Raw Latin-1 bytes outside any encoded-word.
		{"caf\xe9", "café"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := decodeHeader(tc.in); got != tc.want {
			t.Errorf("decodeHeader(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDecodeHeaderAlwaysValidUTF8(t *testing.T) {
	inputs := []string{
		"\xff\xfe broken",
		"=?GARBAGE-CHARSET?Q?=E9?=",
		"=?ISO-8859-1?Q?truncated",
	}
	for _, in := range inputs {
		got := decodeHeader(in)
		if !utf8.ValidString(got) {
			t.Errorf("decodeHeader(%q) produced invalid UTF-8: %q", in, got)
		}
	}
}
