package storage

import (
	"regexp"
	"strings"
)

// WildcardRegexp compiles a trivial wildmat ('*' matches any sequence,
// '?' any single character) into an anchored regular expression. All other
// characters match literally.
func WildcardRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// MatchWildcard reports whether the value matches the wildmat pattern.
// A malformed pattern matches nothing.
func MatchWildcard(pattern, value string) bool {
	re, err := WildcardRegexp(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}
