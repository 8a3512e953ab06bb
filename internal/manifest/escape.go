package manifest

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/runenames"
)

// reEscape matches the backslash escapes understood in readme text.
var reEscape = regexp.MustCompile(`\\N\{[^{}]+\}|\\U[0-9a-fA-F]{8}|\\u[0-9a-fA-F]{4}|\\x[0-9a-fA-F]{2}|\\[0-7]{1,3}|\\[\\'"abfnrtv]`)

// runesByName is built on first use of a named escape.
var runesByName = sync.OnceValue(func() map[string]rune {
	m := make(map[string]rune, 40_000) //nolint:mnd
	for r := rune(0); r <= unicode.MaxRune; r++ {
		name := runenames.Name(r)
		if name == "" || strings.HasPrefix(name, "<") {
			continue
		}
		if _, ok := m[name]; !ok {
			m[name] = r
		}
	}

	return m
})

// DecodeEscapes replaces backslash escape sequences in s with the characters
// they denote. Sequences that do not decode are left untouched.
func DecodeEscapes(s string) string {
	return reEscape.ReplaceAllStringFunc(s, func(seq string) string {
		switch c := seq[1]; {
		case c == 'N':
			name := strings.ToUpper(strings.TrimSpace(seq[3 : len(seq)-1]))
			if r, ok := runesByName()[name]; ok {
				return string(r)
			}

			return seq
		case c >= '0' && c <= '7':
			// strconv only accepts octal escapes of exactly three digits.
			n, err := strconv.ParseUint(seq[1:], 8, 32)
			if err != nil {
				return seq
			}

			return string(rune(n))
		case c == '\'' || c == '"':
			return string(c)
		}

		r, _, tail, err := strconv.UnquoteChar(seq, 0)
		if err != nil || tail != "" {
			return seq
		}

		return string(r)
	})
}
