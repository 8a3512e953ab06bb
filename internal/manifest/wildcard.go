package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrMalformedWildcard is returned for wildcard expressions that cannot be converted.
	ErrMalformedWildcard = errors.New("malformed wildcard")

	sepClass = `[/\\]`
)

// IsWildcard reports whether an asset expression contains a wildcard marker.
func IsWildcard(expr string) bool {
	return strings.Contains(expr, "*")
}

// WildcardPattern converts a wildcard expression into a case-insensitive
// regular expression over root-relative paths. A single "*" matches any run
// of characters within one path segment, "**" also crosses separators, and
// either slash convention matches both separators.
func WildcardPattern(expr string) (*regexp.Regexp, error) {
	expr = strings.TrimSpace(expr)
	expr = strings.TrimPrefix(strings.TrimPrefix(expr, "./"), `.\`)

	if strings.Contains(expr, "***") {
		return nil, fmt.Errorf("%w: %q has more than two consecutive stars", ErrMalformedWildcard, expr)
	}

	if strings.Trim(expr, `/\`) == "" {
		return nil, fmt.Errorf("%w: %q selects nothing", ErrMalformedWildcard, expr)
	}

	var b strings.Builder

	b.WriteString("(?i)^")
	for i := 0; i < len(expr); i++ {
		switch c := expr[i]; c {
		case '*':
			if i+1 < len(expr) && expr[i+1] == '*' {
				// "**/" also matches zero directories.
				if i+2 < len(expr) && (expr[i+2] == '/' || expr[i+2] == '\\') {
					b.WriteString(`(?:.*` + sepClass + `)?`)
					i += 2
				} else {
					b.WriteString(`.*`)
					i++
				}
			} else {
				b.WriteString(`[^/\\]*`)
			}
		case '/', '\\':
			b.WriteString(sepClass)
		default:
			b.WriteString(regexp.QuoteMeta(expr[i : i+1]))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedWildcard, err)
	}

	return re, nil
}
