package manifest

import (
	"strings"
)

// Kind identifies the directive of a manifest line.
type Kind int

const (
	// KindNone is an ordinary asset expression.
	KindNone Kind = iota
	// KindCategory declares or switches to a category ("name:").
	KindCategory
	// KindPrefix prepends a path to subsequent asset expressions ("->path").
	KindPrefix
	// KindStopPrefix clears the prefix ("<-").
	KindStopPrefix
	// KindInclude copies another category into the current one ("&name").
	KindInclude
	// KindReroute packs subsequent assets under a path ("@path", "@" resets).
	KindReroute
	// KindInfer adds paths listed in README.md files below a path ("?path").
	KindInfer
	// KindRemove removes the paths of the next asset expression ("~").
	KindRemove
	// KindExclude removes paths from the file index ("[exclude]path").
	KindExclude
	// KindReadme appends text to the category readme ("[readme]text").
	KindReadme
)

// String returns the directive name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "asset"
	case KindCategory:
		return "category"
	case KindPrefix:
		return "prefix"
	case KindStopPrefix:
		return "stop-prefix"
	case KindInclude:
		return "include"
	case KindReroute:
		return "reroute"
	case KindInfer:
		return "infer"
	case KindRemove:
		return "remove"
	case KindExclude:
		return "exclude"
	case KindReadme:
		return "readme"
	default:
		return "unknown"
	}
}

// Command is a classified manifest line.
type Command struct {
	Kind Kind
	Arg  string
}

const (
	excludeTag = "[exclude]"
	readmeTag  = "[readme]"
)

// IsSkippable reports whether a line is blank or a comment and must not be
// handed to [ParseLine].
func IsSkippable(line string) bool {
	trimmed := strings.TrimSpace(line)

	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

// ParseLine classifies one non-comment manifest line. Sigils are matched in a
// fixed priority order; the first match wins.
func ParseLine(line string) Command {
	trimmed := strings.TrimSpace(line)

	switch {
	case strings.HasSuffix(trimmed, ":"):
		return Command{Kind: KindCategory, Arg: argument(strings.TrimSuffix(trimmed, ":"))}
	case strings.HasPrefix(trimmed, "->"):
		return Command{Kind: KindPrefix, Arg: argument(trimmed[2:])}
	case strings.HasPrefix(trimmed, "<-"):
		return Command{Kind: KindStopPrefix}
	case strings.HasPrefix(trimmed, "&"):
		return Command{Kind: KindInclude, Arg: argument(trimmed[1:])}
	case strings.HasPrefix(trimmed, "@"):
		return Command{Kind: KindReroute, Arg: argument(trimmed[1:])}
	case strings.HasPrefix(trimmed, "?"):
		return Command{Kind: KindInfer, Arg: argument(trimmed[1:])}
	case strings.HasPrefix(trimmed, "~"):
		return Command{Kind: KindRemove, Arg: argument(trimmed[1:])}
	case strings.HasPrefix(trimmed, excludeTag):
		return Command{Kind: KindExclude, Arg: argument(trimmed[len(excludeTag):])}
	case hasPrefixFold(trimmed, readmeTag):
		return Command{Kind: KindReadme, Arg: unquote(strings.TrimLeft(trimmed[len(readmeTag):], " \t"))}
	}

	return Command{Kind: KindNone, Arg: unquote(trimmed)}
}

func argument(s string) string {
	return unquote(strings.TrimSpace(s))
}

// unquote strips a single pair of surrounding double quotes.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}

	return s
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
