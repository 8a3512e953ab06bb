package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Expectation: Every directive should be classified with its argument extracted.
func Test_ParseLine_Table(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected Command
	}{
		{"category", "scripts:", Command{KindCategory, "scripts"}},
		{"category quoted", `  "my cat":  `, Command{KindCategory, "my cat"}},
		{"prefix", "->scripts/vscripts", Command{KindPrefix, "scripts/vscripts"}},
		{"prefix spaced", "  -> \"maps/x y\"", Command{KindPrefix, "maps/x y"}},
		{"stop prefix", "<-", Command{KindStopPrefix, ""}},
		{"stop prefix ignores rest", "<- whatever", Command{KindStopPrefix, ""}},
		{"include", "&main", Command{KindInclude, "main"}},
		{"reroute", `@Half-Life Alyx\game\hlvr`, Command{KindReroute, `Half-Life Alyx\game\hlvr`}},
		{"reroute reset", "@", Command{KindReroute, ""}},
		{"infer", "?maps/prefabs", Command{KindInfer, "maps/prefabs"}},
		{"remove flag", "~", Command{KindRemove, ""}},
		{"remove inline", "~scripts/__test", Command{KindRemove, "scripts/__test"}},
		{"exclude", "[exclude]scripts/**/*.bak", Command{KindExclude, "scripts/**/*.bak"}},
		{"readme", `[readme]"Hello\nWorld"`, Command{KindReadme, `Hello\nWorld`}},
		{"readme case-insensitive", "[ReadMe] -> not a prefix", Command{KindReadme, "-> not a prefix"}},
		{"readme keeps inner quotes", `[readme]say "hi"`, Command{KindReadme, `say "hi"`}},
		{"asset", "  maps/a.vmap  ", Command{KindNone, "maps/a.vmap"}},
		{"asset quoted", `"maps/with space.vmap"`, Command{KindNone, "maps/with space.vmap"}},
		{"asset single quote kept", `"maps/a.vmap`, Command{KindNone, `"maps/a.vmap`}},
		{"category wins over prefix", "->odd:", Command{KindCategory, "->odd"}},
		{"category wins over readme", "[readme]Note:", Command{KindCategory, "[readme]Note"}},
		{"exclude is case-sensitive", "[EXCLUDE]x", Command{KindNone, "[EXCLUDE]x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, ParseLine(tt.line))
		})
	}
}

// Expectation: Blank and comment lines should be skippable, everything else not.
func Test_IsSkippable_Table(t *testing.T) {
	require.True(t, IsSkippable(""))
	require.True(t, IsSkippable(" \t "))
	require.True(t, IsSkippable("# comment"))
	require.True(t, IsSkippable("   # indented comment"))
	require.False(t, IsSkippable("a.txt # not a comment"))
	require.False(t, IsSkippable("main:"))
}

// Expectation: Kinds should have readable names.
func Test_Kind_String_Success(t *testing.T) {
	require.Equal(t, "asset", KindNone.String())
	require.Equal(t, "exclude", KindExclude.String())
	require.Equal(t, "unknown", Kind(99).String())
}

// Expectation: Escape sequences should decode while unknown sequences stay literal.
func Test_DecodeEscapes_Table(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{`plain`, "plain"},
		{`a\nb`, "a\nb"},
		{`tab\there`, "tab\there"},
		{`back\\slash`, `back\slash`},
		{`\"quoted\" \'single\'`, `"quoted" 'single'`},
		{`\x41é\U0001F600`, "Aé😀"},
		{`\101\7`, "A\a"},
		{`unknown \q stays`, `unknown \q stays`},
		{`short \x4`, `short \x4`},
		{`\N{LATIN SMALL LETTER E WITH ACUTE}t\N{em dash}`, "ét\u2014"},
		{`\N{NO SUCH CHARACTER}`, `\N{NO SUCH CHARACTER}`},
		{`\\N{BULLET}`, `\N{BULLET}`},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, DecodeEscapes(tt.in), tt.in)
	}
}

// Expectation: Wildcards should match case-insensitively with either separator.
func Test_WildcardPattern_Table(t *testing.T) {
	tests := []struct {
		expr    string
		path    string
		matches bool
	}{
		{"scripts/*/init.lua", "scripts/a/init.lua", true},
		{"scripts/*/init.lua", "scripts/a/b/init.lua", false},
		{"scripts/*/init.lua", "SCRIPTS/x/INIT.LUA", true},
		{`scripts\*\init.lua`, "scripts/a/init.lua", true},
		{"scripts/**/init.lua", "scripts/init.lua", true},
		{"scripts/**/init.lua", "scripts/a/b/init.lua", true},
		{"maps/*.vmap", "maps/a.vmap", true},
		{"maps/*.vmap", "maps/avmap", false},
		{"maps/**", "maps/a/b/c", true},
		{"./maps/*", "maps/a", true},
		{"models/(x)+*.vmdl", "models/(x)+a.vmdl", true},
	}

	for _, tt := range tests {
		re, err := WildcardPattern(tt.expr)
		require.NoError(t, err, tt.expr)
		require.Equal(t, tt.matches, re.MatchString(tt.path), "%s vs %s", tt.expr, tt.path)
	}
}

// Expectation: Malformed wildcards should be rejected.
func Test_WildcardPattern_Malformed_Error(t *testing.T) {
	for _, expr := range []string{"maps/***", "/", "  "} {
		_, err := WildcardPattern(expr)
		require.ErrorIs(t, err, ErrMalformedWildcard, expr)
	}
}
