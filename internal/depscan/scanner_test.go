package depscan

import (
	"errors"
	"path"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const sampleScript = `
require "util.core"
require("util/debug.lua")
local storage = require('storage')

if IsServerSide() then
    IncludeScript("gameplay.player", thisEntity)
end

function Activate()
    local name = "dynamic"
    require(name)
    DoIncludeScript("extra." .. name, nil)
    for i = 1, 3 do
        DoIncludeScript("loop.item", nil)
    end
    local t = {
        handler = function() require "nested.deep" end,
    }
    obj:require("not.a.dependency")
    print(require "util.core")
end
`

// A helper function for tests to create a filesystem with one script.
func scriptFs(t *testing.T, p, src string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, p, []byte(src), 0o644))

	return fs
}

// Expectation: Literal arguments of allow-listed calls should be resolved in first-seen order.
func Test_Scanner_Scan_Success(t *testing.T) {
	fs := scriptFs(t, "/proj/scripts/vscripts/main.lua", sampleScript)

	s := New(fs, Options{})
	deps, err := s.Scan("/proj/scripts/vscripts/main.lua")
	require.NoError(t, err)

	require.Equal(t, []string{
		"scripts/vscripts/util/core.lua",
		"scripts/vscripts/util/debug.lua",
		"scripts/vscripts/storage.lua",
		"scripts/vscripts/gameplay/player.lua",
		"scripts/vscripts/loop/item.lua",
		"scripts/vscripts/nested/deep.lua",
	}, deps)
}

// Expectation: Calls inside local function bodies should be collected.
func Test_Scanner_Scan_LocalFunction_Success(t *testing.T) {
	fs := scriptFs(t, "/proj/scripts/vscripts/main.lua", `
local function load()
    require "util.x"
end

local helper = function() IncludeScript("util.y") end
`)

	s := New(fs, Options{})
	deps, err := s.Scan("/proj/scripts/vscripts/main.lua")
	require.NoError(t, err)

	require.Equal(t, []string{
		"scripts/vscripts/util/x.lua",
		"scripts/vscripts/util/y.lua",
	}, deps)
}

// Expectation: Scanning the same file twice should parse it only once.
func Test_Scanner_Scan_Memoized_Success(t *testing.T) {
	fs := scriptFs(t, "/proj/a.lua", `require "b"`)

	s := New(fs, Options{})

	first, err := s.Scan("/proj/a.lua")
	require.NoError(t, err)

	second, err := s.Scan("/proj/./a.lua")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, s.Parses())

	first[0] = "mutated"
	third, err := s.Scan("/proj/a.lua")
	require.NoError(t, err)
	require.Equal(t, []string{"scripts/vscripts/b.lua"}, third)
}

// Expectation: A malformed script should produce a parse error.
func Test_Scanner_Scan_Parse_Error(t *testing.T) {
	fs := scriptFs(t, "/proj/broken.lua", "function (\n")

	s := New(fs, Options{})
	_, err := s.Scan("/proj/broken.lua")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrParse)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "/proj/broken.lua", pe.Path)
}

// Expectation: A missing script should produce a read error that is not a parse error.
func Test_Scanner_Scan_Missing_Error(t *testing.T) {
	s := New(afero.NewMemMapFs(), Options{})

	_, err := s.Scan("/proj/none.lua")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrParse)
}

// Expectation: Custom options should change the callees, base directory and separator.
func Test_Scanner_CustomOptions_Success(t *testing.T) {
	fs := scriptFs(t, "/proj/init.nut", `load("a:b") require("c")`)

	s := New(fs, Options{Extension: "nut", BaseDir: "vscripts", Functions: []string{"load"}, Separator: ":"})
	require.True(t, s.Applies("/proj/INIT.NUT"))
	require.False(t, s.Applies("/proj/init.lua"))

	deps, err := s.Scan("/proj/init.nut")
	require.NoError(t, err)
	require.Equal(t, []string{"vscripts/a/b.nut"}, deps)
}

// Expectation: References should map to base-directory paths with one extension.
func Test_Scanner_Resolve_Table(t *testing.T) {
	s := New(afero.NewMemMapFs(), Options{})

	tests := []struct {
		ref      string
		expected string
	}{
		{"util.core", "scripts/vscripts/util/core.lua"},
		{"util.core.lua", "scripts/vscripts/util/core.lua"},
		{"util/core.LUA", "scripts/vscripts/util/core.lua"},
		{`util\core`, "scripts/vscripts/util/core.lua"},
		{"  ", ""},
		{".lua", ""},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, s.Resolve(tt.ref), tt.ref)
	}
}

// Expectation: Transitive scanning should follow existing scripts and stop on cycles.
func Test_Scanner_Transitive_Success(t *testing.T) {
	fs := afero.NewMemMapFs()
	base := "/proj/scripts/vscripts"
	require.NoError(t, afero.WriteFile(fs, base+"/main.lua", []byte(`require "a"`), 0o644))
	require.NoError(t, afero.WriteFile(fs, base+"/a.lua", []byte(`require "b" require "missing"`), 0o644))
	require.NoError(t, afero.WriteFile(fs, base+"/b.lua", []byte(`require "a" require "main"`), 0o644))

	locate := func(rel string) (string, bool) {
		abs := path.Join("/proj", rel)
		if ok, _ := afero.Exists(fs, abs); ok {
			return abs, true
		}

		return "", false
	}

	s := New(fs, Options{})
	deps, err := s.Transitive(base+"/main.lua", locate)
	require.NoError(t, err)

	require.Equal(t, []string{
		"scripts/vscripts/a.lua",
		"scripts/vscripts/b.lua",
		"scripts/vscripts/missing.lua",
		"scripts/vscripts/main.lua",
	}, deps)
	require.Equal(t, 3, s.Parses())
}
