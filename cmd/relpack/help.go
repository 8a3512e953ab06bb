package main

const (
	rootHelpShort = "relpack compiles a release manifest into archives and a changelog."

	rootHelpLong = `relpack compiles a release manifest into archives and a changelog.

It reads a line-oriented manifest (release_assets.txt by default) that declares release
categories and the project files belonging to each. Asset expressions may name files,
directories or wildcards, and scripts automatically pull in the scripts they include.
Every category becomes one archive; when a previous archive exists, both are compared
entry by entry and the differences are appended to a dated changelog.

Settings are read from <dir>/relpack.yaml, a <dir>/.env file, RELPACK_* environment
variables and the command line flags, each overriding the ones before it.
It supports these commands:

  pack   - resolve the manifest, build all archives and update the changelog
  assets - resolve the manifest and print the categories without packaging
  list   - produce a sorted or unsorted listing of the entries of an archive
  diff   - print the entry differences between two archives

All commands print their primary results (such as asset paths or differences) to standard output
(stdout). Any encountered errors and operational messages are printed to standard error (stderr).

Exit Codes:
  0 - Success
  1 - Differences found (only for 'diff')
  2 - General failure (invalid manifest, I/O errors, etc.)

For detailed help on a specific command, run:
  relpack help <command>`

	packHelpShort = "Build one archive per manifest category and update the changelog"

	packHelpLong = `Build one archive per manifest category and update the changelog.

The manifest is resolved against the project roots first; any syntax error, unknown
category include or unparseable script stops the run before anything is written.
Assets whose files do not exist are dropped with a warning.

For every category with assets, an existing archive is renamed to <name>.old, the new
archive is built and both are compared by entry checksum. The resulting "Created",
"Updated" and "Deleted" messages are appended to the changelog in one dated block,
but only if there was at least one change. Categories are packaged in parallel.

A category that fails to package keeps its .old backup in place and is reported at the
end; other categories are not affected. A summary of every archive is written to
standard output (stdout), progress and warnings to standard error (stderr).`

	packExample = `
# Package the project in the current directory:
relpack pack

# Package another project as tarballs, also keeping an unpacked copy:
relpack pack --dir=/src/mymod --format=tar.gz --unpacked

# Search a second root for assets and follow script includes transitively:
relpack pack --game-root=../game --transitive`

	assetsHelpShort = "Resolve the manifest and print every category's assets"

	assetsHelpLong = `Resolve the manifest and print every category's assets without packaging.

This is a dry run of the manifest: every asset is listed with the path it would be
packaged under, together with any readme text and the assets dropped as missing.
The output is plain text by default or YAML with --output=yaml.`

	assetsExample = `
# Show what would be packaged:
relpack assets

# Export the resolved categories as YAML:
relpack assets -o yaml > assets.yaml`

	diffHelpShort = "Print the entry differences between any two archives"

	diffHelpLong = `Print the entry differences between any two archives.

Entries are compared by path and content checksum: entries in both archives with
different content are "Updated", entries only in the new archive "Created" and entries
only in the old archive "Deleted". Messages are deduplicated and sorted.

The necessary sortings and the comparison itself are done using a streamed approach,
off-loading batches into temporary files where necessary (see --tmpdir).

Any differences will be written to standard output (stdout), while any other operational
output will be written to standard error (stderr). The program will return with an exit code
0 in case no differences were found; with an exit code 1 in case some differences were found.`

	diffExample = `
# Compare a backup with the current release:
relpack diff release/main.zip.old release/main.zip

# Tarballs are supported as well:
relpack diff old/main.tar.gz release/main.tar.gz`

	listHelpShort = "List the entries contained in an archive (sorted by default)"

	listHelpLong = `List all contained entries of an archive, either sorted or in original order.

By default, the entries are sorted alphabetically, which improves readability and makes it
easier to 'diff' or otherwise compare. --sort=false preserves the original archive order,
--long adds the CRC32 checksum and size of every entry.

All listed entries are printed to standard output (stdout), while any operational output and
encountered errors will be written to standard error (stderr) respectively. The command
returns with an exit code 0 upon success; an exit code 2 for any encountered errors.`

	listExample = `
# List as sorted the contents of an archive:
relpack list release/main.zip

# Preserve the original archive order and show checksums:
relpack list release/main.zip --sort=false --long`
)
