package release

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FormatChangelog renders one dated changelog block. Failed categories and
// categories without changes get no section.
func FormatChangelog(date string, sections []CategoryReport) string {
	var b strings.Builder

	b.WriteString(date + ":\n\n")

	for _, s := range sections {
		if s.Err != nil || len(s.Changes) == 0 {
			continue
		}

		fmt.Fprintf(&b, "**%s**\n", filepath.Base(s.Archive))
		for _, c := range s.Changes {
			b.WriteString("- " + c.String() + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")

	return b.String()
}

func (p *Packager) appendChangelog(reports []CategoryReport) error {
	block := FormatChangelog(p.opts.Now().Format(p.opts.DateFormat), reports)

	f, err := p.fs.OpenFile(p.ChangelogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, baseFilePerms)
	if err != nil {
		return fmt.Errorf("failed to open changelog: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("failed to write changelog: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close changelog: %w", err)
	}

	return nil
}
