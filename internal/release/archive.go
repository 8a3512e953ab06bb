package release

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
	"github.com/spf13/afero"
)

const (
	baseFilePerms   = 0o644
	baseFolderPerms = 0o755
)

// ErrUnknownFormat is returned for unsupported archive formats.
var ErrUnknownFormat = errors.New("unknown archive format")

// Format is an archive container format.
type Format string

const (
	// FormatZip stores entries deflated with a CRC32 per entry.
	FormatZip Format = "zip"
	// FormatTarGz stores entries in a gzip-compressed tarball.
	FormatTarGz Format = "tar.gz"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "zip":
		return FormatZip, nil
	case "tar.gz", "tgz":
		return FormatTarGz, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath guesses the format of an archive from its file name.
func FormatFromPath(name string) (Format, error) {
	lower := strings.ToLower(strings.TrimSuffix(name, backupSuffix))

	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Ext returns the file extension including the leading dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Entry describes one archived file.
type Entry struct {
	Name  string
	CRC32 uint32
	Size  int64
}

// Member is one file to be written into an archive. Exactly one of Source
// and Data is used; Data takes precedence when non-nil.
type Member struct {
	Name   string
	Source string
	Data   []byte
}

// GzipConfig is the configuration for concurrent gzip operations.
type GzipConfig struct {
	BlockSize  int // Approximate size of blocks (pgzip operations)
	BlockCount int // Amount of blocks processing in parallel (pgzip operations)
}

// writer abstracts over the supported containers.
type writer interface {
	add(name string, size int64, r io.Reader) error
	Close() error
}

type zipWriter struct {
	zw *zip.Writer
}

func newZipWriter(w io.Writer, level int) (*zipWriter, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("invalid compression level: %d", level)
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	return &zipWriter{zw: zw}, nil
}

func (z *zipWriter) add(name string, _ int64, r io.Reader) error {
	hdr := &zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	}
	hdr.SetMode(baseFilePerms)

	w, err := z.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to write zip header: %w", err)
	}

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to write zip entry: %w", err)
	}

	return nil
}

func (z *zipWriter) Close() error {
	return z.zw.Close() //nolint:wrapcheck
}

type tarGzWriter struct {
	gw *pgzip.Writer
	tw *tar.Writer
}

func newTarGzWriter(w io.Writer, level int, cfg GzipConfig) (*tarGzWriter, error) {
	gw, err := pgzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gzip writer: %w", err)
	}

	if err := gw.SetConcurrency(cfg.BlockSize, cfg.BlockCount); err != nil {
		return nil, fmt.Errorf("failed to set gzip writer settings: %w", err)
	}

	return &tarGzWriter{gw: gw, tw: tar.NewWriter(gw)}, nil
}

func (t *tarGzWriter) add(name string, size int64, r io.Reader) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     baseFilePerms,
		Size:     size,
		Typeflag: tar.TypeReg,
		ModTime:  time.Time{},
	}

	if err := t.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}

	if _, err := io.Copy(t.tw, r); err != nil {
		return fmt.Errorf("failed to write tar entry: %w", err)
	}

	return nil
}

func (t *tarGzWriter) Close() error {
	if err := t.tw.Close(); err != nil {
		_ = t.gw.Close()

		return fmt.Errorf("failed to close tar writer: %w", err)
	}

	return t.gw.Close() //nolint:wrapcheck
}

// WriteArchive writes members to output, sorted by name. The output file is
// removed again if anything fails. It returns the written archive size.
func WriteArchive(fs afero.Fs, output string, format Format, level int, gzCfg GzipConfig, members []Member) (int64, error) {
	var creationDone bool

	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	out, err := fs.Create(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	defer func() {
		if !creationDone {
			_ = fs.Remove(output)
		}
	}()
	defer out.Close()

	var w writer
	switch format {
	case FormatZip:
		w, err = newZipWriter(out, level)
	case FormatTarGz:
		w, err = newTarGzWriter(out, level, gzCfg)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return 0, err
	}

	for _, m := range sorted {
		if err := addMember(fs, w, m); err != nil {
			_ = w.Close()

			return 0, err
		}
	}

	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}

	info, err := out.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat archive: %w", err)
	}

	creationDone = true

	return info.Size(), nil
}

func addMember(fs afero.Fs, w writer, m Member) error {
	name := path.Clean(strings.TrimPrefix(m.Name, "/"))

	if m.Data != nil {
		return w.add(name, int64(len(m.Data)), bytes.NewReader(m.Data))
	}

	f, err := fs.Open(m.Source)
	if err != nil {
		return fmt.Errorf("failed to open asset: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat asset: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("failed to add asset %q: is a directory", m.Source)
	}

	return w.add(name, info.Size(), f)
}

// ReadEntries lists the entries of an archive with a CRC32 of each entry's
// content. Directory entries are skipped.
func ReadEntries(fs afero.Fs, name string) ([]Entry, error) {
	format, err := FormatFromPath(name)
	if err != nil {
		return nil, err
	}

	f, err := fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatZip:
		return readZipEntries(f)
	case FormatTarGz:
		return readTarGzEntries(f)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func readZipEntries(f afero.File) ([]Entry, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat input file: %w", err)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize zip reader: %w", err)
	}

	entries := make([]Entry, 0, len(zr.File))
	for _, zf := range zr.File {
		if strings.HasSuffix(zf.Name, "/") {
			continue
		}
		entries = append(entries, Entry{
			Name:  zf.Name,
			CRC32: zf.CRC32,
			Size:  int64(zf.UncompressedSize64), //nolint:gosec
		})
	}

	return entries, nil
}

func readTarGzEntries(f afero.File) ([]Entry, error) {
	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gzip reader: %w", err)
	}
	defer gz.Close()

	var entries []Entry

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to read tar: %w", err)
			}

			break // EOF
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		h := crc32.NewIEEE()
		n, err := io.Copy(h, tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}

		entries = append(entries, Entry{Name: hdr.Name, CRC32: h.Sum32(), Size: n})
	}

	return entries, nil
}
