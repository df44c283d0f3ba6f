// Package bundle packages compiled plugin units into zip archives.
//
// Unit names are dotted, like "org.example.My_Plugin". A unit is read from the
// source filesystem at its dotted name with dots turned into slashes plus the
// unit suffix, and stored in the archive under the same path. Units whose
// simple name contains an underscore are listed in a generated plugins.config
// entry, which is how the plugin host discovers them.
package bundle

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/joncooperworks/harnesstest/logging"
)

// DefaultUnitSuffix is appended to unit paths.
const DefaultUnitSuffix = ".wasm"

// UnitPath maps a dotted unit name to its path inside sources and archives.
func UnitPath(unitName, suffix string) string {
	return strings.ReplaceAll(unitName, ".", "/") + suffix
}

// Bundler writes unit archives.
type Bundler struct {
	source fs.FS
	suffix string
	level  int
	logger *zap.Logger
}

// Option configures a Bundler.
type Option func(*Bundler)

// WithSuffix sets the unit suffix, DefaultUnitSuffix by default.
func WithSuffix(suffix string) Option {
	return func(b *Bundler) { b.suffix = suffix }
}

// WithCompressionLevel sets the deflate level of archive entries.
func WithCompressionLevel(level int) Option {
	return func(b *Bundler) { b.level = level }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bundler) { b.logger = logger }
}

// New returns a Bundler reading unit bytes from source.
func New(source fs.FS, opts ...Option) *Bundler {
	b := &Bundler{
		source: source,
		suffix: DefaultUnitSuffix,
		level:  flate.DefaultCompression,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrDefault(b.logger)
	return b
}

// Bundle writes the named units to a new archive at output. If a unit cannot
// be read the bundle is aborted; whatever was written to output stays there
// but is not a complete archive.
func (b *Bundler) Bundle(output string, unitNames ...string) (err error) {
	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", output, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close archive %s: %w", output, closeErr))
		}
	}()
	return b.Write(file, unitNames...)
}

// Write streams an archive of the named units to w.
func (b *Bundler) Write(w io.Writer, unitNames ...string) error {
	archive := zip.NewWriter(w)
	archive.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, b.level)
	})

	var manifest strings.Builder
	for _, name := range unitNames {
		path := UnitPath(name, b.suffix)
		data, err := fs.ReadFile(b.source, path)
		if err != nil {
			return fmt.Errorf("failed to read unit %s: %w", name, err)
		}
		if err := writeEntry(archive, path, data); err != nil {
			return err
		}
		b.logger.Debug("bundled unit", zap.String("unit", name), zap.String("path", path), zap.Int("bytes", len(data)))

		if entry, ok := EntryFor(name); ok {
			manifest.WriteString(entry.String())
			manifest.WriteByte('\n')
		}
	}

	if manifest.Len() > 0 {
		if err := writeEntry(archive, ManifestName, []byte(manifest.String())); err != nil {
			return err
		}
	}

	if err := archive.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

func writeEntry(archive *zip.Writer, name string, data []byte) error {
	w, err := archive.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
