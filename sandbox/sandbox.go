// Package sandbox creates and destroys scratch directories for tests.
//
// Directory creation cannot be made atomic with the primitives we rely on, so
// Create reserves a unique name by creating an empty file, deletes it and
// creates a directory in its place. If another process grabs the name in
// between, the whole sequence is retried with a fresh name.
//
// Sandboxes are owned by the caller: nothing here deletes them implicitly.
// Package sandboxtest ties sandboxes to the lifetime of a test.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/joncooperworks/harnesstest/caller"
	"github.com/joncooperworks/harnesstest/config"
	"github.com/joncooperworks/harnesstest/logging"
)

// MaxAttempts is the number of create/delete/mkdir rounds before Create gives up.
const MaxAttempts = 10

// ErrTooManyRaces is returned when every attempt lost the name to someone else.
var ErrTooManyRaces = errors.New("could not create temporary directory (too many race conditions?)")

type marker struct{}

var ownPackage = reflect.TypeOf(marker{}).PkgPath()

// Provisioner allocates and releases sandbox directories.
type Provisioner struct {
	fs                afero.Fs
	logger            *zap.Logger
	tempDir           string
	buildOutputSuffix string
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithFs sets the filesystem sandboxes are created on.
func WithFs(fs afero.Fs) Option {
	return func(p *Provisioner) { p.fs = fs }
}

// WithLogger sets the logger used to report retries and fallbacks. Without
// one, the process logger current at the time of each call is used.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provisioner) { p.logger = logger }
}

// WithTempDir sets the parent used when Create is called without one.
func WithTempDir(dir string) Option {
	return func(p *Provisioner) { p.tempDir = dir }
}

// WithBuildOutputSuffix sets the caller location suffix that identifies a
// project-local test build tree.
func WithBuildOutputSuffix(suffix string) Option {
	return func(p *Provisioner) { p.buildOutputSuffix = suffix }
}

// WithConfig applies the temp dir and build output suffix from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(p *Provisioner) {
		p.tempDir = cfg.TempDir
		p.buildOutputSuffix = cfg.BuildOutputSuffix
	}
}

// New returns a Provisioner working on the OS filesystem unless overridden.
func New(opts ...Option) *Provisioner {
	p := &Provisioner{
		fs:                afero.NewOsFs(),
		buildOutputSuffix: config.DefaultBuildOutputSuffix,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provisioner) log() *zap.Logger {
	return logging.OrDefault(p.logger)
}

// Create makes a new, empty, uniquely named directory inside parent. The
// directory name starts with prefix and ends with suffix. An empty parent means
// the configured temp dir.
func (p *Provisioner) Create(prefix, suffix, parent string) (string, error) {
	if parent == "" {
		parent = p.defaultParent()
	}

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		name, err := p.reserveName(parent, prefix, suffix)
		if err != nil {
			return "", err
		}

		if err := p.fs.Remove(name); err != nil {
			return "", fmt.Errorf("could not delete file %s: %w", name, err)
		}

		// someone else may have claimed the name; try again with a new one
		if err := p.fs.Mkdir(name, 0o700); err != nil {
			p.log().Debug("lost race for sandbox name",
				zap.String("path", name),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		return name, nil
	}

	return "", ErrTooManyRaces
}

// CreateFor makes a sandbox for code located by frame. When the frame lives
// in a test build output directory, the sandbox is created next to that
// directory so artifacts stay inside the project's build tree. Otherwise, or
// when that attempt fails after the name was reserved, it falls back to
// Create(prefix, "", "").
func (p *Provisioner) CreateFor(prefix string, frame *caller.Frame) (string, error) {
	if base, ok := p.buildOutputBase(frame); ok {
		name, err := p.reserveName(base, prefix, "")
		if err != nil {
			return "", err
		}
		if p.fs.Remove(name) == nil && p.fs.Mkdir(name, 0o700) == nil {
			return name, nil
		}
		p.log().Debug("falling back to default temp dir",
			zap.String("build_output", base),
			zap.String("path", name))
	}
	return p.Create(prefix, "", "")
}

// CreateTemporaryDirectory makes a sandbox for the code calling it.
func (p *Provisioner) CreateTemporaryDirectory(prefix string) (string, error) {
	frame, err := caller.Resolve(ownPackage)
	if err != nil {
		return "", err
	}
	return p.CreateFor(prefix, frame)
}

func (p *Provisioner) reserveName(dir, prefix, suffix string) (string, error) {
	file, err := afero.TempFile(p.fs, dir, prefix+"*"+suffix)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	name := file.Name()
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close temporary file %s: %w", name, err)
	}
	return name, nil
}

func (p *Provisioner) defaultParent() string {
	if p.tempDir != "" {
		return p.tempDir
	}
	return os.TempDir()
}

// buildOutputBase returns the directory containing the test build output the
// frame's source lives in.
func (p *Provisioner) buildOutputBase(frame *caller.Frame) (string, bool) {
	if frame == nil || p.buildOutputSuffix == "" {
		return "", false
	}
	location := frame.Location()
	if location == "" || !strings.HasSuffix(location, p.buildOutputSuffix) {
		return "", false
	}
	// keep the leading part of the suffix, e.g. "/build/" of "/build/test/"
	trimmed := strings.TrimSuffix(p.buildOutputSuffix, "/")
	cut := strings.LastIndexByte(trimmed, '/')
	base := location[:len(location)-len(p.buildOutputSuffix)+cut+1]
	return filepath.FromSlash(base), true
}

// Default returns a provisioner configured from the current HARNESSTEST_*
// environment and logging through the process logger.
func Default() *Provisioner {
	return New(WithConfig(config.LoadOrDefault()))
}

// Create makes a sandbox with the default provisioner.
func Create(prefix, suffix, parent string) (string, error) {
	return Default().Create(prefix, suffix, parent)
}

// CreateTemporaryDirectory makes a sandbox for the calling code with the
// default provisioner.
func CreateTemporaryDirectory(prefix string) (string, error) {
	frame, err := caller.Resolve(ownPackage)
	if err != nil {
		return "", err
	}
	return Default().CreateFor(prefix, frame)
}

// Release deletes a sandbox with the default provisioner.
func Release(dir string) bool {
	return Default().Release(dir)
}
