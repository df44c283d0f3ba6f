// Package host provides the plugin host handle used by test environments.
//
// A LegacyEnvironment tracks the plugins declared by plugin archives and runs
// them on demand. Isolated environments ignore the user's plugin directory and
// keep their credentials in a private sandbox, so tests never observe or
// modify state belonging to the user.
//
// The package registers its constructor with invoke.Default under TypeName.
// Test code constructs environments through invoke without importing host.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/joncooperworks/harnesstest/bundle"
	"github.com/joncooperworks/harnesstest/config"
	"github.com/joncooperworks/harnesstest/invoke"
	"github.com/joncooperworks/harnesstest/keystore"
	"github.com/joncooperworks/harnesstest/logging"
	"github.com/joncooperworks/harnesstest/plugin"
	"github.com/joncooperworks/harnesstest/sandbox"
)

// TypeName is the name the environment is registered under in invoke.Default.
const TypeName = "host.LegacyEnvironment"

var (
	// ErrPluginNotFound is returned by Run for unknown plugin names.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrClosed is returned when a closed environment is used.
	ErrClosed = errors.New("environment closed")
)

func init() {
	invoke.Register(invoke.NewType(TypeName).
		Constructor(NewLegacyEnvironment).
		Constructor(NewLegacyEnvironmentWithConfig))
}

type registeredPlugin struct {
	entry   bundle.ManifestEntry
	archive string
}

// LegacyEnvironment is a plugin host handle.
type LegacyEnvironment struct {
	mu          sync.Mutex
	loaders     *plugin.Registry
	isolated    bool
	fs          afero.Fs
	provisioner *sandbox.Provisioner
	logger      *zap.Logger

	plugins []registeredPlugin
	keys    keystore.Keystore
	scratch []string
	workDir string
	closed  bool
}

// NewLegacyEnvironment creates an environment configured from the process
// environment. A nil loaders registry means plugin.DefaultRegistry.
func NewLegacyEnvironment(loaders *plugin.Registry, isolated bool) (*LegacyEnvironment, error) {
	return NewLegacyEnvironmentWithConfig(loaders, isolated, nil)
}

// NewLegacyEnvironmentWithConfig creates an environment using cfg, or the
// process configuration when cfg is nil. Environments that are not isolated
// load every archive found in the user plugin directory.
func NewLegacyEnvironmentWithConfig(loaders *plugin.Registry, isolated bool, cfg *config.Config) (*LegacyEnvironment, error) {
	return newEnvironment(loaders, isolated, cfg, afero.NewOsFs(), nil)
}

func newEnvironment(loaders *plugin.Registry, isolated bool, cfg *config.Config, fs afero.Fs, logger *zap.Logger) (*LegacyEnvironment, error) {
	if loaders == nil {
		loaders = plugin.DefaultRegistry
	}
	if cfg == nil {
		cfg = config.LoadOrDefault()
	}
	logger = logging.OrDefault(logger).With(zap.Bool("isolated", isolated))

	env := &LegacyEnvironment{
		loaders:     loaders,
		isolated:    isolated,
		fs:          fs,
		provisioner: sandbox.New(sandbox.WithFs(fs), sandbox.WithConfig(cfg), sandbox.WithLogger(logger)),
		logger:      logger,
	}

	if !isolated {
		if err := env.loadUserPlugins(cfg.ResolvedUserPluginDir()); err != nil {
			return nil, err
		}
	}
	return env, nil
}

func (e *LegacyEnvironment) loadUserPlugins(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		if exists, _ := afero.DirExists(e.fs, dir); !exists {
			return nil
		}
		return fmt.Errorf("failed to list user plugins in %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isPluginArchive(entry.Name()) {
			continue
		}
		archive := filepath.Join(dir, entry.Name())
		if err := e.AddPluginArchive(archive); err != nil {
			// one broken archive does not disable the others
			e.logger.Warn("skipping plugin archive", zap.String("archive", archive), zap.Error(err))
		}
	}
	return nil
}

func isPluginArchive(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".zip" || ext == ".jar"
}

// Isolated reports whether the environment ignores user state.
func (e *LegacyEnvironment) Isolated() bool {
	return e.isolated
}

// AddPluginArchive registers the plugins listed in the archive's manifest.
func (e *LegacyEnvironment) AddPluginArchive(archivePath string) error {
	var entries []bundle.ManifestEntry
	err := e.withArchive(archivePath, func(archive *zip.Reader) error {
		var err error
		entries, err = bundle.ReadManifestFrom(archive)
		return err
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	for _, entry := range entries {
		e.plugins = append(e.plugins, registeredPlugin{entry: entry, archive: archivePath})
	}
	e.logger.Info("loaded plugin archive", zap.String("archive", archivePath), zap.Int("plugins", len(entries)))
	return nil
}

// Plugins returns the registered manifest entries in registration order.
func (e *LegacyEnvironment) Plugins() []bundle.ManifestEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := make([]bundle.ManifestEntry, len(e.plugins))
	for i, p := range e.plugins {
		entries[i] = p.entry
	}
	return entries
}

// Run loads the plugin registered under name, a display name or a qualified
// unit name, and executes it with args. The plugin is closed afterwards.
func (e *LegacyEnvironment) Run(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	registered, workDir, err := e.prepareRun(name)
	if err != nil {
		return nil, err
	}

	var (
		unitPath string
		data     []byte
	)
	err = e.withArchive(registered.archive, func(archive *zip.Reader) error {
		unitPath, data, err = readUnit(archive, registered.entry.QualifiedName)
		return err
	})
	if err != nil {
		return nil, err
	}

	p, err := plugin.LoadUnit(e.loaders, unitPath, data, plugin.LoadOptions{
		WorkDir: workDir,
		Logger:  e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load plugin %s: %w", name, err)
	}
	if closer, ok := p.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				e.logger.Warn("failed to close plugin", zap.String("plugin", name), zap.Error(err))
			}
		}()
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	e.logger.Debug("running plugin", zap.String("plugin", name), zap.String("unit", unitPath))
	return p.Execute(ctx, args)
}

// prepareRun finds the plugin and makes sure the shared work dir exists.
func (e *LegacyEnvironment) prepareRun(name string) (registeredPlugin, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return registeredPlugin{}, "", ErrClosed
	}

	var (
		found registeredPlugin
		ok    bool
	)
	for _, p := range e.plugins {
		if p.entry.DisplayName == name || p.entry.QualifiedName == name {
			found, ok = p, true
			break
		}
	}
	if !ok {
		return registeredPlugin{}, "", fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}

	if e.workDir == "" {
		dir, err := e.provisioner.Create("harness-work", "", "")
		if err != nil {
			return registeredPlugin{}, "", fmt.Errorf("failed to create plugin work dir: %w", err)
		}
		e.workDir = dir
		e.scratch = append(e.scratch, dir)
	}
	return found, e.workDir, nil
}

// WorkDir returns the scratch directory shared by plugins run in this
// environment, or "" before the first Run.
func (e *LegacyEnvironment) WorkDir() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workDir
}

// Keystore returns the environment's key store. Isolated environments get a
// file keyring in a private sandbox; others use the system keyring.
func (e *LegacyEnvironment) Keystore() (keystore.Keystore, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if e.keys != nil {
		return e.keys, nil
	}

	if !e.isolated {
		keys, err := keystore.OpenSystem()
		if err != nil {
			return nil, err
		}
		e.keys = keys
		return keys, nil
	}

	dir, err := e.provisioner.Create("harness-keys", "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to create keystore dir: %w", err)
	}
	keys, err := keystore.OpenIsolated(dir)
	if err != nil {
		e.provisioner.Release(dir)
		return nil, err
	}
	e.scratch = append(e.scratch, dir)
	e.keys = keys
	return keys, nil
}

// Close releases the environment's scratch directories. It is safe to call
// more than once.
func (e *LegacyEnvironment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	for _, dir := range e.scratch {
		if !e.provisioner.Release(dir) {
			errs = append(errs, fmt.Errorf("failed to release %s", dir))
		}
	}
	e.scratch = nil
	e.workDir = ""
	e.keys = nil
	return errors.Join(errs...)
}

func (e *LegacyEnvironment) withArchive(archivePath string, fn func(*zip.Reader) error) error {
	file, err := e.fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive %s: %w", archivePath, err)
	}
	archive, err := zip.NewReader(file, info.Size())
	if err != nil {
		return fmt.Errorf("failed to read archive %s: %w", archivePath, err)
	}
	return fn(archive)
}

// readUnit finds the entry holding a unit: its dotted name as a path, plus
// any extension.
func readUnit(archive *zip.Reader, qualifiedName string) (string, []byte, error) {
	stem := bundle.UnitPath(qualifiedName, "")
	for _, file := range archive.File {
		if file.FileInfo().IsDir() {
			continue
		}
		ext := path.Ext(file.Name)
		if ext == "" || strings.TrimSuffix(file.Name, ext) != stem {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", nil, fmt.Errorf("failed to open unit %s: %w", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", nil, fmt.Errorf("failed to read unit %s: %w", file.Name, err)
		}
		return file.Name, data, nil
	}
	return "", nil, fmt.Errorf("unit %s not found in archive", qualifiedName)
}
