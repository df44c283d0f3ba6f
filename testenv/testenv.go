// Package testenv creates isolated plugin host environments for tests.
//
// The host implementation is resolved by name through an invoke.Loader, so
// this package has no compile-time dependency on it. Programs that use the
// default loader must link the host in, usually with a blank import:
//
//	import _ "github.com/joncooperworks/harnesstest/host"
package testenv

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/joncooperworks/harnesstest/bundle"
	"github.com/joncooperworks/harnesstest/invoke"
	"github.com/joncooperworks/harnesstest/keystore"
)

// HostTypeName is the type constructed by New.
const HostTypeName = "host.LegacyEnvironment"

// Environment is the view of a plugin host that tests work with.
type Environment interface {
	AddPluginArchive(archivePath string) error
	Plugins() []bundle.ManifestEntry
	Run(ctx context.Context, name string, args json.RawMessage) (interface{}, error)
	Keystore() (keystore.Keystore, error)
	Isolated() bool
	Close() error
}

// New constructs an isolated environment through loader, or invoke.Default
// when loader is nil. The host is created with its default plugin loaders.
func New(loader invoke.Loader) (Environment, error) {
	if loader == nil {
		loader = invoke.Default
	}
	result, err := invoke.Construct(loader, HostTypeName, nil, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create test environment: %w", err)
	}
	env, ok := result.(Environment)
	if !ok {
		return nil, fmt.Errorf("%s constructed %T, which is not a test environment", HostTypeName, result)
	}
	return env, nil
}

// NewForTest creates an environment with invoke.Default and closes it when
// the test finishes.
func NewForTest(t testing.TB) Environment {
	t.Helper()
	env, err := New(nil)
	if err != nil {
		t.Fatalf("testenv.New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := env.Close(); err != nil {
			t.Logf("warning: failed to close test environment: %v", err)
		}
	})
	return env
}
