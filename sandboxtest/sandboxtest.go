// Package sandboxtest ties sandbox directories to the lifetime of a test.
package sandboxtest

import (
	"reflect"
	"testing"

	"github.com/joncooperworks/harnesstest/caller"
	"github.com/joncooperworks/harnesstest/sandbox"
)

type marker struct{}

var ownPackage = reflect.TypeOf(marker{}).PkgPath()

// MustCreate makes a sandbox for the calling test and releases it when the
// test finishes. The test fails immediately if the sandbox cannot be created.
// A failed release is logged, not reported as a test failure.
func MustCreate(t testing.TB, prefix string) string {
	t.Helper()
	frame, err := caller.Resolve(ownPackage)
	if err != nil {
		t.Fatalf("failed to resolve calling test: %v", err)
	}
	dir, err := sandbox.Default().CreateFor(prefix, frame)
	if err != nil {
		t.Fatalf("failed to create sandbox: %v", err)
	}
	t.Cleanup(func() {
		if !sandbox.Release(dir) {
			t.Logf("warning: failed to release sandbox %s", dir)
		}
	})
	return dir
}
