package sandboxtest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joncooperworks/harnesstest/sandboxtest"
)

func TestMustCreate_ReleasedAfterTest(t *testing.T) {
	parent := t.TempDir()
	t.Setenv("HARNESSTEST_TEMP_DIR", parent)

	var dir string
	t.Run("owner", func(t *testing.T) {
		dir = sandboxtest.MustCreate(t, "must")
		if err := os.WriteFile(filepath.Join(dir, "artifact"), []byte("data"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	})

	if dir == "" {
		t.Fatal("MustCreate() returned empty path")
	}
	if filepath.Dir(dir) != parent {
		t.Errorf("MustCreate() parent = %q, want %q", filepath.Dir(dir), parent)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("sandbox %s still exists after the owning test finished", dir)
	}
}
