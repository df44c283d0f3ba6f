package sandbox

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Release deletes dir and everything below it and reports whether that
// succeeded. An empty dir is a no-op success.
//
// The tree is walked depth first with an explicit stack rather than
// recursion. Entries are handled in listing order and a subdirectory is
// emptied and removed before its later siblings are touched. The first failed
// removal stops the walk; whatever was removed before stays removed.
// A directory that does not exist has no entries, but removing it fails, so
// releasing the same sandbox twice reports false the second time.
func (p *Provisioner) Release(dir string) bool {
	if dir == "" {
		return true
	}

	stack := []*level{p.open(dir)}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		if current.next == len(current.entries) {
			if err := p.fs.Remove(current.path); err != nil {
				p.log().Debug("failed to remove directory", zap.String("path", current.path), zap.Error(err))
				return false
			}
			stack = stack[:len(stack)-1]
			continue
		}

		entry := current.entries[current.next]
		current.next++
		path := filepath.Join(current.path, entry.Name())
		if entry.IsDir() {
			stack = append(stack, p.open(path))
			continue
		}
		if err := p.fs.Remove(path); err != nil {
			p.log().Debug("failed to remove file", zap.String("path", path), zap.Error(err))
			return false
		}
	}
	return true
}

// level is a directory being emptied; next indexes the first entry not yet
// removed.
type level struct {
	path    string
	entries []os.FileInfo
	next    int
}

// open lists dir in name order. Unreadable or missing directories list as
// empty.
func (p *Provisioner) open(dir string) *level {
	entries, _ := afero.ReadDir(p.fs, dir)
	return &level{path: dir, entries: entries}
}
