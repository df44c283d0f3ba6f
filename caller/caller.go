// Package caller identifies the code that invoked a harnesstest utility.
//
// It is mostly used to find out where a test lives on disk, so that scratch
// data can be placed next to a project-local build tree instead of the global
// temp directory.
package caller

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

// ErrNoCaller is returned when every frame on the stack was filtered out.
var ErrNoCaller = errors.New("no calling frame found")

// initialDepth is the size of the first program counter buffer; it doubles
// until the whole stack fits.
const initialDepth = 64

// platformPackages are never reported as callers.
var platformPackages = []string{"runtime", "testing", "reflect", "internal"}

type marker struct{}

var ownPackage = reflect.TypeOf(marker{}).PkgPath()

// Frame describes the resolved calling frame.
type Frame struct {
	// Package is the import path of the package declaring Function.
	Package string
	// Function is the fully qualified function name as reported by the runtime.
	Function string
	File     string
	Line     int
}

// Location returns the slash-separated directory of the frame's source file,
// with a trailing slash.
func (f *Frame) Location() string {
	if f == nil || f.File == "" {
		return ""
	}
	dir := path.Dir(filepath.ToSlash(f.File))
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}

// Resolve returns the innermost frame that belongs neither to this package,
// nor to one of the excluded packages, nor to the Go runtime and test driver.
func Resolve(excluding ...string) (*Frame, error) {
	frames := runtime.CallersFrames(callers())

	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			pkg := PackageOf(frame.Function)
			if !skipped(pkg, excluding) {
				return &Frame{
					Package:  pkg,
					Function: frame.Function,
					File:     frame.File,
					Line:     frame.Line,
				}, nil
			}
		}
		if !more {
			break
		}
	}

	return nil, fmt.Errorf("%w outside %s", ErrNoCaller, ownPackage)
}

// callers returns the program counters of Resolve's caller and everything
// above it.
func callers() []uintptr {
	pcs := make([]uintptr, initialDepth)
	for {
		// skip runtime.Callers, callers and Resolve
		n := runtime.Callers(3, pcs)
		if n < len(pcs) {
			return pcs[:n]
		}
		pcs = make([]uintptr, 2*len(pcs))
	}
}

// PackageOf extracts the import path from a runtime function name such as
// "github.com/x/y/pkg.(*T).Method.func1". The runtime escapes dots in the
// last path element ("gopkg.in/yaml%2ev3.Unmarshal"); the result is
// unescaped so it compares equal to reflect's PkgPath.
func PackageOf(function string) string {
	if i := strings.IndexByte(function, '['); i >= 0 {
		function = function[:i]
	}
	slash := strings.LastIndexByte(function, '/')
	pkg := function
	if dot := strings.IndexByte(function[slash+1:], '.'); dot >= 0 {
		pkg = function[:slash+1+dot]
	}
	return strings.ReplaceAll(pkg, "%2e", ".")
}

func skipped(pkg string, excluding []string) bool {
	if pkg == ownPackage {
		return true
	}
	for _, excluded := range excluding {
		if excluded != "" && pkg == excluded {
			return true
		}
	}
	for _, platform := range platformPackages {
		if pkg == platform || strings.HasPrefix(pkg, platform+"/") {
			return true
		}
	}
	return false
}
