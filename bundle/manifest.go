package bundle

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ManifestName is the archive entry listing the plugins of a bundle.
const ManifestName = "plugins.config"

// PluginsMenu is the menu path of generated manifest entries.
const PluginsMenu = "Plugins"

// ManifestEntry is one line of plugins.config: a unit registered as a plugin
// under a menu path with a display name.
type ManifestEntry struct {
	Menu          string
	DisplayName   string
	QualifiedName string
	// Arg is the optional argument in Class("arg") notation.
	Arg string
}

// String renders the entry as a plugins.config line, without newline.
func (e ManifestEntry) String() string {
	line := e.Menu + ", \"" + e.DisplayName + "\", " + e.QualifiedName
	if e.Arg != "" {
		line += "(\"" + e.Arg + "\")"
	}
	return line
}

// EntryFor derives the manifest entry of a unit. Only units whose simple
// name, the part after the last dot, contains an underscore are plugins;
// underscores become spaces in the display name.
func EntryFor(unitName string) (ManifestEntry, bool) {
	simple := unitName[strings.LastIndexByte(unitName, '.')+1:]
	if !strings.Contains(simple, "_") {
		return ManifestEntry{}, false
	}
	return ManifestEntry{
		Menu:          PluginsMenu,
		DisplayName:   strings.ReplaceAll(simple, "_", " "),
		QualifiedName: unitName,
	}, true
}

// ParseManifest reads plugins.config lines. Blank lines and lines starting
// with '#' are ignored.
func ParseManifest(r io.Reader) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", ManifestName, lineNo, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ManifestName, err)
	}
	return entries, nil
}

func parseLine(line string) (ManifestEntry, error) {
	comma := strings.IndexByte(line, ',')
	if comma < 0 {
		return ManifestEntry{}, fmt.Errorf("missing menu separator in %q", line)
	}
	menu := strings.TrimSpace(line[:comma])
	rest := strings.TrimSpace(line[comma+1:])
	if menu == "" {
		return ManifestEntry{}, fmt.Errorf("empty menu path in %q", line)
	}

	if !strings.HasPrefix(rest, "\"") {
		return ManifestEntry{}, fmt.Errorf("display name must be quoted in %q", line)
	}
	closing := strings.IndexByte(rest[1:], '"')
	if closing < 0 {
		return ManifestEntry{}, fmt.Errorf("unterminated display name in %q", line)
	}
	label := rest[1 : closing+1]
	rest = strings.TrimSpace(rest[closing+2:])

	if !strings.HasPrefix(rest, ",") {
		return ManifestEntry{}, fmt.Errorf("missing class separator in %q", line)
	}
	class := strings.TrimSpace(rest[1:])

	var arg string
	if open := strings.IndexByte(class, '('); open >= 0 {
		if !strings.HasSuffix(class, ")") {
			return ManifestEntry{}, fmt.Errorf("unterminated argument in %q", line)
		}
		arg = strings.Trim(strings.TrimSpace(class[open+1:len(class)-1]), "\"")
		class = strings.TrimSpace(class[:open])
	}
	if class == "" {
		return ManifestEntry{}, fmt.Errorf("missing class name in %q", line)
	}

	return ManifestEntry{Menu: menu, DisplayName: label, QualifiedName: class, Arg: arg}, nil
}

// ReadManifest returns the plugins.config entries of the archive at path. An
// archive without manifest has no entries.
func ReadManifest(path string) ([]ManifestEntry, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer archive.Close()
	return ReadManifestFrom(&archive.Reader)
}

// ReadManifestFrom returns the plugins.config entries of an open archive.
func ReadManifestFrom(archive *zip.Reader) ([]ManifestEntry, error) {
	for _, file := range archive.File {
		if file.Name != ManifestName {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", ManifestName, err)
		}
		defer rc.Close()
		return ParseManifest(rc)
	}
	return nil, nil
}
