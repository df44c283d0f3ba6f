package plugin

import (
	"fmt"
	"path"
	"strings"
)

// UnitType returns the type identifier of a unit path: its extension without
// the leading dot.
func UnitType(unitPath string) string {
	return strings.TrimPrefix(path.Ext(unitPath), ".")
}

// LoadUnit loads the unit at unitPath with the loader registered for its
// extension. A nil registry means DefaultRegistry. The plugin's fallback name
// is the unit's base name without extension.
func LoadUnit(reg *Registry, unitPath string, data []byte, opts LoadOptions) (Plugin, error) {
	if reg == nil {
		reg = DefaultRegistry
	}

	typeIdentifier := UnitType(unitPath)
	if typeIdentifier == "" {
		return nil, fmt.Errorf("unit %s has no type extension", unitPath)
	}

	factory, err := reg.LoaderFactory(typeIdentifier)
	if err != nil {
		return nil, err
	}

	loader, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s loader: %w", typeIdentifier, err)
	}

	name := strings.TrimSuffix(path.Base(unitPath), path.Ext(unitPath))
	return loader.Load(data, name)
}
