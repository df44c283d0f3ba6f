// Package plugin loads and executes the compiled units bundled into plugin
// archives. Unit formats are supported through a registry of loaders keyed by
// the unit's file extension.
package plugin

import (
	"context"
	"encoding/json"
)

// Plugin defines the interface that all plugins must implement.
//
// Each plugin provides metadata (name, description, argument schema) and an
// execution function.
type Plugin interface {
	// Name returns the name of the plugin.
	Name() string

	// Description returns a description of what the plugin does.
	Description() string

	// JSONSchema returns the JSON schema for the plugin's arguments.
	JSONSchema() json.RawMessage

	// Execute runs the plugin with the given context and JSON arguments.
	// The result is typically a JSON-serializable value.
	Execute(ctx context.Context, args json.RawMessage) (interface{}, error)
}

// Loader loads plugins of one unit type.
type Loader interface {
	Load(data []byte, name string) (Plugin, error)
}
