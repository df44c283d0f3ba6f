package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	extism "github.com/extism/go-sdk"
	"go.uber.org/zap"

	"github.com/joncooperworks/harnesstest/logging"
)

// GuestWorkDir is where LoadOptions.WorkDir appears inside a WASM plugin.
const GuestWorkDir = "/work"

func init() {
	RegisterLoader("wasm", func(opts LoadOptions) (Loader, error) {
		return NewWASMLoader(opts)
	})
}

// WASMLoader loads WASM plugins using Extism SDK.
//
// Plugins run with WASI enabled but without network access: no hosts are
// allowed and the only host function is harness_log.
type WASMLoader struct {
	workDir string
	logger  *zap.Logger
}

// NewWASMLoader creates a new WASM loader.
func NewWASMLoader(opts LoadOptions) (*WASMLoader, error) {
	return &WASMLoader{
		workDir: opts.WorkDir,
		logger:  logging.OrDefault(opts.Logger),
	}, nil
}

// Load compiles and instantiates a WASM plugin from raw bytes.
func (wl *WASMLoader) Load(data []byte, name string) (Plugin, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("failed to create Extism plugin %s: empty module", name)
	}

	manifest := extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmData{Data: data, Name: name},
		},
		AllowedHosts: []string{},
	}
	if wl.workDir != "" {
		manifest.AllowedPaths = map[string]string{wl.workDir: GuestWorkDir}
	}

	ctx := context.Background()
	config := extism.PluginConfig{
		EnableWasi: true,
	}

	logger := wl.logger.With(zap.String("plugin", name))
	hostFunctions := []extism.HostFunction{
		newLogFunction(logger),
	}

	plugin, err := extism.NewPlugin(ctx, manifest, config, hostFunctions)
	if err != nil {
		return nil, fmt.Errorf("failed to create Extism plugin: %w", err)
	}
	plugin.SetLogger(func(level extism.LogLevel, message string) {
		logAt(logger, level, message)
	})

	return &WASMPlugin{
		name:   name,
		plugin: plugin,
		ctx:    ctx,
	}, nil
}

// WASMPlugin implements the Plugin interface for WASM modules.
type WASMPlugin struct {
	name   string
	plugin *extism.Plugin
	ctx    context.Context
}

// Close shuts down the plugin instance and releases resources.
func (wp *WASMPlugin) Close() error {
	if wp.plugin != nil {
		return wp.plugin.Close(wp.ctx)
	}
	return nil
}

// Name returns the plugin name, preferring the WASM exported name().
func (wp *WASMPlugin) Name() string {
	result, err := wp.callStringFunction("name")
	if err == nil && result != "" {
		return result
	}
	return wp.name
}

// Description returns the plugin description by calling description().
func (wp *WASMPlugin) Description() string {
	result, err := wp.callStringFunction("description")
	if err != nil {
		return "WASM plugin"
	}
	return result
}

// JSONSchema fetches the plugin schema via json_schema().
func (wp *WASMPlugin) JSONSchema() json.RawMessage {
	result, err := wp.callStringFunction("json_schema")
	if err != nil || result == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(result)
}

// Execute calls the exported execute() function. JSON args are passed as
// input and the JSON result is read from the plugin output.
func (wp *WASMPlugin) Execute(ctx context.Context, args json.RawMessage) (interface{}, error) {
	exitCode, resultBytes, err := wp.plugin.CallWithContext(ctx, "execute", args)
	if err != nil {
		return nil, fmt.Errorf("failed to execute WASM function: %w", err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("execute function returned non-zero exit code: %d", exitCode)
	}
	if len(resultBytes) == 0 {
		return nil, fmt.Errorf("execute function returned empty result")
	}

	var result interface{}
	if err := json.Unmarshal(resultBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON result: %w", err)
	}
	return result, nil
}

// callStringFunction calls an export that takes no input and sets its output.
func (wp *WASMPlugin) callStringFunction(functionName string) (string, error) {
	if !wp.plugin.FunctionExists(functionName) {
		return "", fmt.Errorf("function %s not exported", functionName)
	}
	exitCode, resultBytes, err := wp.plugin.Call(functionName, nil)
	if err != nil {
		return "", fmt.Errorf("failed to call function %s: %w", functionName, err)
	}
	if exitCode != 0 {
		return "", fmt.Errorf("function %s returned non-zero exit code: %d", functionName, exitCode)
	}
	return string(resultBytes), nil
}

// newLogFunction creates the harness_log host function.
// WASM signature: (param i64) -> void - takes the message offset
func newLogFunction(logger *zap.Logger) extism.HostFunction {
	fn := extism.NewHostFunctionWithStack(
		"harness_log",
		func(ctx context.Context, p *extism.CurrentPlugin, stack []uint64) {
			message, err := p.ReadString(stack[0])
			if err != nil {
				logger.Warn("harness_log: failed to read message", zap.Error(err))
				return
			}
			logger.Info(message)
		},
		[]extism.ValueType{extism.ValueTypeI64}, // message_offset: i64
		[]extism.ValueType{},                    // void
	)
	fn.SetNamespace("env")
	return fn
}

func logAt(logger *zap.Logger, level extism.LogLevel, message string) {
	switch level {
	case extism.LogLevelError:
		logger.Error(message)
	case extism.LogLevelWarn:
		logger.Warn(message)
	case extism.LogLevelInfo:
		logger.Info(message)
	default:
		logger.Debug(message)
	}
}
