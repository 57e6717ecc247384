package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

// WASMLimits bounds a WASMRule's resource use. Individual rule bodies are
// out of scope for this module; WASMRule exists to host externally
// authored ones behind the same Rule contract the engine already
// understands, with no ambient authority leaked to the guest.
type WASMLimits struct {
	MemoryLimitBytes int64
	CPUTimeLimit     time.Duration
}

// WASMRule adapts a compiled WebAssembly module into model.Rule. The module
// receives the AnalysisContext as JSON on stdin and must write a JSON array
// of model.Finding to stdout. No filesystem, network, or environment access
// is wired into the guest — deny-by-default, mirroring the sandbox pattern
// used for untrusted pack execution elsewhere in the corpus.
type WASMRule struct {
	def     model.Definition
	runtime wazero.Runtime
	module  wazero.CompiledModule
	limits  WASMLimits
}

// NewWASMRule compiles wasmBytes once; Evaluate instantiates and runs it
// fresh on every call so one rule invocation's guest state never leaks into
// the next.
func NewWASMRule(ctx context.Context, def model.Definition, wasmBytes []byte, limits WASMLimits) (*WASMRule, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if limits.MemoryLimitBytes > 0 {
		pages := uint32(limits.MemoryLimitBytes / (64 * 1024))
		if pages == 0 {
			pages = 1
		}
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(pages)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("rules: instantiate WASI for %s: %w", def.ID, err)
	}

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("rules: compile wasm module for %s: %w", def.ID, err)
	}

	return &WASMRule{def: def, runtime: runtime, module: compiled, limits: limits}, nil
}

func (r *WASMRule) Definition() model.Definition { return r.def }

func (r *WASMRule) Evaluate(ctx context.Context, analysis model.AnalysisContext) ([]model.Finding, error) {
	input, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("rules: marshal analysis for %s: %w", r.def.ID, err)
	}

	execCtx := ctx
	if r.limits.CPUTimeLimit > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.limits.CPUTimeLimit)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithName(r.def.ID).
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	mod, err := r.runtime.InstantiateModule(execCtx, r.module, modCfg)
	if err != nil {
		if execCtx.Err() != nil {
			return nil, fmt.Errorf("rules: %s exceeded time limit %s", r.def.ID, r.limits.CPUTimeLimit)
		}
		return nil, fmt.Errorf("rules: instantiate %s: %w", r.def.ID, err)
	}
	defer func() { _ = mod.Close(execCtx) }()

	if stderr.Len() > 0 {
		return nil, fmt.Errorf("rules: %s wrote to stderr: %s", r.def.ID, stderr.String())
	}

	if stdout.Len() == 0 {
		return nil, nil
	}
	var findings []model.Finding
	if err := json.Unmarshal(stdout.Bytes(), &findings); err != nil {
		return nil, fmt.Errorf("rules: decode findings from %s: %w", r.def.ID, err)
	}
	return findings, nil
}

// Close releases the guest runtime and its compiled module.
func (r *WASMRule) Close(ctx context.Context) error {
	if err := r.module.Close(ctx); err != nil {
		return err
	}
	return r.runtime.Close(ctx)
}
