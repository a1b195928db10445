package worker

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const (
	ComputeExport   = "compute"
	OutputPtrExport = "output_ptr"

	// RejectedCount is returned by compute for a parameter it does not accept.
	RejectedCount = math.MaxUint32
)

var (
	errMissingExport = errors.New("wasm module does not export function")
	errOutOfRange    = errors.New("wasm output lies outside linear memory")
	errNoMemory      = errors.New("wasm module does not export memory")
	errRejectedParam = errors.New("wasm module rejected the parameter")
)

var _ Computer = (*WasmComputer)(nil)

// WasmComputer runs a compute module exporting compute(param f64) -> i32,
// which returns the number of output values or RejectedCount, and
// output_ptr() -> i32, which locates them as little-endian f64s in linear
// memory. Every call gets a fresh module instance.
type WasmComputer struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

func NewWasmComputer(ctx context.Context, wasm []byte) (*WasmComputer, error) {
	r := wazero.NewRuntime(ctx)

	// Instantiate WASI, which implements host functions needed for TinyGo to
	// implement `panic`.
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Join(errors.New("failed to compile Wasm module"), err, r.Close(ctx))
	}

	for _, name := range []string{ComputeExport, OutputPtrExport} {
		if _, ok := compiled.ExportedFunctions()[name]; !ok {
			return nil, errors.Join(fmt.Errorf("%w %q", errMissingExport, name), r.Close(ctx))
		}
	}

	return &WasmComputer{
		runtime:  r,
		compiled: compiled,
	}, nil
}

func NewWasmComputerFromFile(ctx context.Context, path string) (*WasmComputer, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Wasm file %s: %w", path, err)
	}

	return NewWasmComputer(ctx, wasm)
}

func (c *WasmComputer) Compute(ctx context.Context, param float64) ([]float64, error) {
	module, err := c.runtime.InstantiateModule(ctx, c.compiled, wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize"))
	if err != nil {
		return nil, errors.Join(errors.New("failed to instantiate Wasm module"), err)
	}
	defer module.Close(ctx)

	res, err := module.ExportedFunction(ComputeExport).Call(ctx, api.EncodeF64(param))
	if err != nil {
		return nil, err
	}
	count := api.DecodeU32(res[0])
	if count == RejectedCount {
		return nil, fmt.Errorf("%w: %v", errRejectedParam, param)
	}

	res, err = module.ExportedFunction(OutputPtrExport).Call(ctx)
	if err != nil {
		return nil, err
	}
	ptr := api.DecodeU32(res[0])

	mem := module.Memory()
	if mem == nil {
		return nil, errNoMemory
	}
	if uint64(count)*8 > uint64(mem.Size()) {
		return nil, fmt.Errorf("%w: %d values at %d", errOutOfRange, count, ptr)
	}
	buf, ok := mem.Read(ptr, count*8)
	if !ok {
		return nil, fmt.Errorf("%w: %d values at %d", errOutOfRange, count, ptr)
	}

	values := make([]float64, count)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}

	return values, nil
}

func (c *WasmComputer) Close(ctx context.Context) error {
	return c.runtime.Close(ctx)
}
