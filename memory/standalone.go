package memory

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// PageSize is the wasm page size in bytes.
const PageSize = 65536

// memoryModule encodes a module that only defines and exports "memory".
func memoryModule(pages uint32) []byte {
	limits := appendULEB(nil, pages)

	mod := []byte{
		0x00, 0x61, 0x73, 0x6d, // magic
		0x01, 0x00, 0x00, 0x00, // version
	}

	// memory section: 1 memory, flags=0 (no max), min=pages
	memSec := append([]byte{0x01, 0x00}, limits...)
	mod = append(mod, 0x05)
	mod = appendULEB(mod, uint32(len(memSec)))
	mod = append(mod, memSec...)

	// export section: "memory" -> memory 0
	exportSec := []byte{
		0x01,                                     // 1 export
		0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, // "memory"
		0x02, 0x00, // kind: memory, index 0
	}
	mod = append(mod, 0x07)
	mod = appendULEB(mod, uint32(len(exportSec)))
	return append(mod, exportSec...)
}

func appendULEB(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			dst = append(dst, b|0x80)
			continue
		}
		return append(dst, b)
	}
}

// Standalone instantiates a module exporting a linear memory of the given
// number of pages. The module is registered under name so host modules can
// resolve it; an empty name instantiates it anonymously.
func Standalone(ctx context.Context, rt wazero.Runtime, name string, pages uint32) (api.Module, error) {
	if pages == 0 {
		pages = 1
	}
	compiled, err := rt.CompileModule(ctx, memoryModule(pages))
	if err != nil {
		return nil, fmt.Errorf("compile memory module: %w", err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, fmt.Errorf("instantiate memory module: %w", err)
	}
	return mod, nil
}
