package wasmhost

import (
	"github.com/tetratelabs/wazero/api"
)

// dataAt is where forwarder places its static data.
const dataAt = 16

// forwarder encodes a guest module that imports module.symbol with the given
// params and an i32 result, exports its memory, and exports "run" with the
// same signature forwarding every param to the import. Non-empty data
// becomes an active data segment at dataAt.
func forwarder(module, symbol string, params []api.ValueType, data []byte) []byte {
	b := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	typ := []byte{0x01, 0x60}
	typ = uleb(typ, uint32(len(params)))
	typ = append(typ, params...)
	typ = append(typ, 0x01, api.ValueTypeI32)
	b = section(b, 0x01, typ)

	imp := []byte{0x01}
	imp = name(imp, module)
	imp = name(imp, symbol)
	imp = append(imp, 0x00, 0x00) // func, type 0
	b = section(b, 0x02, imp)

	b = section(b, 0x03, []byte{0x01, 0x00})
	b = section(b, 0x05, []byte{0x01, 0x00, 0x01}) // one page

	exp := []byte{0x02}
	exp = name(exp, "memory")
	exp = append(exp, 0x02, 0x00)
	exp = name(exp, "run")
	exp = append(exp, 0x00, 0x01)
	b = section(b, 0x07, exp)

	body := []byte{0x00} // no locals
	for i := range params {
		body = append(body, 0x20) // local.get
		body = uleb(body, uint32(i))
	}
	body = append(body, 0x10, 0x00, 0x0b) // call 0, end
	code := []byte{0x01}
	code = uleb(code, uint32(len(body)))
	code = append(code, body...)
	b = section(b, 0x0a, code)

	if len(data) == 0 {
		return b
	}
	seg := []byte{0x01, 0x00, 0x41} // one active segment, i32.const
	seg = uleb(seg, dataAt)         // offset < 64 so the signed LEB matches
	seg = append(seg, 0x0b)
	seg = uleb(seg, uint32(len(data)))
	seg = append(seg, data...)
	return section(b, 0x0b, seg)
}

func section(b []byte, id byte, payload []byte) []byte {
	b = append(b, id)
	b = uleb(b, uint32(len(payload)))
	return append(b, payload...)
}

func name(b []byte, s string) []byte {
	b = uleb(b, uint32(len(s)))
	return append(b, s...)
}

func uleb(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}
