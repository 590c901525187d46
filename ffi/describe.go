package ffi

import (
	"strconv"
	"strings"
)

// Signature renders the shim in WIT style, e.g.
// "__vec_to_vec: func(arg0: list<u64>) -> list<u64>".
func (s *Shim) Signature() string {
	var b strings.Builder
	b.WriteString(s.Symbol)
	b.WriteString(": func(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s.ParamName(i))
		b.WriteString(": ")
		b.WriteString(p.String())
	}
	b.WriteByte(')')

	switch len(s.Results) {
	case 0:
	case 1:
		b.WriteString(" -> ")
		b.WriteString(s.Results[0].String())
	default:
		b.WriteString(" -> tuple<")
		for i, r := range s.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteByte('>')
	}
	return b.String()
}

// Prototype renders the C declaration of the entry point, e.g.
// "int32_t __self_to_self(uint64_t arg0, uint64_t *out0);".
func (s *Shim) Prototype() string {
	var params []string
	for i, p := range s.Params {
		name := s.ParamName(i)
		switch p.Shape {
		case ShapeOwnedSlice:
			elem := cType(p.Elem)
			params = append(params,
				elem+" *"+name+"_data",
				"uint32_t "+name+"_len",
				"uint32_t "+name+"_cap")
		case ShapeView:
			params = append(params,
				"const "+cType(p.Elem)+" *"+name+"_data",
				"uint32_t "+name+"_len")
		case ShapeExclusive:
			params = append(params, cType(p.Elem)+" *"+name)
		case ShapeShared:
			params = append(params, "const "+cType(p.Elem)+" *"+name)
		default:
			if p.Indirect() {
				params = append(params, "const "+cType(p)+" *"+name)
			} else {
				params = append(params, cType(p)+" "+name)
			}
		}
	}
	for i, r := range s.Results {
		out := outType(r)
		if !strings.HasSuffix(out, "*") {
			out += " "
		}
		params = append(params, out+"*out"+strconv.Itoa(i))
	}
	if len(params) == 0 {
		params = []string{"void"}
	}
	return "int32_t " + s.Symbol + "(" + strings.Join(params, ", ") + ");"
}

func outType(t *Type) string {
	switch t.Shape {
	case ShapeOwnedSlice:
		return "OutBoxedSlice"
	case ShapeView:
		return "SliceRef"
	case ShapeExclusive:
		return cType(t.Elem) + " *"
	case ShapeShared:
		return "const " + cType(t.Elem) + " *"
	default:
		return cType(t)
	}
}

func cType(t *Type) string {
	switch t.Kind {
	case KindU8, KindBool:
		return "uint8_t"
	case KindS8:
		return "int8_t"
	case KindU16:
		return "uint16_t"
	case KindS16:
		return "int16_t"
	case KindU32, KindHandle:
		return "uint32_t"
	case KindS32:
		return "int32_t"
	case KindU64:
		return "uint64_t"
	case KindS64:
		return "int64_t"
	case KindF32:
		return "float"
	case KindF64:
		return "double"
	case KindRecord:
		return "struct " + t.Name
	default:
		return "void"
	}
}
