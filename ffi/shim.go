package ffi

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ffi/errors"
)

// Shim is a synthesized entry point. Its ABI is the argument words of each
// parameter in order, then one out-pointer per result; it returns a Status.
type Shim struct {
	fn         reflect.Value
	builtin    func(ctx context.Context, env Env, words []uint64) error
	lib        *Library
	Receiver   *Type // first of Params for methods, nil for free functions
	Symbol     string
	Params     []*Type
	Results    []*Type
	names      []string
	inPlace    []bool // per param: owned sequence viewed in linear memory
	hasCtx     bool
	returnsErr bool
}

// ParamWords returns the number of argument words before the out-pointers.
func (s *Shim) ParamWords() int {
	n := 0
	for _, p := range s.Params {
		n += p.Words()
	}
	return n
}

// StackSize returns the number of words the shim reads.
func (s *Shim) StackSize() int {
	return s.ParamWords() + len(s.Results)
}

// CoreParams returns the core types of every ABI parameter, out-pointers
// included.
func (s *Shim) CoreParams() []CoreType {
	out := make([]CoreType, 0, s.StackSize())
	for _, p := range s.Params {
		out = append(out, p.CoreTypes()...)
	}
	for range s.Results {
		out = append(out, CoreI32)
	}
	return out
}

// CoreResults returns the core types the shim returns: the status.
func (s *Shim) CoreResults() []CoreType {
	return []CoreType{CoreI32}
}

// ParamName names parameter i: "self" for a receiver, argN otherwise.
func (s *Shim) ParamName(i int) string {
	if i < len(s.names) {
		return s.names[i]
	}
	if s.Receiver != nil {
		if i == 0 {
			return "self"
		}
		return "arg" + strconv.Itoa(i-1)
	}
	return "arg" + strconv.Itoa(i)
}

// Invoke runs the shim against env. stack holds the argument words followed
// by the out-pointers.
func (s *Shim) Invoke(ctx context.Context, env Env, stack []uint64) Status {
	st, _ := s.invoke(ctx, env, stack)
	return st
}

func (s *Shim) invoke(ctx context.Context, env Env, stack []uint64) (Status, error) {
	err := s.Run(ctx, env, stack)
	st := StatusFor(err)
	if err != nil {
		Logger().Debug("shim failed",
			zap.String("symbol", s.Symbol),
			zap.Stringer("status", st),
			zap.Error(err),
		)
	}
	return st, err
}

// Run is Invoke with the underlying error. Out-pointers are written only
// when it returns nil.
func (s *Shim) Run(ctx context.Context, env Env, stack []uint64) (err error) {
	need := s.StackSize()
	if len(stack) < need {
		return errors.InvalidInput(errors.PhaseCall,
			fmt.Sprintf("%s takes %d words, got %d", s.Symbol, need, len(stack)))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if s.builtin != nil {
		return s.builtin(ctx, env, stack[:need])
	}

	f := &frame{env: env, handles: s.lib.handles, callee: true}
	defer func() { f.finish(err != nil) }()

	pw := s.ParamWords()
	outs := stack[pw:need]
	f.adopt(s.Params, stack[:pw])
	for i, r := range s.Results {
		name := "out" + strconv.Itoa(i)
		if uint32(outs[i]) == 0 {
			return errors.ArgIsNull(errors.PhaseCall, name)
		}
		if _, err := env.span(errors.PhaseCall, []string{name}, uint32(outs[i]), r.Size, r.Align); err != nil {
			return err
		}
	}

	off := 0
	for i, p := range s.Params {
		w := p.Words()
		if isNullArg(p, stack[off:off+w]) {
			return errors.ArgIsNull(errors.PhaseCall, s.ParamName(i))
		}
		off += w
	}

	args := make([]reflect.Value, 0, len(s.Params)+1)
	if s.hasCtx {
		args = append(args, reflect.ValueOf(ctx))
	}
	off = 0
	for i, p := range s.Params {
		w := p.Words()
		v := reflect.New(p.Go)
		if err := f.liftArg(p, stack[off:off+w], v.UnsafePointer(), s.inPlace[i], []string{s.ParamName(i)}); err != nil {
			return err
		}
		args = append(args, v.Elem())
		off += w
	}
	if s.hasCtx && s.Receiver != nil {
		// method expressions take the receiver before the context
		args[0], args[1] = args[1], args[0]
	}

	results, err := s.call(args)
	if err != nil {
		return err
	}

	staged := make([][]byte, len(s.Results))
	for i, r := range s.Results {
		v := reflect.New(r.Go)
		v.Elem().Set(results[i])
		buf := make([]byte, r.Size)
		if err := f.lowerResult(r, v.UnsafePointer(), buf, []string{"out" + strconv.Itoa(i)}); err != nil {
			return err
		}
		staged[i] = buf
	}

	for i, buf := range staged {
		if err := env.Memory.Write(uint32(outs[i]), buf); err != nil {
			return errors.Wrap(errors.PhaseCall, errors.KindOutOfBounds, err, "write result")
		}
	}
	return nil
}

// viewsInPlace decides, per parameter, whether an owned sequence argument
// is viewed in linear memory. That is only worth it when a result can hand
// the buffer back: an owned result with the same element type.
func (s *Shim) viewsInPlace() []bool {
	out := make([]bool, len(s.Params))
	for i, p := range s.Params {
		if p.Shape != ShapeOwnedSlice || !p.Elem.Plain {
			continue
		}
		for _, r := range s.Results {
			if r.Shape == ShapeOwnedSlice && r.Elem.Go == p.Elem.Go {
				out[i] = true
				break
			}
		}
	}
	return out
}

func (s *Shim) call(args []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.ExecutionFailed(s.Symbol, fmt.Errorf("panic: %v", r))
		}
	}()

	out = s.fn.Call(args)
	if s.returnsErr {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			return nil, errors.ExecutionFailed(s.Symbol, last.Interface().(error))
		}
	}
	return out, nil
}
