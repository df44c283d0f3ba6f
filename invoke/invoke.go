// Package invoke constructs values and calls functions by name.
//
// Types are looked up through a Loader, so test code can drive an isolated
// runtime without importing it. Overloads are resolved with Matches: the
// first candidate, in declaration order, whose parameters accept every
// argument is invoked. Candidates are not ranked by specificity; callers
// that register several overloads should make sure only one can match.
package invoke

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/joncooperworks/harnesstest/logging"
)

// Construct creates a new instance of typeName using the first constructor
// whose parameters accept args.
func Construct(loader Loader, typeName string, args ...any) (any, error) {
	t, err := loader.LoadType(typeName)
	if err != nil {
		return nil, err
	}
	member, err := resolve(t.constructors, args)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", typeName, ConstructorName, err)
	}
	return call(t, member, args)
}

// InvokeStatic calls the first static function of typeName named funcName
// whose parameters accept args. It returns the function's first non-error
// result, or nil if it has none.
func InvokeStatic(loader Loader, typeName, funcName string, args ...any) (any, error) {
	t, err := loader.LoadType(typeName)
	if err != nil {
		return nil, err
	}
	candidates := make([]Member, 0, len(t.functions))
	for _, fn := range t.functions {
		if fn.Name == funcName {
			candidates = append(candidates, fn)
		}
	}
	member, err := resolve(candidates, args)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", typeName, funcName, err)
	}
	return call(t, member, args)
}

// ConstructAs is Construct with the result asserted to T.
func ConstructAs[T any](loader Loader, typeName string, args ...any) (T, error) {
	var zero T
	result, err := Construct(loader, typeName, args...)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("constructor of %s returned %T, not %s", typeName, result, reflect.TypeOf((*T)(nil)).Elem())
	}
	return typed, nil
}

// InvokeStaticAs is InvokeStatic with the result asserted to T.
func InvokeStaticAs[T any](loader Loader, typeName, funcName string, args ...any) (T, error) {
	var zero T
	result, err := InvokeStatic(loader, typeName, funcName, args...)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%s.%s returned %T, not %s", typeName, funcName, result, reflect.TypeOf((*T)(nil)).Elem())
	}
	return typed, nil
}

func resolve(candidates []Member, args []any) (Member, error) {
	for _, candidate := range candidates {
		ok, err := Matches(candidate.ParamTypes(), args)
		if err != nil {
			return Member{}, err
		}
		if ok {
			return candidate, nil
		}
	}
	return Member{}, ErrNoMatchingMember
}

func call(t *Type, member Member, args []any) (result any, err error) {
	params := member.ParamTypes()
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg != nil {
			in[i] = reflect.ValueOf(arg)
			continue
		}
		if !nillable(params[i].Kind()) {
			return nil, fmt.Errorf("%w: cannot pass nil as %s to %s.%s", ErrIllegalArgument, params[i], t.Name, member.Name)
		}
		in[i] = reflect.Zero(params[i])
	}

	logging.L().Debug("invoking member",
		zap.String("type", t.Name),
		zap.String("member", member.Name),
		zap.Int("args", len(args)))

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &InvocationError{Type: t.Name, Member: member.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	var out []reflect.Value
	if member.Variadic() {
		out = member.fn.CallSlice(in)
	} else {
		out = member.fn.Call(in)
	}

	if returnsError(member.fn.Type()) {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			return nil, &InvocationError{Type: t.Name, Member: member.Name, Err: last.Interface().(error)}
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func nillable(kind reflect.Kind) bool {
	switch kind {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice, reflect.UnsafePointer:
		return true
	}
	return false
}
