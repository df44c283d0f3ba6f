package invoke

import (
	"fmt"
	"reflect"
)

// ConstructorName is the member name reported for constructors.
const ConstructorName = "<init>"

// Member is a constructor or static function of a Type.
type Member struct {
	Name string
	fn   reflect.Value
}

// ParamTypes returns the declared parameter types in order. For variadic
// members the last type is the slice type.
func (m Member) ParamTypes() []reflect.Type {
	typ := m.fn.Type()
	params := make([]reflect.Type, typ.NumIn())
	for i := range params {
		params[i] = typ.In(i)
	}
	return params
}

// Variadic reports whether the member's last parameter is variadic.
func (m Member) Variadic() bool {
	return m.fn.Type().IsVariadic()
}

// Type is a named set of constructors and static functions, resolvable at run
// time through a Loader.
type Type struct {
	Name string

	constructors []Member
	functions    []Member
}

// NewType creates an empty type description.
func NewType(name string) *Type {
	return &Type{Name: name}
}

// Constructor adds a constructor. fn must be a function returning the new
// value, optionally followed by an error. It panics otherwise.
func (t *Type) Constructor(fn any) *Type {
	value := mustFunc(t.Name, ConstructorName, fn)
	if produced(value.Type()) == 0 {
		panic(fmt.Sprintf("invoke: constructor of %s must return a value", t.Name))
	}
	t.constructors = append(t.constructors, Member{Name: ConstructorName, fn: value})
	return t
}

// Func adds a static function under name. It panics if fn is not a function.
func (t *Type) Func(name string, fn any) *Type {
	t.functions = append(t.functions, Member{Name: name, fn: mustFunc(t.Name, name, fn)})
	return t
}

// Constructors returns the constructors in declaration order.
func (t *Type) Constructors() []Member {
	return append([]Member(nil), t.constructors...)
}

// Functions returns the static functions in declaration order.
func (t *Type) Functions() []Member {
	return append([]Member(nil), t.functions...)
}

func mustFunc(typeName, member string, fn any) reflect.Value {
	value := reflect.ValueOf(fn)
	if value.Kind() != reflect.Func || value.IsNil() {
		panic(fmt.Sprintf("invoke: %s.%s is %T, not a function", typeName, member, fn))
	}
	return value
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// returnsError reports whether the last result of typ is an error.
func returnsError(typ reflect.Type) bool {
	n := typ.NumOut()
	return n > 0 && typ.Out(n-1) == errorType
}

// produced counts the non-error results of typ.
func produced(typ reflect.Type) int {
	if returnsError(typ) {
		return typ.NumOut() - 1
	}
	return typ.NumOut()
}
