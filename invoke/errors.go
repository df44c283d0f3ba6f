package invoke

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrTypeNotFound is returned when a loader does not know a type name.
	ErrTypeNotFound = errors.New("type not found")
	// ErrNoMatchingMember is returned when no constructor or function accepts
	// the given arguments. Callers probing optional API surface should expect it.
	ErrNoMatchingMember = errors.New("no matching member found")
	// ErrUnsupportedType is returned when a candidate declares a primitive
	// parameter kind the matcher cannot check.
	ErrUnsupportedType = errors.New("unsupported primitive type")
	// ErrIllegalArgument is returned when a matched member cannot be called
	// with the given arguments, such as nil for an int parameter.
	ErrIllegalArgument = errors.New("illegal argument")
)

// UnsupportedTypeError reports the offending declared parameter type.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%s %s", ErrUnsupportedType, e.Type)
}

func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}

// InvocationError wraps a failure raised by an invoked member itself, either
// a returned error or a panic.
type InvocationError struct {
	Type   string
	Member string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation of %s.%s failed: %v", e.Type, e.Member, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a resolution miss: an unknown type or no
// matching member.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTypeNotFound) || errors.Is(err, ErrNoMatchingMember)
}
