package invoke

import "reflect"

// Matches reports whether actual can be passed to parameters of the declared
// types.
//
// Lengths must agree. A nil value matches any position. Declared int, int64
// and bool parameters only accept values of exactly that type; no numeric
// conversion takes place. Any other declared type accepts values assignable
// to it. Other primitive kinds (sized ints, unsigned ints, floats, complex)
// cannot be checked and yield an *UnsupportedTypeError before any position
// is compared.
func Matches(declared []reflect.Type, actual []any) (bool, error) {
	if len(declared) != len(actual) {
		return false, nil
	}
	for _, typ := range declared {
		if primitive(typ.Kind()) && !supported(typ.Kind()) {
			return false, &UnsupportedTypeError{Type: typ}
		}
	}

	for i, value := range actual {
		if value == nil {
			continue
		}
		valueType := reflect.TypeOf(value)
		if primitive(declared[i].Kind()) {
			if valueType != declared[i] {
				return false, nil
			}
			continue
		}
		if !valueType.AssignableTo(declared[i]) {
			return false, nil
		}
	}
	return true, nil
}

func primitive(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

func supported(kind reflect.Kind) bool {
	return kind == reflect.Int || kind == reflect.Int64 || kind == reflect.Bool
}
