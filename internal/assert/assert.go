// Package assert holds preconditions that indicate programmer error when they fail.
package assert

import (
	"fmt"
	"reflect"
)

// NotNil also catches typed nils (a nil func or pointer stored in an interface).
func NotNil(value any, name string) {
	if value == nil {
		panic(fmt.Sprintf("expected %s to be not nil", name))
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			panic(fmt.Sprintf("expected %s to be not nil", name))
		}
	}
}
