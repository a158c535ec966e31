package cache

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var (
	timeType      = reflect.TypeOf(time.Time{})
	regexpType    = reflect.TypeOf(regexp.Regexp{})
	contextType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// CheckSerializable walks value and reports the first part of it that has no
// plain JSON representation: funcs, channels, unsafe pointers, complex
// numbers, times, compiled patterns and contexts.
func CheckSerializable(value any) error {
	return checkValue(reflect.ValueOf(value), "value", make(map[uintptr]bool))
}

func checkValue(v reflect.Value, path string, seen map[uintptr]bool) error {
	if !v.IsValid() {
		return nil
	}

	t := v.Type()
	switch {
	case t == timeType:
		return fmt.Errorf("%s: time.Time is not serializable", path)
	case t == regexpType:
		return fmt.Errorf("%s: regexp is not serializable", path)
	case t.Kind() != reflect.Interface && t.Implements(contextType):
		return fmt.Errorf("%s: context is not serializable", path)
	}

	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Errorf("%s: %s is not serializable", path, v.Kind())
	case reflect.Complex64, reflect.Complex128:
		return fmt.Errorf("%s: complex number is not serializable", path)
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkValue(v.Elem(), path, seen)
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		if seen[v.Pointer()] {
			return fmt.Errorf("%s: cyclic reference is not serializable", path)
		}
		seen[v.Pointer()] = true
		defer delete(seen, v.Pointer())
		return checkValue(v.Elem(), path, seen)
	}

	if t.Implements(marshalerType) {
		return nil
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkValue(v.Index(i), fmt.Sprintf("%s[%d]", path, i), seen); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := checkValue(iter.Value(), fmt.Sprintf("%s[%v]", path, iter.Key()), seen); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = field.Name
			}
			if err := checkValue(v.Field(i), path+"."+name, seen); err != nil {
				return err
			}
		}
	}
	return nil
}
