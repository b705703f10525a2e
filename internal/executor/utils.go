package executor

import (
	"reflect"
	"strings"
)

// fieldByTag pulls the value of the output struct field whose `pgg` tag
// matches name. A nil or missing struct yields nil for every slot.
func fieldByTag(out any, name string) any {
	if out == nil {
		return nil
	}
	v := reflect.ValueOf(out)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if strings.Split(field.Tag.Get("pgg"), ",")[0] == name {
			return v.Field(i).Interface()
		}
	}
	return nil
}
