package evaluator

import (
	"fmt"
	"reflect"
	"strconv"
)

// FormatValue renders a value the way Go source would spell simple values:
// strings quoted, structs with field names.
func FormatValue(v any) string {
	if v == nil {
		return "nil"
	}

	switch value := v.(type) {
	case string:
		return strconv.Quote(value)
	case error:
		return fmt.Sprintf("error(%q)", value.Error())
	case fmt.Stringer:
		return value.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Struct:
		return fmt.Sprintf("%+v", v)
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return fmt.Sprintf("&%s", FormatValue(rv.Elem().Interface()))
	case reflect.Func:
		return rv.Type().String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
