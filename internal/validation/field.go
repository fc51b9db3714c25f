package validation

import (
	"reflect"
	"strings"
)

// jsonFieldName reports violations using names clients send fields with
func jsonFieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form", "query"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}
