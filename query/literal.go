package query

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Inline substitutes every supplied parameter into its %(name)s
// placeholder as an escaped SQL literal and returns the fully inlined
// statement. The result is for logging and auditing only: it is never
// sent to the driver and assumes parameter values, not adversarial SQL.
// Placeholders without a matching parameter are left as-is.
func Inline(text string, params Params) string {
	replaced := text
	for name, value := range params {
		token := "%(" + name + ")s"
		if strings.Contains(replaced, token) {
			replaced = strings.ReplaceAll(replaced, token, escapeLiteral(value))
		}
	}
	// Undo the escapes the binding layer understands so the logged text
	// reads like the statement the server saw.
	replaced = strings.ReplaceAll(replaced, "%%", "%")
	replaced = strings.ReplaceAll(replaced, "{{", "{")
	replaced = strings.ReplaceAll(replaced, "}}", "}")
	return replaced
}

func escapeLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case time.Time:
		return "'" + v.Format("2006-01-02 15:04:05.000000") + "'::TIMESTAMP"
	case []byte:
		return "'" + strings.ReplaceAll(string(v), "'", "''") + "'"
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = escapeLiteral(rv.Index(i).Interface())
		}
		return "ARRAY[" + strings.Join(parts, ", ") + "]"
	case reflect.Ptr:
		if rv.IsNil() {
			return "NULL"
		}
		return escapeLiteral(rv.Elem().Interface())
	}
	return fmt.Sprint(value)
}
