package format

import (
	"fmt"
	"strconv"
	"strings"
)

func toFloat(val any) (float64, bool) {
	switch tval := val.(type) {
	case float64:
		return tval, true
	case int:
		return float64(tval), true
	case int64:
		return float64(tval), true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(tval), 64)
		return num, err == nil
	default:
		return 0, false
	}
}

func toString(val any) string {
	switch tval := val.(type) {
	case string:
		return tval
	case nil:
		return "nil"
	case float64:
		return strconv.FormatFloat(tval, 'g', 14, 64)
	case fmt.Stringer:
		return tval.String()
	default:
		return fmt.Sprint(tval)
	}
}

func typeOf(val any) string {
	switch val.(type) {
	case nil:
		return "nil"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		return "value"
	}
}
