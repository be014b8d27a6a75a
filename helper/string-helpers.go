package helper

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/logger"
)

// TokensToOrderedMap converts a string of the form 'k1:v1, k2:v2' into an ordered map.
// Spaces around keys and values are trimmed and tokens without a colon are skipped.
func TokensToOrderedMap(s string) *om.OrderedMap {
	o := om.NewOrderedMap()
	for _, token := range strings.Split(s, ",") {
		k, v := Split(token, ":")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		o.Set(k, v)
	}
	return o
}

// OrderedMapKeys returns the keys of m in insertion order.
func OrderedMapKeys(m *om.OrderedMap) []string {
	retval := make([]string, 0, m.Len())
	iter := m.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval = append(retval, kv.Key.(string))
	}
	return retval
}

// OrderedMapValues returns the values of m in insertion order.
func OrderedMapValues(m *om.OrderedMap) []string {
	retval := make([]string, 0, m.Len())
	iter := m.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval = append(retval, kv.Value.(string))
	}
	return retval
}

// CsvToStringSliceTrimSpaces converts a string of the form 'f1, f2, f3' into a slice of string values.
// Empty tokens are dropped.
func CsvToStringSliceTrimSpaces(s string) []string {
	retval := make([]string, 0)
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			retval = append(retval, t)
		}
	}
	return retval
}

// GetStringFromInterfaceUseUtcTime will convert interface{} value to a string for the purposes of gt/lt comparison.
// Times will be converted to UTC for string comparison!
func GetStringFromInterfaceUseUtcTime(log logger.Logger, input interface{}) (retval string) {
	return GetStringFromInterface(log, input, true)
}

// GetStringFromInterface will convert interface{} value to a string.
// Optionally return Times in UTC.
func GetStringFromInterface(log logger.Logger, input interface{}, useUTC bool) (retval string) {
	switch v := input.(type) {
	case int, int16, int32, int64, int8, uint8:
		retval = fmt.Sprintf("%d", v)
	case *int64:
		if v != nil {
			retval = strconv.FormatInt(*v, 10)
		}
	case string:
		retval = v
	case *string:
		if v != nil {
			retval = *v
		}
	case float32:
		retval = strconv.FormatFloat(float64(v), 'f', -1, 32) // use 'f' to preserve all decimal points without an exponent.
	case float64:
		retval = strconv.FormatFloat(v, 'f', -1, 64)
	case *float64:
		if v != nil {
			retval = strconv.FormatFloat(*v, 'f', -1, 64)
		}
	case time.Time:
		if useUTC { // if caller requests UTC conversion...
			retval = v.UTC().Format(constants.TimeFormatYearSecondsTZ)
		} else { // else output Local time...
			retval = v.Format(constants.TimeFormatYearSecondsTZ)
		}
	case []uint8:
		retval = string(v)
	case bool:
		retval = fmt.Sprintf("%v", v)
	case nil:
		retval = ""
	default:
		log.Panic("unhandled type while fetching string from interface: type = ", reflect.TypeOf(input), "; value = ", input)
	}
	return
}

// Maybe s is of the form t c u.
// If so, return  t, u.
// If not, return s, "".
func Split(s string, c string) (string, string) {
	i := strings.Index(s, c)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+len(c):]
}
