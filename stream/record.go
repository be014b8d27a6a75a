package stream

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	h "github.com/relloyd/sparkify/helper"
	"github.com/relloyd/sparkify/logger"
)

// NewRecord creates a new Record and returns it by value as we expect these records to go over
// channels by value too.
func NewRecord() Record {
	return Record{
		data: make(map[string]interface{}),
	}
}

func NewNilRecord() Record {
	return Record{}
}

func (sr Record) RecordIsNil() bool {
	return sr.data == nil
}

// Record is used to communicate data between components.
// Values are nil, string, *string, int32, int64, *int64, float64, *float64 or time.Time.
// A nil pointer is treated as a null value.
type Record struct {
	data map[string]interface{}
}

const (
	keySeparator = "\x1f"
	keyNull      = "\x00"
)

func (sr Record) SetData(name string, value interface{}) {
	sr.data[name] = value
}

func (sr Record) GetData(name string) interface{} {
	val, ok := sr.data[name]
	if !ok {
		panic(fmt.Sprintf("Invalid key name %q supplied while trying to fetch value from record: %v", name, sr.data))
	}
	return val
}

// HasField returns true if name exists in the record, even when its value is null.
func (sr Record) HasField(name string) bool {
	_, ok := sr.data[name]
	return ok
}

func (sr Record) GetDataMap() map[string]interface{} {
	return sr.data
}

func (sr Record) GetDataLen() int {
	return len(sr.data)
}

// IsNull returns true if the field is missing, nil or a nil pointer.
func (sr Record) IsNull(name string) bool {
	return IsNullValue(sr.data[name])
}

// IsNullValue returns true if v is nil or a typed nil pointer.
func IsNullValue(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// GetString returns the string held in name or nil.
func (sr Record) GetString(name string) *string {
	switch v := sr.GetData(name).(type) {
	case string:
		return &v
	case *string:
		return v
	case nil:
		return nil
	default:
		panic(fmt.Sprintf("field %q holds %T, not a string", name, v))
	}
}

// GetInt64 returns the integer held in name or nil.
func (sr Record) GetInt64(name string) *int64 {
	switch v := sr.GetData(name).(type) {
	case int64:
		return &v
	case *int64:
		return v
	case int32:
		x := int64(v)
		return &x
	case int:
		x := int64(v)
		return &x
	case nil:
		return nil
	default:
		panic(fmt.Sprintf("field %q holds %T, not an integer", name, v))
	}
}

// GetInt32 returns the integer held in name, or 0 when it is null.
func (sr Record) GetInt32(name string) int32 {
	if p := sr.GetInt64(name); p != nil {
		return int32(*p)
	}
	return 0
}

// GetFloat64 returns the float held in name or nil.
func (sr Record) GetFloat64(name string) *float64 {
	switch v := sr.GetData(name).(type) {
	case float64:
		return &v
	case *float64:
		return v
	case nil:
		return nil
	default:
		panic(fmt.Sprintf("field %q holds %T, not a float", name, v))
	}
}

// GetTime returns the time held in name and false when it is null.
func (sr Record) GetTime(name string) (time.Time, bool) {
	switch v := sr.GetData(name).(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case nil:
		return time.Time{}, false
	default:
		panic(fmt.Sprintf("field %q holds %T, not a time", name, v))
	}
}

// GetDataAsStringUseUtcTime will convert interface{} value to a string for the purposes of gt/lt comparison.
// Times will be converted to UTC for string comparison!
func (sr Record) GetDataAsStringUseUtcTime(log logger.Logger, name string) (retval string) {
	v, ok := sr.data[name]
	if !ok {
		panic(fmt.Sprintf("unexpected field %q does not exist in the input stream (bad pipe definition?)", name))
	}
	return h.GetStringFromInterfaceUseUtcTime(log, v)
}

// Key builds a comparable value from the supplied fields.
// Each value is tagged with its type so that the string "1" and the integer 1 never collide,
// and nulls get their own marker so they equal each other but nothing else.
func (sr Record) Key(log logger.Logger, fields []string) string {
	b := strings.Builder{}
	for idx, f := range fields {
		if idx > 0 {
			b.WriteString(keySeparator)
		}
		v, ok := sr.data[f]
		if !ok {
			panic(fmt.Sprintf("unexpected field %q does not exist in the input stream (bad pipe definition?)", f))
		}
		if IsNullValue(v) {
			b.WriteString(keyNull)
			continue
		}
		b.WriteString(typeTag(v))
		b.WriteString(h.GetStringFromInterfaceUseUtcTime(log, v))
	}
	return b.String()
}

// KeyHasNull returns true if any of the fields is null.
func (sr Record) KeyHasNull(fields []string) bool {
	for _, f := range fields {
		if sr.IsNull(f) {
			return true
		}
	}
	return false
}

func typeTag(v interface{}) string {
	switch v.(type) {
	case string, *string:
		return "s:"
	case float32, float64, *float64:
		return "f:"
	case time.Time, *time.Time:
		return "t:"
	case bool:
		return "b:"
	default:
		return "i:"
	}
}

// GetSortedDataMapKeys will return a slice of the keys found in map sr.data.
func (sr Record) GetSortedDataMapKeys() []string {
	retval := make([]string, 0, len(sr.data))
	for k := range sr.data {
		retval = append(retval, k)
	}
	sort.Strings(retval)
	return retval
}

// Project builds a new record containing only the keys of fields, renamed to their values.
// A missing source field is a programming error and panics.
func (sr Record) Project(fields *om.OrderedMap) Record {
	retval := NewRecord()
	iter := fields.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval.data[kv.Value.(string)] = sr.GetData(kv.Key.(string))
	}
	return retval
}

// Copy returns a shallow copy of the record so the copy can be changed without affecting sr.
func (sr Record) Copy() Record {
	if sr.RecordIsNil() {
		return sr
	}
	retval := Record{data: make(map[string]interface{}, len(sr.data))}
	sr.CopyTo(retval)
	return retval
}

func (sr Record) CopyTo(t Record) {
	for k, v := range sr.data {
		t.SetData(k, v)
	}
}

// GetJson returns the JSON representation of sr.data using the supplied keys to fetch the data.
func (sr Record) GetJson(log logger.Logger, keys []string) string {
	out := make([]string, len(keys))
	for idx, key := range keys { // for each key...
		jsonValue, err := json.Marshal(sr.GetDataAsStringUseUtcTime(log, key))
		if err != nil {
			log.Panic("Error marshalling the value of key '", key, "' to JSON")
		}
		out[idx] = fmt.Sprintf("%q: %s", key, string(jsonValue))
	}
	return fmt.Sprintf("{%v}", strings.Join(out, ", "))
}

// MergeDataStreams will combine records from s1 into a new record, followed by s2 into the new record before
// returning it. You can supply a nil s2 to create a copy of s1 that is returned.
// If allowOverwrite is false, an error is returned if a field in s2 already exists in s1.
func MergeDataStreams(s1 Record, s2 Record, allowOverwrite bool) (Record, error) {
	retval := NewRecord()
	for k, v := range s1.GetDataMap() { // for each key:value in the 1st source...
		retval.data[k] = v
	}
	if !s2.RecordIsNil() { // if s2 is not empty...
		for k, v := range s2.GetDataMap() { // for each key:value in the 2nd source...
			_, ok := retval.data[k]
			if ok && !allowOverwrite { // if the key already exists...
				return Record{}, fmt.Errorf("field %v exists in stream record", k)
			}
			retval.data[k] = v
		}
	}
	return retval, nil
}

// CompareValues orders two field values, returning -1, 0 or 1.
// Nulls sort before everything else. Numbers compare numerically, times chronologically and
// everything else by its string form.
func CompareValues(log logger.Logger, a, b interface{}) int {
	an, bn := IsNullValue(a), IsNullValue(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return compareFloat(af, bf)
		}
	}
	if at, ok := toTime(a); ok {
		if bt, ok := toTime(b); ok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			}
			return 0
		}
	}
	return strings.Compare(h.GetStringFromInterfaceUseUtcTime(log, a), h.GetStringFromInterfaceUseUtcTime(log, b))
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case *int64:
		return float64(*x), true
	case float64:
		return x, true
	case *float64:
		return *x, true
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		return *x, true
	}
	return time.Time{}, false
}
