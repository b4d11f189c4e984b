// Package msgs mirrors the ROS message definitions exchanged with the
// planning middleware. Field names follow the ROS schema exactly; every
// record converts to and from the neutral map form used on the wire.
package msgs

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// WireCodec is implemented by every message record.
type WireCodec interface {
	// MessageType returns the ROS type name, e.g. geometry_msgs/Pose.
	MessageType() string
	// ToMap encodes the record into a map keyed by ROS field names.
	ToMap() map[string]interface{}
}

// DecodeError reports a wire record that does not match its schema.
type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode fills out from a wire map. Missing fields, null fields, unknown
// fields and values of the wrong kind are rejected. Integer values are
// accepted for floating point fields; integer fields only take integral
// numbers within the field's range.
func Decode(input map[string]interface{}, out WireCodec) error {
	return decode(input, out, out.MessageType())
}

func decode(input map[string]interface{}, out interface{}, msgType string) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		TagName:     "msg",
		ErrorUnused: true,
		ErrorUnset:  true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			rejectNullHook,
			integerRangeHook,
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder for %s: %w", msgType, err)
	}
	if input == nil {
		return &DecodeError{Type: msgType, Err: fmt.Errorf("nil message")}
	}
	if err := decoder.Decode(input); err != nil {
		return &DecodeError{Type: msgType, Err: err}
	}
	return nil
}

var errNull = errors.New("null value")

// rejectNullHook fails on null entries of an object or array before they
// reach a field. mapstructure leaves such fields untouched otherwise.
func rejectNullHook(from, to reflect.Value) (interface{}, error) {
	switch from.Kind() {
	case reflect.Map:
		if to.Kind() != reflect.Struct {
			break
		}
		iter := from.MapRange()
		for iter.Next() {
			if isNull(iter.Value()) {
				return nil, fmt.Errorf("field '%v': %w", iter.Key().Interface(), errNull)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < from.Len(); i++ {
			if isNull(from.Index(i)) {
				return nil, fmt.Errorf("element %d: %w", i, errNull)
			}
		}
	}
	return from.Interface(), nil
}

func isNull(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return false
}

// integerRangeHook rejects numbers that would be truncated or wrapped when
// stored in an integer field.
func integerRangeHook(from, to reflect.Value) (interface{}, error) {
	signed := false
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		signed = true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return from.Interface(), nil
	}

	var overflow bool
	switch from.Kind() {
	case reflect.Float32, reflect.Float64:
		f := from.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not an integer", f)
		}
		if signed {
			overflow = f < math.MinInt64 || f >= math.MaxInt64 || to.OverflowInt(int64(f))
		} else {
			overflow = f < 0 || f >= math.MaxUint64 || to.OverflowUint(uint64(f))
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := from.Int()
		if signed {
			overflow = to.OverflowInt(i)
		} else {
			overflow = i < 0 || to.OverflowUint(uint64(i))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := from.Uint()
		if signed {
			overflow = u > math.MaxInt64 || to.OverflowInt(int64(u))
		} else {
			overflow = to.OverflowUint(u)
		}
	default:
		return from.Interface(), nil
	}
	if overflow {
		return nil, fmt.Errorf("%v overflows %s", from.Interface(), to.Type())
	}
	return from.Interface(), nil
}

// DecodeJSON decodes a JSON object into out with the same rules as Decode.
func DecodeJSON(data []byte, out WireCodec) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return &DecodeError{Type: out.MessageType(), Err: err}
	}
	return Decode(m, out)
}

func decodeAs[T WireCodec](m map[string]interface{}) (T, error) {
	var v T
	err := decode(m, &v, v.MessageType())
	return v, err
}
