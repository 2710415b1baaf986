package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"
)

type Kind uint8

const (
	KindNone Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	default:
		return "none"
	}
}

// Scalar is a stored value: exactly one of string, number or boolean.
// The zero Scalar is the none value carried by tombstones.
// Numbers keep their JSON literal so large integers survive a round trip.
type Scalar struct {
	kind Kind
	text string
	flag bool
}

func String(s string) Scalar {
	return Scalar{kind: KindString, text: s}
}

func Number(f float64) Scalar {
	return Scalar{kind: KindNumber, text: strconv.FormatFloat(f, 'f', -1, 64)}
}

func Bool(b bool) Scalar {
	return Scalar{kind: KindBool, flag: b}
}

func None() Scalar {
	return Scalar{}
}

func (s Scalar) Kind() Kind { return s.kind }

func (s Scalar) IsNone() bool { return s.kind == KindNone }

// String renders the value the way GET responses report it.
func (s Scalar) String() string {
	switch s.kind {
	case KindString, KindNumber:
		return s.text
	case KindBool:
		return strconv.FormatBool(s.flag)
	default:
		return "null"
	}
}

func (s Scalar) Float64() (float64, bool) {
	if s.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(s.text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindString:
		return json.Marshal(s.text)
	case KindNumber:
		return []byte(s.text), nil
	case KindBool:
		return []byte(strconv.FormatBool(s.flag)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null as the none value, unlike ParseScalar.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = None()
		return nil
	}
	v, err := ParseScalar(data)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseScalar decodes a raw JSON value into a Scalar. Absent or null input
// yields ErrMissingValue; objects and arrays yield ErrUnsupportedValue.
func ParseScalar(raw json.RawMessage) (Scalar, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Scalar{}, ErrMissingValue
	}

	switch trimmed[0] {
	case '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return Scalar{}, fmt.Errorf("decode string value: %w", err)
		}
		return String(str), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return Scalar{}, fmt.Errorf("decode boolean value: %w", err)
		}
		return Bool(b), nil
	case 'n':
		if bytes.Equal(trimmed, []byte("null")) {
			return Scalar{}, ErrMissingValue
		}
		return Scalar{}, fmt.Errorf("%w: %s", ErrUnsupportedValue, trimmed)
	case '{', '[':
		return Scalar{}, fmt.Errorf("%w: %c", ErrUnsupportedValue, trimmed[0])
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return Scalar{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return Scalar{kind: KindNumber, text: n.String()}, nil
	}
}

func (s Scalar) ToProto() *structpb.Value {
	switch s.kind {
	case KindString:
		return structpb.NewStringValue(s.text)
	case KindNumber:
		f, _ := s.Float64()
		return structpb.NewNumberValue(f)
	case KindBool:
		return structpb.NewBoolValue(s.flag)
	default:
		return structpb.NewNullValue()
	}
}

func FromProto(v *structpb.Value) (Scalar, error) {
	if v == nil {
		return None(), nil
	}
	switch k := v.Kind.(type) {
	case *structpb.Value_StringValue:
		return String(k.StringValue), nil
	case *structpb.Value_NumberValue:
		return Number(k.NumberValue), nil
	case *structpb.Value_BoolValue:
		return Bool(k.BoolValue), nil
	case *structpb.Value_NullValue:
		return None(), nil
	default:
		return Scalar{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v.Kind)
	}
}
