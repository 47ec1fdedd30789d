package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DataType enumerates the declared type of a device metric or command parameter.
type DataType string

const (
	DataTypeInt    DataType = "int"
	DataTypeFloat  DataType = "float"
	DataTypeBool   DataType = "bool"
	DataTypeString DataType = "string"
	DataTypeArray  DataType = "array"
	DataTypeBinary DataType = "binary"
	DataTypeNull   DataType = "null"
)

// MetricValue is a tagged union over the telemetry value shapes a device can report.
// Exactly one field is meaningful; Kind identifies which one.
type MetricValue struct {
	Kind   DataType `json:"kind"`
	Int    int64    `json:"int,omitempty"`
	Float  float64  `json:"float,omitempty"`
	Bool   bool     `json:"bool,omitempty"`
	String string   `json:"string,omitempty"`
	Array  []any    `json:"array,omitempty"`
	Binary []byte   `json:"binary,omitempty"`
}

func IntValue(v int64) MetricValue    { return MetricValue{Kind: DataTypeInt, Int: v} }
func FloatValue(v float64) MetricValue { return MetricValue{Kind: DataTypeFloat, Float: v} }
func BoolValue(v bool) MetricValue     { return MetricValue{Kind: DataTypeBool, Bool: v} }
func StringValue(v string) MetricValue { return MetricValue{Kind: DataTypeString, String: v} }
func NullValue() MetricValue           { return MetricValue{Kind: DataTypeNull} }

// AsFloat64 coerces the value to a float64 for numeric comparisons. Non-numeric
// kinds (Bool excepted, which coerces to 0/1) return ok=false.
func (v MetricValue) AsFloat64() (float64, bool) {
	switch v.Kind {
	case DataTypeInt:
		return float64(v.Int), true
	case DataTypeFloat:
		return v.Float, true
	case DataTypeBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case DataTypeString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.String), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String renders the value as it would be substituted into a command payload
// template: quoted strings, raw numerics, true/false booleans.
func (v MetricValue) Render() (string, error) {
	switch v.Kind {
	case DataTypeString:
		return jsonQuote(v.String), nil
	case DataTypeInt:
		return strconv.FormatInt(v.Int, 10), nil
	case DataTypeFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64), nil
	case DataTypeBool:
		if v.Bool {
			return "true", nil
		}
		return "false", nil
	case DataTypeNull:
		return "null", nil
	default:
		return "", fmt.Errorf("metric value of kind %q cannot be rendered into a payload template", v.Kind)
	}
}

func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// MetricValueFromJSON coerces a raw JSON value into a MetricValue following
// the inbound payload encoding rules: integral numbers become Int, other
// numbers become Float, objects/unhandled shapes become a serialised String.
func MetricValueFromJSON(raw json.RawMessage) MetricValue {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return StringValue(string(raw))
	}
	return metricValueFromAny(v)
}

func metricValueFromAny(v any) MetricValue {
	switch t := v.(type) {
	case nil:
		return NullValue()
	case bool:
		return BoolValue(t)
	case float64:
		if t == float64(int64(t)) {
			return IntValue(int64(t))
		}
		return FloatValue(t)
	case string:
		return StringValue(t)
	case []any:
		return MetricValue{Kind: DataTypeArray, Array: t}
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return StringValue(fmt.Sprintf("%v", v))
		}
		return StringValue(string(b))
	}
}

// CoerceToDataType converts a raw JSON parameter/metric value to the declared
// DataType, applying the strict boolean-string coercions the device service
// parameter validator requires.
func CoerceToDataType(raw json.RawMessage, dt DataType) (MetricValue, error) {
	switch dt {
	case DataTypeBool:
		var asBool bool
		if err := json.Unmarshal(raw, &asBool); err == nil {
			return BoolValue(asBool), nil
		}
		var asString string
		if err := json.Unmarshal(raw, &asString); err == nil {
			switch strings.ToLower(strings.TrimSpace(asString)) {
			case "true", "1", "yes", "on":
				return BoolValue(true), nil
			case "false", "0", "no", "off":
				return BoolValue(false), nil
			}
		}
		var asNum float64
		if err := json.Unmarshal(raw, &asNum); err == nil {
			return BoolValue(asNum != 0), nil
		}
		return MetricValue{}, fmt.Errorf("cannot coerce value to bool")
	case DataTypeInt:
		var asNum float64
		if err := json.Unmarshal(raw, &asNum); err != nil {
			return MetricValue{}, fmt.Errorf("cannot coerce value to int")
		}
		return IntValue(int64(asNum)), nil
	case DataTypeFloat:
		var asNum float64
		if err := json.Unmarshal(raw, &asNum); err != nil {
			return MetricValue{}, fmt.Errorf("cannot coerce value to float")
		}
		return FloatValue(asNum), nil
	case DataTypeString:
		var asString string
		if err := json.Unmarshal(raw, &asString); err == nil {
			return StringValue(asString), nil
		}
		return StringValue(string(raw)), nil
	case DataTypeArray:
		var asArray []any
		if err := json.Unmarshal(raw, &asArray); err != nil {
			return MetricValue{}, fmt.Errorf("cannot coerce value to array")
		}
		return MetricValue{Kind: DataTypeArray, Array: asArray}, nil
	case DataTypeBinary:
		return MetricValue{}, fmt.Errorf("binary parameters are not accepted from JSON input")
	default:
		return metricValueFromAny(json.RawMessage(raw)), nil
	}
}
