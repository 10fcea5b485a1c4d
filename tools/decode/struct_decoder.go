package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New()

// Options customises Decode behaviour.
type Options struct {
	// Lenient decoding (default true): "123" -> int, 42 -> "42" and so on.
	WeaklyTypedInput bool
	// Skip the validate:"..." tag check after decoding.
	SkipValidation bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		WeaklyTypedInput: true,
	}
}

// WithWeaklyTypedInput is a convenience switch.
func WithWeaklyTypedInput(v bool) Options {
	return Options{WeaklyTypedInput: v}
}

// DecodeMap decodes a generic JSON object into T using its json tags, then
// runs struct validation. Event payloads from older web clients send numeric
// user ids; with weak typing those land in string fields as decimal text.
func DecodeMap[T any](m map[string]any, opts ...Options) (*T, error) {
	if m == nil {
		return nil, fmt.Errorf("payload is nil")
	}

	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T
	decCfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			numberHook(),
			floatToStringHook(),
			floatToIntHook(),
			sliceAnyToSliceStringHook(),
		),
	}

	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if !cfg.SkipValidation {
		if err := Validate(&out); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

// DecodeJSON unmarshals raw into a generic object and hands it to DecodeMap.
// Numbers stay json.Number so ids above 2^53 keep every digit.
func DecodeJSON[T any](raw []byte, opts ...Options) (*T, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("payload is not a json object: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("payload is not a json object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("payload has trailing data")
	}
	return DecodeMap[T](m, opts...)
}

// Validate runs the validate:"..." struct tags of v.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// numberHook turns json.Number into the target's kind: its literal text for
// strings, a parsed value for ints and floats.
func numberHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		n, ok := data.(json.Number)
		if !ok {
			return data, nil
		}
		switch to.Kind() {
		case reflect.String:
			return n.String(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return n.Int64()
		case reflect.Float32, reflect.Float64:
			return n.Float64()
		}
		return data, nil
	}
}

// json numbers decode to float64; 42.0 should become "42", not "42.000000".
func floatToStringHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Float64 || to.Kind() != reflect.String {
			return data, nil
		}
		f := data.(float64)
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10), nil
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
}

func floatToIntHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Float64 {
			return data, nil
		}
		switch to.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

// []any{"a", 42} -> []string{"a", "42"}
func sliceAnyToSliceStringHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Slice || to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		in, ok := data.([]any)
		if !ok {
			return data, nil
		}
		out := make([]string, 0, len(in))
		for _, v := range in {
			switch t := v.(type) {
			case string:
				out = append(out, t)
			case json.Number:
				out = append(out, t.String())
			case float64:
				out = append(out, strconv.FormatFloat(t, 'f', -1, 64))
			case nil:
				out = append(out, "")
			default:
				out = append(out, fmt.Sprint(t))
			}
		}
		return out, nil
	}
}
