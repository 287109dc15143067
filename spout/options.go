package spout

import (
	"fmt"
	"time"

	"github.com/jitsucom/spout/base/utils"
)

type ExtractOption func(*ExtractOptions)

var optionsRegistry = make(map[string]ParseableOption)

var (
	// TimeoutOption - deadline for the whole extraction run. Zero means no deadline
	TimeoutOption = ImplementationOption[time.Duration]{
		Key:          "timeout",
		DefaultValue: 0,
		ParseFunc:    utils.ParseDuration,
	}

	// LimitOption - maximum number of records to extract. Zero means no limit
	LimitOption = ImplementationOption[int]{
		Key:          "limit",
		DefaultValue: 0,
		ParseFunc:    utils.ParseInt,
	}

	// ColumnsOption - explicit ordered list of fields to extract. Empty means all fields
	// in source order
	ColumnsOption = ImplementationOption[[]string]{
		Key:          "columns",
		DefaultValue: nil,
		AdvancedParseFunc: func(o *ImplementationOption[[]string], serializedValue any) (ExtractOption, error) {
			switch v := serializedValue.(type) {
			case []string:
				return WithOption(o, v), nil
			case []any:
				columns := make([]string, 0, len(v))
				for _, c := range v {
					s, ok := c.(string)
					if !ok {
						return nil, fmt.Errorf("failed to parse 'columns' option: %v incorrect element type: %T expected string", c, c)
					}
					columns = append(columns, s)
				}
				return WithOption(o, columns), nil
			case string:
				if v == "" {
					return func(options *ExtractOptions) {}, nil
				}
				return WithOption(o, []string{v}), nil
			default:
				return nil, fmt.Errorf("failed to parse 'columns' option: %v incorrect type: %T expected string or []string", v, v)
			}
		},
	}

	// ParametersOption - positional parameters passed to the source query
	ParametersOption = ImplementationOption[[]any]{
		Key:          "parameters",
		DefaultValue: nil,
		AdvancedParseFunc: func(o *ImplementationOption[[]any], serializedValue any) (ExtractOption, error) {
			switch v := serializedValue.(type) {
			case []any:
				return WithOption(o, v), nil
			default:
				return nil, fmt.Errorf("failed to parse 'parameters' option: %v incorrect type: %T expected []any", v, v)
			}
		},
	}
)

func init() {
	RegisterOption(&TimeoutOption)
	RegisterOption(&LimitOption)
	RegisterOption(&ColumnsOption)
	RegisterOption(&ParametersOption)
}

func RegisterOption[V any](option *ImplementationOption[V]) {
	optionsRegistry[option.Key] = option
}

func ParseOption(name string, serialized any) (ExtractOption, error) {
	option, ok := optionsRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown option %s", name)
	}
	return option.Parse(serialized)
}

type ExtractOptions struct {
	// Implementation options - map by option key. Values are parsed and validated
	// Don't access this map directly, use 'Get' method of specific option instance. E.g. `TimeoutOption.Get(&eo)`
	valuesMap map[string]any
	// options slice. To pass to Extract method
	Options []ExtractOption
}

func (eo *ExtractOptions) Add(option ExtractOption) {
	option(eo)
	eo.Options = append(eo.Options, option)
}

type ParseableOption interface {
	Parse(serialized any) (ExtractOption, error)
}

type ImplementationOption[V any] struct {
	Key               string
	DefaultValue      V
	ParseFunc         func(serialized any) (V, error)
	AdvancedParseFunc func(*ImplementationOption[V], any) (ExtractOption, error)
}

func (io *ImplementationOption[V]) Parse(serializedValue any) (ExtractOption, error) {
	if io.ParseFunc != nil {
		val, err := io.ParseFunc(serializedValue)
		if err != nil {
			return nil, fmt.Errorf("failed to parse '%s' option: %v", io.Key, err)
		}
		return func(options *ExtractOptions) {
			io.Set(options, val)
		}, nil
	} else {
		return io.AdvancedParseFunc(io, serializedValue)
	}
}

func (io *ImplementationOption[V]) Get(eo *ExtractOptions) V {
	opt, ok := eo.valuesMap[io.Key].(V)
	if ok {
		return opt
	}
	return io.DefaultValue
}

func (io *ImplementationOption[V]) Set(eo *ExtractOptions, value V) {
	if eo.valuesMap == nil {
		eo.valuesMap = map[string]any{io.Key: value}
	} else {
		eo.valuesMap[io.Key] = value
	}
}

func WithOption[T any](o *ImplementationOption[T], value T) ExtractOption {
	return func(options *ExtractOptions) {
		o.Set(options, value)
	}
}

// WithTimeout sets a deadline for the whole extraction run
func WithTimeout(timeout time.Duration) ExtractOption {
	return WithOption(&TimeoutOption, timeout)
}

// WithLimit caps the number of extracted records
func WithLimit(limit int) ExtractOption {
	return WithOption(&LimitOption, limit)
}

// WithColumns restricts extraction to the provided fields, in the provided order
func WithColumns(columns ...string) ExtractOption {
	return WithOption(&ColumnsOption, columns)
}

// WithParameters passes positional parameters to the source query
func WithParameters(parameters ...any) ExtractOption {
	return WithOption(&ParametersOption, parameters)
}
