package spout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOptionDefaults(t *testing.T) {
	eo := &ExtractOptions{}
	require.Equal(t, time.Duration(0), TimeoutOption.Get(eo))
	require.Equal(t, 0, LimitOption.Get(eo))
	require.Nil(t, ColumnsOption.Get(eo))
	require.Nil(t, ParametersOption.Get(eo))
}

func TestOptionHelpers(t *testing.T) {
	eo := &ExtractOptions{}
	eo.Add(WithTimeout(30 * time.Second))
	eo.Add(WithLimit(100))
	eo.Add(WithColumns("id", "name"))
	eo.Add(WithParameters(42, "x"))

	require.Equal(t, 30*time.Second, TimeoutOption.Get(eo))
	require.Equal(t, 100, LimitOption.Get(eo))
	require.Equal(t, []string{"id", "name"}, ColumnsOption.Get(eo))
	require.Equal(t, []any{42, "x"}, ParametersOption.Get(eo))
	require.Len(t, eo.Options, 4)
}

func TestParseOption(t *testing.T) {
	tests := []struct {
		name       string
		serialized any
		check      func(t *testing.T, eo *ExtractOptions)
		expectErr  bool
	}{
		{name: "timeout", serialized: "45s", check: func(t *testing.T, eo *ExtractOptions) {
			require.Equal(t, 45*time.Second, TimeoutOption.Get(eo))
		}},
		{name: "timeout", serialized: 45, check: func(t *testing.T, eo *ExtractOptions) {
			require.Equal(t, 45*time.Second, TimeoutOption.Get(eo))
		}},
		{name: "limit", serialized: "10", check: func(t *testing.T, eo *ExtractOptions) {
			require.Equal(t, 10, LimitOption.Get(eo))
		}},
		{name: "limit", serialized: 10.0, check: func(t *testing.T, eo *ExtractOptions) {
			require.Equal(t, 10, LimitOption.Get(eo))
		}},
		{name: "columns", serialized: []any{"id", "name"}, check: func(t *testing.T, eo *ExtractOptions) {
			require.Equal(t, []string{"id", "name"}, ColumnsOption.Get(eo))
		}},
		{name: "columns", serialized: "id", check: func(t *testing.T, eo *ExtractOptions) {
			require.Equal(t, []string{"id"}, ColumnsOption.Get(eo))
		}},
		{name: "columns", serialized: []any{1, 2}, expectErr: true},
		{name: "parameters", serialized: []any{1, "a"}, check: func(t *testing.T, eo *ExtractOptions) {
			require.Equal(t, []any{1, "a"}, ParametersOption.Get(eo))
		}},
		{name: "parameters", serialized: "nope", expectErr: true},
		{name: "unknown_option", serialized: "x", expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			option, err := ParseOption(tt.name, tt.serialized)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			eo := &ExtractOptions{}
			eo.Add(option)
			tt.check(t, eo)
		})
	}
}
