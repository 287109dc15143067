package implementations

import (
	"errors"
	"testing"
	"time"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/jitsucom/spout/base/errorj"
)

func TestBigQueryErrorMap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected *errorx.Type
	}{
		{"unauthenticated", &googleapi.Error{Code: 401, Message: "request had invalid authentication credentials"}, errorj.AuthError},
		{"forbidden", &googleapi.Error{Code: 403, Message: "access denied"}, errorj.AuthError},
		{"bad_query", &googleapi.Error{Code: 400, Message: "syntax error at [1:8]"}, errorj.QueryError},
		{"not_found", &googleapi.Error{Code: 404, Message: "table not found"}, errorj.QueryError},
		{"server_error", &googleapi.Error{Code: 503, Message: "backend error"}, errorj.ConnectionError},
		{"untyped", errors.New("dial tcp: connection refused"), errorj.ConnectionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := bigQueryErrorMap(tt.err)
			require.Error(t, mapped)
			require.True(t, errorx.IsOfType(mapped, tt.expected), "expected %s got %v", tt.expected, mapped)
		})
	}
	require.NoError(t, bigQueryErrorMap(nil))
}

func TestBigQueryErrorMapKeepsTypedErrors(t *testing.T) {
	typed := errorj.QueryError.New("already classified")
	require.Same(t, typed, bigQueryErrorMap(typed).(*errorx.Error))
}

func TestNormalizeBigQueryValue(t *testing.T) {
	ts := time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)
	require.Equal(t, "2023-04-05T06:07:08.000000Z", normalizeBigQueryValue(ts))
	require.Equal(t, 42, normalizeBigQueryValue(int64(42)))
	require.Equal(t, "text", normalizeBigQueryValue("text"))
}
