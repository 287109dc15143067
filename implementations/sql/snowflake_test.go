package sql

import (
	"errors"
	"testing"

	"github.com/joomcode/errorx"
	sf "github.com/snowflakedb/gosnowflake"
	"github.com/stretchr/testify/require"

	"github.com/jitsucom/spout/base/errorj"
)

func TestSnowflakeErrorMap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected *errorx.Type
	}{
		{"auth", &sf.SnowflakeError{Number: 390100, Message: "incorrect username or password was specified"}, errorj.AuthError},
		{"expired_password", &sf.SnowflakeError{Number: 390103, Message: "password expired"}, errorj.AuthError},
		{"unknown_object", &sf.SnowflakeError{Number: 2003, Message: "object does not exist or not authorized"}, errorj.QueryError},
		{"compilation", &sf.SnowflakeError{Number: 1003, Message: "sql compilation error"}, errorj.QueryError},
		{"statement_timeout", &sf.SnowflakeError{Number: 604, Message: "statement reached its statement or warehouse timeout"}, errorj.TimeoutError},
		{"other_sf", &sf.SnowflakeError{Number: 261001, Message: "post request failed"}, errorj.ConnectionError},
		{"untyped", errors.New("dial tcp: connection refused"), errorj.ConnectionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := snowflakeErrorMap(tt.err)
			require.Error(t, mapped)
			require.True(t, errorx.IsOfType(mapped, tt.expected), "expected %s got %v", tt.expected, mapped)
		})
	}
	require.NoError(t, snowflakeErrorMap(nil))
}

func TestSnowflakeErrorMapKeepsTypedErrors(t *testing.T) {
	typed := errorj.QueryError.New("already classified")
	require.Same(t, typed, snowflakeErrorMap(typed).(*errorx.Error))
}

func TestSnowflakeConfigValidate(t *testing.T) {
	config := &SnowflakeConfig{Account: "acme-x1", Db: "analytics", Username: "loader"}
	require.NoError(t, config.Validate())
	require.Equal(t, "PUBLIC", config.Schema)

	require.Error(t, (&SnowflakeConfig{Db: "analytics", Username: "loader"}).Validate())
	require.Error(t, (&SnowflakeConfig{Account: "acme-x1", Username: "loader"}).Validate())
	require.Error(t, (&SnowflakeConfig{Account: "acme-x1", Db: "analytics"}).Validate())
}
