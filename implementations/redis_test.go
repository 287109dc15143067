package implementations

import (
	"errors"
	"testing"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/require"

	"github.com/jitsucom/spout/base/errorj"
)

func TestRedisErrorMap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected *errorx.Type
	}{
		{"noauth", errors.New("NOAUTH Authentication required."), errorj.AuthError},
		{"wrongpass", errors.New("WRONGPASS invalid username-password pair or user is disabled."), errorj.AuthError},
		{"io_timeout", errors.New("read tcp 127.0.0.1:53222->127.0.0.1:6379: i/o timeout"), errorj.TimeoutError},
		{"untyped", errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"), errorj.ConnectionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := redisErrorMap(tt.err)
			require.Error(t, mapped)
			require.True(t, errorx.IsOfType(mapped, tt.expected), "expected %s got %v", tt.expected, mapped)
		})
	}
	require.NoError(t, redisErrorMap(nil))
}

func TestRedisErrorMapKeepsTypedErrors(t *testing.T) {
	typed := errorj.QueryError.New("already classified")
	require.Same(t, typed, redisErrorMap(typed).(*errorx.Error))
}

func TestRedisURL(t *testing.T) {
	config := &RedisConfig{Host: "cache.internal", Port: 6380, Password: "secret", Db: 2}
	require.Equal(t, "redis://:secret@cache.internal:6380/2", config.redisURL())

	defaults := &RedisConfig{Host: "localhost"}
	require.Equal(t, "redis://localhost:6379", defaults.redisURL())

	withUrl := &RedisConfig{Url: "rediss://cache.internal:6380"}
	require.Equal(t, "rediss://cache.internal:6380", withUrl.redisURL())
}
