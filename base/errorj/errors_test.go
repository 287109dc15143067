package errorj

import (
	"errors"
	"testing"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	require.Nil(t, Kind(errors.New("plain")))
	require.Equal(t, QueryError, Kind(QueryError.New("boom")))
	require.Equal(t, AuthError, Kind(AuthError.Wrap(errors.New("denied"), "auth failed")))
}

func TestAuthErrorIsConnectionError(t *testing.T) {
	err := AuthError.New("bad credentials")
	require.True(t, errorx.IsOfType(err, AuthError))
	//auth failures are a subtype of connection failures
	require.True(t, errorx.IsOfType(err, ConnectionError))
	require.False(t, errorx.IsOfType(err, QueryError))
}

func TestIsTimeout(t *testing.T) {
	require.True(t, IsTimeout(TimeoutError.New("deadline exceeded")))
	require.False(t, IsTimeout(QueryError.New("syntax error")))
	require.False(t, IsTimeout(errors.New("plain")))
}

func TestDecorateKeepsType(t *testing.T) {
	err := Decorate(QueryError.New("syntax error"), "failed to run extraction query")
	require.True(t, errorx.IsOfType(err, QueryError))
}
