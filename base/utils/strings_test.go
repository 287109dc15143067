package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNvlString(t *testing.T) {
	require.Equal(t, "a", NvlString("a", "b"))
	require.Equal(t, "b", NvlString("", "b"))
	require.Equal(t, "", NvlString("", ""))
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "run_1_users", SanitizeString("run 1/users"))
}

func TestSet(t *testing.T) {
	s := NewSet("id", "name")
	require.True(t, s.Contains("id"))
	require.False(t, s.Contains("email"))
	s.Put("email")
	require.True(t, s.Contains("email"))
}
