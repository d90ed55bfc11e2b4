package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetString(t *testing.T) {
	t.Setenv("CFG_TEST_STRING", "value")
	require.Equal(t, "value", GetString("CFG_TEST_STRING", "fallback"))
	require.Equal(t, "fallback", GetString("CFG_TEST_STRING_MISSING", "fallback"))
}

func TestGetInt(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "42")
	require.Equal(t, 42, GetInt("CFG_TEST_INT", 7))
	t.Setenv("CFG_TEST_INT_BAD", "not a number")
	require.Equal(t, 7, GetInt("CFG_TEST_INT_BAD", 7))
	require.Equal(t, 7, GetInt("CFG_TEST_INT_MISSING", 7))
}

func TestGetBool(t *testing.T) {
	t.Setenv("CFG_TEST_BOOL", "true")
	require.True(t, GetBool("CFG_TEST_BOOL", false))
	t.Setenv("CFG_TEST_BOOL_PY", "True")
	require.True(t, GetBool("CFG_TEST_BOOL_PY", false))
	require.False(t, GetBool("CFG_TEST_BOOL_MISSING", false))
}

func TestLoadValidatorConfigDefaults(t *testing.T) {
	cfg := LoadValidatorConfig()
	require.Equal(t, ":5000", cfg.Addr)
	require.Equal(t, 20, cfg.ReadyAttempts)
	require.Equal(t, "swsoc", cfg.Mission)
	require.True(t, cfg.UseTestData)
}
