package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCredentials(t *testing.T) {
	require.Nil(t, parseCredentials(""))

	creds := parseCredentials("sk-one")
	require.Len(t, creds, 1)
	require.Equal(t, Credential{APIKey: "sk-one"}, creds[0])

	creds = parseCredentials("sk-one@https://alt.example.com/v1, sk-two ,")
	require.Len(t, creds, 2)
	require.Equal(t, Credential{APIKey: "sk-one", BaseURL: "https://alt.example.com/v1"}, creds[0])
	require.Equal(t, Credential{APIKey: "sk-two"}, creds[1])
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	require.Equal(t, "value", getEnv("TEST_STR", "fallback"))
	require.Equal(t, "fallback", getEnv("TEST_STR_MISSING", "fallback"))

	t.Setenv("TEST_INT", "42")
	require.Equal(t, 42, getIntEnv("TEST_INT", 7))
	t.Setenv("TEST_INT_BAD", "not-a-number")
	require.Equal(t, 7, getIntEnv("TEST_INT_BAD", 7))

	t.Setenv("TEST_BOOL", "true")
	require.True(t, getBoolEnv("TEST_BOOL", false))

	t.Setenv("TEST_SLICE", "a, b ,c")
	require.Equal(t, []string{"a", "b", "c"}, getSliceEnv("TEST_SLICE", nil))

	// Durations accept both Go syntax and bare seconds.
	t.Setenv("TEST_DUR", "90s")
	require.Equal(t, 90*time.Second, getDurationEnv("TEST_DUR", time.Minute))
	t.Setenv("TEST_DUR_SECONDS", "30")
	require.Equal(t, 30*time.Second, getDurationEnv("TEST_DUR_SECONDS", time.Minute))
}
