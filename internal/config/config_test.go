package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvString(t *testing.T) {
	t.Setenv("SOCIALCRON_TEST_STR", "value")
	assert.Equal(t, "value", getEnvString("SOCIALCRON_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnvString("SOCIALCRON_TEST_STR_UNSET", "fallback"))
}

func TestGetEnvBool(t *testing.T) {
	for value, expected := range map[string]bool{
		"true":  true,
		"1":     true,
		"yes":   true,
		"TRUE":  true,
		"false": false,
		"0":     false,
		"nope":  false,
	} {
		t.Setenv("SOCIALCRON_TEST_BOOL", value)
		assert.Equal(t, expected, getEnvBool("SOCIALCRON_TEST_BOOL", !expected), value)
	}
	assert.True(t, getEnvBool("SOCIALCRON_TEST_BOOL_UNSET", true))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("SOCIALCRON_TEST_DUR", "30s")
	assert.Equal(t, 30*time.Second, getEnvDuration("SOCIALCRON_TEST_DUR", time.Minute))

	// Bare integers are treated as seconds.
	t.Setenv("SOCIALCRON_TEST_DUR", "15")
	assert.Equal(t, 15*time.Second, getEnvDuration("SOCIALCRON_TEST_DUR", time.Minute))

	t.Setenv("SOCIALCRON_TEST_DUR", "garbage")
	assert.Equal(t, time.Minute, getEnvDuration("SOCIALCRON_TEST_DUR", time.Minute))
}
