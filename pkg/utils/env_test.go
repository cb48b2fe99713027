package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Run("string default", func(t *testing.T) {
		t.Setenv("CV_TEST_STR", "")
		assert.Equal(t, "fallback", Env("CV_TEST_STR", "fallback"))
		t.Setenv("CV_TEST_STR", "value")
		assert.Equal(t, "value", Env("CV_TEST_STR", "fallback"))
	})

	t.Run("int rejects non-positive", func(t *testing.T) {
		t.Setenv("CV_TEST_INT", "-3")
		assert.Equal(t, 7, EnvInt("CV_TEST_INT", 7))
		t.Setenv("CV_TEST_INT", "12")
		assert.Equal(t, 12, EnvInt("CV_TEST_INT", 7))
	})

	t.Run("int64 accepts zero", func(t *testing.T) {
		t.Setenv("CV_TEST_INT64", "0")
		assert.Equal(t, int64(0), EnvInt64("CV_TEST_INT64", 10))
		t.Setenv("CV_TEST_INT64", "abc")
		assert.Equal(t, int64(10), EnvInt64("CV_TEST_INT64", 10))
	})

	t.Run("bool", func(t *testing.T) {
		t.Setenv("CV_TEST_BOOL", "YES")
		assert.True(t, EnvBool("CV_TEST_BOOL", false))
		t.Setenv("CV_TEST_BOOL", "0")
		assert.False(t, EnvBool("CV_TEST_BOOL", true))
		t.Setenv("CV_TEST_BOOL", "maybe")
		assert.True(t, EnvBool("CV_TEST_BOOL", true))
	})

	t.Run("duration", func(t *testing.T) {
		t.Setenv("CV_TEST_DUR", "90s")
		assert.Equal(t, 90*time.Second, EnvDuration("CV_TEST_DUR", time.Minute))
		t.Setenv("CV_TEST_DUR", "soon")
		assert.Equal(t, time.Minute, EnvDuration("CV_TEST_DUR", time.Minute))
	})
}
