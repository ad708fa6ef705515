package envutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("DQ_INT", "42")
	t.Setenv("DQ_BAD_INT", "x")
	t.Setenv("DQ_FLOAT", "0.25")
	t.Setenv("DQ_BOOL", "yes")
	t.Setenv("DQ_DUR", "90s")
	t.Setenv("DQ_LIST", " gemini-1.5-flash , ,gemini-pro ")

	assert.Equal(t, 42, Int("DQ_INT", 1))
	assert.Equal(t, 7, Int("DQ_BAD_INT", 7))
	assert.Equal(t, 0.25, Float("DQ_FLOAT", 1))
	assert.True(t, Bool("DQ_BOOL", false))
	assert.False(t, Bool("DQ_UNSET_BOOL", false))
	assert.Equal(t, 90*time.Second, Duration("DQ_DUR", time.Second))
	assert.Equal(t, []string{"gemini-1.5-flash", "gemini-pro"}, List("DQ_LIST"))
	assert.Nil(t, List("DQ_UNSET_LIST"))
}
