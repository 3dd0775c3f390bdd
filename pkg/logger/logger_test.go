package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMsg(t *testing.T) {
	assert.Equal(t, "hello", formatMsg("hello"))
	assert.Equal(t, "hello a=1 b=two", formatMsg("hello", "a", 1, "b", "two"))
	assert.Equal(t, "hello a=missing", formatMsg("hello", "a"))
}

func TestWriterLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("warn", &buf)

	l.Info("skipped")
	l.Warn("kept", "path", "/api/v1/users/profile/")

	out := buf.String()
	assert.False(t, strings.Contains(out, "skipped"))
	assert.Contains(t, out, "WARN: ")
	assert.Contains(t, out, "kept path=/api/v1/users/profile/")
}
