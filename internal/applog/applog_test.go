package applog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withCapturedOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := out
	out = &buf
	defer func() { out = prev }()
	fn()
	return buf.String()
}

func TestInfoIncludesLevelAndMessage(t *testing.T) {
	got := withCapturedOutput(t, func() { Info("decompiled %d bytes", 42) })
	assert.True(t, strings.Contains(got, "info"))
	assert.True(t, strings.Contains(got, "decompiled 42 bytes"))
}

func TestRequestLoggerPrefixesID(t *testing.T) {
	got := withCapturedOutput(t, func() { WithRequestID("req-1").Error("boom") })
	assert.True(t, strings.Contains(got, "req-1"))
	assert.True(t, strings.Contains(got, "boom"))
	assert.True(t, strings.Contains(got, "error"))
}
