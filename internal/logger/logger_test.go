package logger

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analytics-go/internal/types"
)

func TestJSONOutsideLocal(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Environment: "production", Level: "debug", Output: &buf})
	assert.Equal(t, logrus.DebugLevel, log.Logger.GetLevel())

	st, err := types.NewCallState("c1", types.TextInput("Agent: hi"))
	require.NoError(t, err)
	WithCall(log.Component("orchestrator"), st).Info("call accepted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "call accepted", entry["msg"])
	assert.Equal(t, "orchestrator", entry["component"])
	assert.Equal(t, "c1", entry["call_id"])
	assert.Equal(t, "text", entry["input_kind"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, parseLevel("WARNING"))
	assert.Equal(t, logrus.ErrorLevel, parseLevel(" error "))
	assert.Equal(t, logrus.InfoLevel, parseLevel("chatty"))
}

func TestWithRequestKeepsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Environment: "prod", Output: &buf})
	req := httptest.NewRequest("GET", "/calls/c1", nil)
	req.Header.Set("X-Request-ID", "req-42")

	log.WithRequest(req).Info("hello")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-42", entry["req_id"])
	assert.Equal(t, "/calls/c1", entry["path"])
}

func TestWithErrorNil(t *testing.T) {
	log := Discard()
	assert.Same(t, log.Entry, log.WithError(nil))
}
