package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	raw := []byte(`{"type":"order.shipped","userId":"u1","data":{"orderId":"A-17"},"timestamp":"2025-03-10T12:00:00Z"}`)
	e, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "order.shipped", e.Type)
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, "A-17", e.Data["orderId"])
	assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), e.Timestamp.UTC())
}

func TestParseMissingData(t *testing.T) {
	raw := []byte(`{"type":"x","userId":"u1","timestamp":"2025-03-10T12:00:00Z"}`)
	e, err := Parse(raw)
	require.NoError(t, err)
	assert.NotNil(t, e.Data)
	assert.Empty(t, e.Data)
}

func TestParseMalformed(t *testing.T) {
	for name, raw := range map[string]string{
		"bad json":     `{"type":`,
		"no type":      `{"userId":"u1","timestamp":"2025-03-10T12:00:00Z"}`,
		"no user":      `{"type":"x","timestamp":"2025-03-10T12:00:00Z"}`,
		"no timestamp": `{"type":"x","userId":"u1"}`,
	} {
		_, err := Parse([]byte(raw))
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrMalformed, name)
	}
}

func TestEventWireFormat(t *testing.T) {
	e := Event{
		Type:      "user.signup",
		UserID:    "u9",
		Data:      map[string]any{"plan": "pro"},
		Timestamp: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Contains(t, m, "type")
	assert.Contains(t, m, "userId")
	assert.Contains(t, m, "data")
	assert.Contains(t, m, "timestamp")
}

func TestDeadLetterWireFormat(t *testing.T) {
	dl := DeadLetter{Message: "{bad", Error: "malformed event", Timestamp: time.Now(), RetryCount: 0}
	raw, err := json.Marshal(dl)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Contains(t, m, "message")
	assert.Contains(t, m, "error")
	assert.Contains(t, m, "timestamp")
	assert.Contains(t, m, "retryCount")
}
