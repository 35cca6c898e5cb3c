package ami

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecordPreservesOrder(t *testing.T) {
	raw := []byte("Response: Success\r\nActionID: abc-123\r\nMessage: Authentication accepted\r\n")

	rec := ParseRecord(raw)

	require.Equal(t, 3, rec.Count())
	assert.Equal(t, []string{"Response", "ActionID", "Message"}, rec.Keys())

	v, ok := rec.Get("ActionID")
	require.True(t, ok)
	assert.Equal(t, "abc-123", v)
}

func TestParseRecordDropsTrailingMalformedField(t *testing.T) {
	// The final field has a key/value separator but no terminating CRLF:
	// a truncated read. ParseRecord must return everything that parsed
	// cleanly rather than erroring out.
	raw := []byte("Response: Success\r\nEvent: PeerStat")

	rec := ParseRecord(raw)

	require.Equal(t, 1, rec.Count())
	v, ok := rec.Get("Response")
	require.True(t, ok)
	assert.Equal(t, "Success", v)
	assert.False(t, rec.Has("Event"))
}

func TestParseRecordEmptyBuffer(t *testing.T) {
	rec := ParseRecord(nil)
	assert.Equal(t, 0, rec.Count())
}

func TestRecordToWireRoundTrip(t *testing.T) {
	raw := []byte("Action: Ping\r\nActionID: xyz\r\n")

	rec := ParseRecord(raw)
	wire := rec.ToWire()

	reparsed := ParseRecord(wire)
	assert.Equal(t, rec.Keys(), reparsed.Keys())
	for _, k := range rec.Keys() {
		want, _ := rec.Get(k)
		got, ok := reparsed.Get(k)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestNewRecordRestrictedSchema(t *testing.T) {
	rec := NewRecord("Channel", "Context")

	require.NoError(t, rec.Set("Channel", "SIP/1000"))
	err := rec.Set("Bogus", "value")
	assert.Error(t, err)

	assert.True(t, rec.Has("Context"))
	v, ok := rec.Get("Context")
	assert.False(t, ok)
	assert.Equal(t, "", v)
}

func TestNewRecordToWireIncludesUnsetAllowedKeys(t *testing.T) {
	rec := NewRecord("Channel", "Context")
	require.NoError(t, rec.Set("Channel", "SIP/1000"))

	wire := string(rec.ToWire())
	assert.Contains(t, wire, "Channel: SIP/1000\r\n")
	assert.Contains(t, wire, "Context: \r\n")
}

func TestParseRecordUnrestrictedSetAppendsOrder(t *testing.T) {
	rec := ParseRecord([]byte("Event: PeerStatus\r\n"))

	require.NoError(t, rec.Set("PeerStatus", "Registered"))
	assert.Equal(t, []string{"Event", "PeerStatus"}, rec.Keys())

	// Re-setting an existing key must not duplicate its position.
	require.NoError(t, rec.Set("Event", "PeerStatusChanged"))
	assert.Equal(t, []string{"Event", "PeerStatus"}, rec.Keys())
}
