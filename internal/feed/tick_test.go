package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTickNormalizesPaise(t *testing.T) {
	payload := []byte(`{"last_price":1026550,"open":1020000,"high":1030000,"low":1015000,"close":1018000,"volume":42,"timestamp":1735689600000}`)

	tick, err := ParseTick("NIFTY24DECFUT", payload)
	require.NoError(t, err)

	assert.Equal(t, "NIFTY24DECFUT", tick.Symbol)
	assert.Equal(t, 10265.5, tick.LTP)
	assert.Equal(t, 10200.0, tick.Open)
	assert.Equal(t, 10300.0, tick.High)
	assert.Equal(t, 10150.0, tick.Low)
	assert.Equal(t, 10180.0, tick.Close)
	assert.Equal(t, int64(42), tick.Volume)
	assert.Equal(t, time.UnixMilli(1735689600000), tick.Timestamp)
}

func TestParseTickRejectsNonPositivePrice(t *testing.T) {
	_, err := ParseTick("X", []byte(`{"last_price":0}`))
	assert.Error(t, err)

	_, err = ParseTick("X", []byte(`{"last_price":-100}`))
	assert.Error(t, err)
}

func TestParseTickRejectsMalformedPayload(t *testing.T) {
	_, err := ParseTick("X", []byte(`{not json`))
	assert.Error(t, err)
}

func TestParseTickDefaultsTimestampToReceiveTime(t *testing.T) {
	before := time.Now()
	tick, err := ParseTick("X", []byte(`{"last_price":10000}`))
	require.NoError(t, err)

	assert.Equal(t, 100.0, tick.LTP)
	assert.False(t, tick.Timestamp.Before(before))
	assert.False(t, tick.Timestamp.After(time.Now()))
}
