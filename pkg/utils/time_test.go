package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want ClockTime
	}{
		{"9", 9 * 60},
		{"17", 17 * 60},
		{"9:30", 9*60 + 30},
		{"09:30", 9*60 + 30},
		{"9am", 9 * 60},
		{"5 pm", 17 * 60},
		{"9:30pm", 21*60 + 30},
		{"12am", 0},
		{"12pm", 12 * 60},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		require.NoError(t, err, "input: %q", tc.in)
		assert.Equal(t, tc.want, got, "input: %q", tc.in)
	}
}

func TestParseClock_Invalid(t *testing.T) {
	for _, in := range []string{"", "25", "9:75", "abc", "13pm:"} {
		_, err := ParseClock(in)
		assert.Error(t, err, "input: %q", in)
	}
}

func TestClockTime_String(t *testing.T) {
	assert.Equal(t, "09:05", ClockTime(9*60+5).String())
	assert.Equal(t, "17:30", ClockTime(17*60+30).String())
	assert.Equal(t, "00:00", ClockTime(0).String())
}

func TestClockTime_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(ClockTime(9*60 + 30))
	require.NoError(t, err)
	assert.Equal(t, `"09:30"`, string(data))

	var c ClockTime
	require.NoError(t, json.Unmarshal([]byte(`"17:45"`), &c))
	assert.Equal(t, ClockTime(17*60+45), c)
}
