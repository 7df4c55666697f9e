package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindServiceByName_CaseInsensitive(t *testing.T) {
	state := SpaFixtureState()

	svc, ok := state.FindServiceByName("swedish massage")
	require.True(t, ok)
	assert.Equal(t, "s2", svc.ID)

	svc, ok = state.FindServiceByName("SWEDISH MASSAGE")
	require.True(t, ok)
	assert.Equal(t, "Swedish Massage", svc.Name)

	_, ok = state.FindServiceByName("Paraffin Wrap")
	assert.False(t, ok)
}

func TestFindServiceByName_SkipsInactive(t *testing.T) {
	state := SpaFixtureState()
	svc := state.Services["s2"]
	svc.IsActive = false
	state.Services["s2"] = svc

	_, ok := state.FindServiceByName("Swedish Massage")
	assert.False(t, ok)
}

func TestSenderKeyFor(t *testing.T) {
	profile := &TenantProfile{
		Phone:          "+15551234567",
		TelegramUserID: "100200300",
		WidgetToken:    "tok-1",
	}

	assert.Equal(t, "+15551234567", profile.SenderKeyFor(ChannelSMS))
	assert.Equal(t, "100200300", profile.SenderKeyFor(ChannelTelegram))
	assert.Equal(t, "tok-1", profile.SenderKeyFor(ChannelWebchat))
	assert.Empty(t, profile.SenderKeyFor(Channel("other")))
}

func TestChannelIsValid(t *testing.T) {
	assert.True(t, ChannelSMS.IsValid())
	assert.True(t, ChannelTelegram.IsValid())
	assert.True(t, ChannelWebchat.IsValid())
	assert.False(t, Channel("fax").IsValid())
}

func TestWeekdayIsValid(t *testing.T) {
	for _, d := range Weekdays {
		assert.True(t, d.IsValid(), "day: %s", d)
	}
	assert.False(t, Weekday("caturday").IsValid())
}

func TestSpaFixtureState(t *testing.T) {
	state := SpaFixtureState()

	assert.Len(t, state.Services, 3)
	assert.Len(t, state.Hours, 7)
	assert.Equal(t, 120.0, state.Services["s1"].Price)
	assert.Equal(t, "09:00", state.Hours["monday"].Open.String())
	assert.Equal(t, "20:00", state.Hours["monday"].Close.String())
	assert.NotEmpty(t, state.Policies.Cancellation)
	assert.Equal(t, 15, state.Inventory["i1"].Quantity)
}
