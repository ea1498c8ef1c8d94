package alert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"futures-account-monitor/internal/card"
)

func TestNewManagerRegistersChannels(t *testing.T) {
	ch := NewMockChannel("test")
	mgr := NewManager([]Channel{ch}, 5*time.Minute)

	require.NotNil(t, mgr)
	require.Equal(t, []string{"test"}, mgr.Channels())
}

func TestSendDeliversToAllChannels(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, 0)

	c := card.Card{Title: "test card", Color: card.ColorRed, Fields: []card.Field{{Label: "k", Value: "v"}}}
	err := mgr.Send(context.Background(), c)

	require.NoError(t, err)
	require.Equal(t, 1, mock.Count())
	require.Equal(t, "test card", mock.Cards()[0].Title)
	require.Equal(t, "v", mock.Cards()[0].Fields[0].Value)
}

func TestSendThrottlesRepeatByColorAndTitle(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Hour)

	c := card.Card{Title: "repeat", Color: card.ColorOrange}
	require.NoError(t, mgr.Send(context.Background(), c))
	require.NoError(t, mgr.Send(context.Background(), c))

	require.Equal(t, 1, mock.Count(), "second send within the throttle window must be dropped")
}

func TestSendReturnsErrorOnlyWhenAllChannelsFail(t *testing.T) {
	failing := NewMockChannel("failing")
	failing.SetShouldError(true)
	ok := NewMockChannel("ok")

	mgr := NewManager([]Channel{failing, ok}, 0)
	err := mgr.Send(context.Background(), card.Card{Title: "x"})

	require.NoError(t, err, "at least one channel succeeded, so Send must not report failure")
	require.Equal(t, 1, ok.Count())
}

func TestSendReturnsErrorWhenEveryChannelFails(t *testing.T) {
	failing := NewMockChannel("failing")
	failing.SetShouldError(true)

	mgr := NewManager([]Channel{failing}, 0)
	err := mgr.Send(context.Background(), card.Card{Title: "x"})

	require.Error(t, err)
}

func TestAddAndRemoveChannel(t *testing.T) {
	mgr := NewManager(nil, 0)
	mgr.AddChannel(NewMockChannel("a"))
	mgr.AddChannel(NewMockChannel("b"))
	require.ElementsMatch(t, []string{"a", "b"}, mgr.Channels())

	mgr.RemoveChannel("a")
	require.Equal(t, []string{"b"}, mgr.Channels())
}

func TestResetThrottleClearsState(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Hour)

	c := card.Card{Title: "repeat", Color: card.ColorOrange}
	require.NoError(t, mgr.Send(context.Background(), c))
	mgr.ResetThrottle()
	require.NoError(t, mgr.Send(context.Background(), c))

	require.Equal(t, 2, mock.Count())
}
