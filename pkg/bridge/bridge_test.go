package bridge

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phosphor-rfid/phosphor/pkg/cards"
	"github.com/phosphor-rfid/phosphor/pkg/gateway"
)

type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventSink) sink(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func notification(t *testing.T, channel string, payload any) gateway.Notification {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return gateway.Notification{Channel: channel, Payload: raw}
}

func TestBridgeDecodesChannels(t *testing.T) {
	src := make(chan gateway.Notification, 8)
	sink := &eventSink{}
	b := New(src, sink.sink)
	defer b.Close()

	cur, total := 3, 7
	src <- notification(t, gateway.ChannelWriteProgress, gateway.WriteProgressPayload{
		Progress: 0.42, CurrentBlock: &cur, TotalBlocks: &total,
	})
	src <- notification(t, gateway.ChannelHfProgress, gateway.HfProgressPayload{
		Phase: "Hardnested", KeysFound: 14, KeysTotal: 32, ElapsedSecs: 95,
	})
	src <- notification(t, gateway.ChannelFirmwareProgress, gateway.FirmwarePayload{
		Phase: "flashing", Percent: 60, Message: "writing fullimage",
	})
	src <- gateway.Notification{Channel: gateway.ChannelFirmwareComplete}
	src <- notification(t, gateway.ChannelFirmwareFailed, gateway.FirmwarePayload{Message: "flash aborted"})

	require.Eventually(t, func() bool { return len(sink.all()) == 5 }, time.Second, 2*time.Millisecond)
	events := sink.all()

	wp, ok := events[0].(WriteProgress)
	require.True(t, ok)
	assert.InDelta(t, 42.0, wp.Percent, 0.001)
	require.NotNil(t, wp.CurrentBlock)
	assert.Equal(t, 3, *wp.CurrentBlock)
	assert.Equal(t, 7, *wp.TotalBlocks)

	hp, ok := events[1].(HfProgress)
	require.True(t, ok)
	assert.Equal(t, cards.PhaseHardnested, hp.Phase)
	assert.Equal(t, 14, hp.KeysFound)

	fp, ok := events[2].(FirmwareProgress)
	require.True(t, ok)
	assert.Equal(t, 60, fp.Percent)
	assert.Equal(t, "writing fullimage", fp.Message)

	_, ok = events[3].(FirmwareComplete)
	require.True(t, ok)

	ff, ok := events[4].(FirmwareFailed)
	require.True(t, ok)
	assert.Equal(t, "flash aborted", ff.Message)
}

func TestBridgeSkipsMalformedAndUnknown(t *testing.T) {
	src := make(chan gateway.Notification, 4)
	sink := &eventSink{}
	b := New(src, sink.sink)
	defer b.Close()

	src <- gateway.Notification{Channel: gateway.ChannelWriteProgress, Payload: json.RawMessage(`{broken`)}
	src <- gateway.Notification{Channel: "unknown-channel", Payload: json.RawMessage(`{}`)}
	src <- notification(t, gateway.ChannelWriteProgress, gateway.WriteProgressPayload{Progress: 1.0})

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 2*time.Millisecond)
	wp, ok := sink.all()[0].(WriteProgress)
	require.True(t, ok)
	assert.InDelta(t, 100.0, wp.Percent, 0.001)
}

func TestBridgeNoDeliveryAfterClose(t *testing.T) {
	src := make(chan gateway.Notification, 4)
	sink := &eventSink{}
	b := New(src, sink.sink)
	b.Close()

	src <- notification(t, gateway.ChannelWriteProgress, gateway.WriteProgressPayload{Progress: 0.5})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.all())

	// Close is idempotent.
	b.Close()
}

func TestBridgeStopsOnSourceClose(t *testing.T) {
	src := make(chan gateway.Notification)
	b := New(src, func(Event) {})
	close(src)

	done := make(chan struct{})
	go func() {
		b.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after source closed")
	}
}

func TestNormalizePercent(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"fraction", 0.37, 37},
		{"fraction_one", 1.0, 100},
		{"zero", 0, 0},
		{"percent", 73, 73},
		{"over", 140, 100},
		{"negative", -0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NormalizePercent(tt.in), 0.001)
		})
	}
}
