// Package bridge converts the authoritative machine's out-of-band
// notification stream into typed events for the orchestrator. Events update
// context only; the bridge never drives a state transition itself. The two
// firmware terminal notifications are surfaced as distinct event types so the
// orchestrator can apply its own transition rules to them.
package bridge

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/phosphor-rfid/phosphor/pkg/cards"
	"github.com/phosphor-rfid/phosphor/pkg/gateway"
)

// Event is a decoded notification. The concrete types below form a closed
// set.
type Event interface {
	isEvent()
}

// WriteProgress updates the write-progress context group. Percent is
// normalized to [0,100].
type WriteProgress struct {
	Percent      float64
	CurrentBlock *int
	TotalBlocks  *int
}

// HfProgress updates the key-recovery context group.
type HfProgress struct {
	Phase       cards.ProcessPhase
	KeysFound   int
	KeysTotal   int
	ElapsedSecs int
}

// FirmwareProgress updates flash percent/message.
type FirmwareProgress struct {
	Phase   string
	Percent int
	Message string
}

// FirmwareComplete reports a finished flash.
type FirmwareComplete struct{}

// FirmwareFailed reports a failed flash.
type FirmwareFailed struct {
	Message string
}

func (WriteProgress) isEvent()    {}
func (HfProgress) isEvent()       {}
func (FirmwareProgress) isEvent() {}
func (FirmwareComplete) isEvent() {}
func (FirmwareFailed) isEvent()   {}

// Bridge owns the subscription to the notification stream for one mount.
// All channels are acquired together at construction and released together
// by Close; the sink is only ever invoked from the bridge goroutine, so once
// Close returns no further delivery is possible.
type Bridge struct {
	sink func(Event)

	done      chan struct{}
	finished  chan struct{}
	closeOnce sync.Once
}

// New starts bridging notifications from src into sink.
func New(src <-chan gateway.Notification, sink func(Event)) *Bridge {
	b := &Bridge{
		sink:     sink,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go b.run(src)
	return b
}

// Close tears down all subscriptions and blocks until the delivery goroutine
// has exited.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
	<-b.finished
}

func (b *Bridge) run(src <-chan gateway.Notification) {
	defer close(b.finished)
	for {
		select {
		case <-b.done:
			return
		case n, ok := <-src:
			if !ok {
				return
			}
			ev, err := decode(n)
			if err != nil {
				slog.Warn("bridge_decode_failed", "channel", n.Channel, "error", err)
				continue
			}
			if ev == nil {
				slog.Warn("bridge_channel_unknown", "channel", n.Channel)
				continue
			}
			b.sink(ev)
		}
	}
}

// decode maps one notification onto its event type. Unknown channels return
// (nil, nil) and are skipped.
func decode(n gateway.Notification) (Event, error) {
	switch n.Channel {
	case gateway.ChannelWriteProgress:
		var p gateway.WriteProgressPayload
		if err := json.Unmarshal(n.Payload, &p); err != nil {
			return nil, err
		}
		return WriteProgress{
			Percent:      NormalizePercent(p.Progress),
			CurrentBlock: p.CurrentBlock,
			TotalBlocks:  p.TotalBlocks,
		}, nil
	case gateway.ChannelHfProgress:
		var p gateway.HfProgressPayload
		if err := json.Unmarshal(n.Payload, &p); err != nil {
			return nil, err
		}
		return HfProgress{
			Phase:       cards.ProcessPhase(p.Phase),
			KeysFound:   p.KeysFound,
			KeysTotal:   p.KeysTotal,
			ElapsedSecs: p.ElapsedSecs,
		}, nil
	case gateway.ChannelFirmwareProgress:
		var p gateway.FirmwarePayload
		if err := json.Unmarshal(n.Payload, &p); err != nil {
			return nil, err
		}
		return FirmwareProgress{Phase: p.Phase, Percent: clampPercent(p.Percent), Message: p.Message}, nil
	case gateway.ChannelFirmwareComplete:
		return FirmwareComplete{}, nil
	case gateway.ChannelFirmwareFailed:
		var p gateway.FirmwarePayload
		if err := json.Unmarshal(n.Payload, &p); err != nil {
			return nil, err
		}
		return FirmwareFailed{Message: p.Message}, nil
	}
	return nil, nil
}

// NormalizePercent converts a progress report to a [0,100] percent. Values
// at or below 1 are treated as [0,1] fractions, which is what current agent
// firmware emits; anything else is clamped.
func NormalizePercent(progress float64) float64 {
	if progress <= 1.0 {
		progress *= 100
	}
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
