// Package wizard implements the orchestrator state machine for the clone
// workflow. The machine owns the client-visible state and context and stays
// synchronized with the authoritative device-side machine through the
// command gateway; asynchronous progress arrives through the event bridge.
//
// The machine is single-threaded: every intent, call result, bridged event,
// and timer fire goes through one mailbox consumed by one goroutine, so no
// two transitions are ever evaluated concurrently against the same context.
// Each state entry bumps a generation counter; results carrying a stale
// generation are discarded, so a superseded invocation can never commit.
package wizard

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phosphor-rfid/phosphor/pkg/bridge"
	"github.com/phosphor-rfid/phosphor/pkg/cards"
	"github.com/phosphor-rfid/phosphor/pkg/firmware"
	"github.com/phosphor-rfid/phosphor/pkg/gateway"
)

// Default dead-man timeouts. A flash that emits no terminal event within
// FlashTimeout, or a post-flash re-enumeration that never completes within
// RedetectTimeout, forces an error with a Reconnect classification.
const (
	DefaultFlashTimeout    = 5 * time.Minute
	DefaultRedetectTimeout = 15 * time.Second
)

// CloneRecorder persists a completed run. Saving is best-effort: failures
// are logged and never block the machine.
type CloneRecorder interface {
	RecordClone(source, target cards.CardSummary, port string, success bool, timestamp string) error
}

// ImageProvider supplies firmware images by hardware variant.
type ImageProvider interface {
	Available(variant string) bool
	Ensure(ctx context.Context, variant string) error
}

// Config tunes machine timeouts. Zero values select the defaults.
type Config struct {
	FlashTimeout    time.Duration
	RedetectTimeout time.Duration
}

// Snapshot is an immutable view of the machine published after every
// processed message.
type Snapshot struct {
	State   State
	Context Context
}

// message is the closed set of mailbox items.
type message interface {
	isMessage()
}

type intentMsg struct {
	intent Intent
}

// resultMsg carries the outcome of the single asynchronous operation owned
// by a state (or launched by a passive-state intent).
type resultMsg struct {
	gen     uint64
	source  Source
	outcome gateway.Outcome
	err     error
	// mustReset marks a failed control action that must succeed for the two
	// machines to stay consistent; the only safe reaction is a full reset.
	mustReset bool
}

type checkMsg struct {
	gen   uint64
	check gateway.FirmwareCheck
	err   error
}

type ackMsg struct {
	gen uint64
	err error
}

type timerMsg struct {
	gen  uint64
	what string
}

type eventMsg struct {
	event bridge.Event
}

func (intentMsg) isMessage() {}
func (resultMsg) isMessage() {}
func (checkMsg) isMessage()  {}
func (ackMsg) isMessage()    {}
func (timerMsg) isMessage()  {}
func (eventMsg) isMessage()  {}

// Machine is the orchestrator. Construct with NewMachine, then call Run on
// its own goroutine; Dispatch and HandleEvent are safe from any goroutine.
type Machine struct {
	client   gateway.Client
	recorder CloneRecorder
	images   ImageProvider
	cfg      Config

	mailbox chan message
	stopped chan struct{}

	// run-loop-owned; never touched outside the loop
	base     context.Context
	state    State
	context  Context
	gen      uint64
	timer    *time.Timer
	inflight bool
	// pendingAdvance is the must-succeed control action to issue before the
	// next waitingForBlank detection, set when an intent chose a blank type.
	pendingAdvance *gateway.Action

	snap     atomic.Pointer[Snapshot]
	updates  chan Snapshot
	stopOnce sync.Once
}

// NewMachine creates an idle machine. recorder and images may be nil; the
// corresponding features degrade to no-ops.
func NewMachine(client gateway.Client, recorder CloneRecorder, images ImageProvider, cfg Config) *Machine {
	if cfg.FlashTimeout <= 0 {
		cfg.FlashTimeout = DefaultFlashTimeout
	}
	if cfg.RedetectTimeout <= 0 {
		cfg.RedetectTimeout = DefaultRedetectTimeout
	}
	m := &Machine{
		client:   client,
		recorder: recorder,
		images:   images,
		cfg:      cfg,
		mailbox:  make(chan message, 128),
		stopped:  make(chan struct{}),
		state:    StateIdle,
		context:  newContext(),
		updates:  make(chan Snapshot, 16),
	}
	m.publish()
	return m
}

// Run processes the mailbox until ctx is canceled.
func (m *Machine) Run(ctx context.Context) {
	m.base = ctx
	defer m.stopOnce.Do(func() { close(m.stopped) })
	for {
		select {
		case <-ctx.Done():
			if m.timer != nil {
				m.timer.Stop()
			}
			return
		case msg := <-m.mailbox:
			m.step(msg)
			m.publish()
		}
	}
}

// Dispatch posts a user intent.
func (m *Machine) Dispatch(intent Intent) {
	m.post(intentMsg{intent: intent})
}

// HandleEvent is the event bridge sink.
func (m *Machine) HandleEvent(ev bridge.Event) {
	m.post(eventMsg{event: ev})
}

// Snapshot returns the most recently published state and context.
func (m *Machine) Snapshot() Snapshot {
	return *m.snap.Load()
}

// Updates delivers a snapshot after each processed message. Slow consumers
// miss intermediate snapshots, never the latest one for long.
func (m *Machine) Updates() <-chan Snapshot {
	return m.updates
}

func (m *Machine) post(msg message) {
	select {
	case m.mailbox <- msg:
	case <-m.stopped:
	}
}

func (m *Machine) publish() {
	s := Snapshot{State: m.state, Context: m.context.clone()}
	m.snap.Store(&s)
	for {
		select {
		case m.updates <- s:
			return
		default:
		}
		// Full: evict the oldest pending snapshot.
		select {
		case <-m.updates:
		default:
		}
	}
}

func (m *Machine) step(msg message) {
	switch v := msg.(type) {
	case intentMsg:
		m.applyIntent(v.intent)
	case resultMsg:
		if v.gen != m.gen {
			slog.Debug("wizard_stale_result", "state", m.state, "source", v.source)
			return
		}
		m.inflight = false
		m.applyResult(v)
	case checkMsg:
		if v.gen != m.gen {
			return
		}
		m.applyFirmwareCheck(v)
	case ackMsg:
		if v.gen != m.gen {
			return
		}
		if v.err != nil {
			slog.Error("wizard_flash_start_failed", "error", v.err)
			m.fail(transportFailure(SourceDetect, v.err))
		}
	case timerMsg:
		if v.gen != m.gen {
			return
		}
		slog.Error("wizard_deadman_timeout", "state", m.state, "what", v.what)
		m.fail(timeoutFailure(SourceDetect, v.what))
	case eventMsg:
		m.applyEvent(v.event)
	}
}

// fail stores the failure and enters the error state.
func (m *Machine) fail(f Failure) {
	m.context.Failure = &f
	m.enter(StateError)
}

// enter performs a transition: stops any dead-man timer, bumps the
// generation so stale results die, and runs the new state's entry action.
func (m *Machine) enter(s State) {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
	m.inflight = false
	prev := m.state
	m.state = s
	slog.Info("wizard_transition", "from", prev, "to", s)

	gen := m.gen
	switch s {
	case StateDetectingDevice, StateRedetectingDevice:
		if s == StateRedetectingDevice {
			m.armTimer(gen, m.cfg.RedetectTimeout, "device re-enumeration")
		}
		m.launch(gen, SourceDetect, func(ctx context.Context) (gateway.Outcome, error) {
			return m.client.DetectDevice(ctx)
		})
	case StateCheckingFirmware:
		m.launchFirmwareCheck(gen)
	case StateUpdatingFirmware:
		m.context.Firmware.Status = FirmwareUpdating
		m.context.Firmware.FlashPercent = 0
		m.context.Firmware.FlashMessage = ""
		m.armTimer(gen, m.cfg.FlashTimeout, "firmware flash")
		m.launchFlash(gen)
	case StateScanningCard:
		m.launch(gen, SourceScan, func(ctx context.Context) (gateway.Outcome, error) {
			return m.client.ScanCard(ctx)
		})
	case StateHfProcessing:
		m.context.HF = &HfGroup{Phase: cards.PhaseKeyCheck}
		m.launchHfProcess(gen)
	case StateWaitingForBlank:
		if m.pendingAdvance != nil {
			action := *m.pendingAdvance
			m.pendingAdvance = nil
			port := m.port()
			m.launchControl(gen, SourceBlank, action, func(ctx context.Context) (gateway.Outcome, error) {
				return m.client.DetectBlank(ctx, port)
			})
		} else {
			m.launchDetectBlank(gen)
		}
	case StateWriting:
		m.context.Write = WriteGroup{}
		m.launchWrite(gen)
	case StateVerifying:
		m.launchVerify(gen)
	}
}

func (m *Machine) armTimer(gen uint64, d time.Duration, what string) {
	m.timer = time.AfterFunc(d, func() {
		m.post(timerMsg{gen: gen, what: what})
	})
}

// launch runs one gateway call off-loop and posts its result tagged with the
// launching generation.
func (m *Machine) launch(gen uint64, source Source, call func(context.Context) (gateway.Outcome, error)) {
	m.inflight = true
	go func() {
		out, err := call(m.base)
		m.post(resultMsg{gen: gen, source: source, outcome: out, err: err})
	}()
}

// launchControl runs a must-succeed control action followed by an optional
// chained call. A transport rejection of the control action posts a
// must-reset result: continuing would let the two machines diverge.
func (m *Machine) launchControl(gen uint64, source Source, action gateway.Action, then func(context.Context) (gateway.Outcome, error)) {
	m.inflight = true
	go func() {
		out, err := m.client.WizardAction(m.base, action)
		if err != nil {
			m.post(resultMsg{gen: gen, source: source, err: err, mustReset: true})
			return
		}
		if then != nil {
			out, err = then(m.base)
		}
		m.post(resultMsg{gen: gen, source: source, outcome: out, err: err})
	}()
}

// bestEffort issues a control action whose failure is logged but never
// blocks local progress.
func (m *Machine) bestEffort(action gateway.Action) {
	go func() {
		if _, err := m.client.WizardAction(m.base, action); err != nil {
			slog.Warn("wizard_control_best_effort_failed", "action", action.Kind, "error", err)
		}
	}()
}

func (m *Machine) launchFirmwareCheck(gen uint64) {
	port := ""
	if m.context.Device != nil {
		port = m.context.Device.Port
	}
	m.inflight = true
	go func() {
		check, err := m.client.CheckFirmwareVersion(m.base, port)
		m.post(checkMsg{gen: gen, check: check, err: err})
	}()
}

func (m *Machine) launchFlash(gen uint64) {
	port := m.context.Device.Port
	variant := m.context.Firmware.HardwareVariant
	m.inflight = true
	go func() {
		// The port string came over the wire from detection; reject
		// anything that is not a serial device before it reaches the
		// flasher.
		if err := firmware.ValidatePort(port); err != nil {
			m.post(ackMsg{gen: gen, err: err})
			return
		}
		if m.images != nil {
			if err := m.images.Ensure(m.base, variant); err != nil {
				m.post(ackMsg{gen: gen, err: err})
				return
			}
		}
		err := m.client.FlashFirmware(m.base, port, variant)
		m.post(ackMsg{gen: gen, err: err})
	}()
}

func (m *Machine) launchHfProcess(gen uint64) {
	// MIFARE Classic needs key recovery; Ultralight-family cards dump
	// directly.
	cardType := m.context.Card.Type
	call := m.client.HfAutopwn
	if cardType == cards.MifareUltralight || cardType == cards.NTAG {
		call = m.client.HfDump
	}
	m.launch(gen, SourceScan, call)
}

func (m *Machine) launchDetectBlank(gen uint64) {
	port := ""
	if m.context.Device != nil {
		port = m.context.Device.Port
	}
	m.launch(gen, SourceBlank, func(ctx context.Context) (gateway.Outcome, error) {
		return m.client.DetectBlank(ctx, port)
	})
}

func (m *Machine) launchWrite(gen uint64) {
	card := *m.context.Card
	blank := m.context.Blank.Expected
	port := m.context.Device.Port
	if card.Frequency == cards.HF {
		req := gateway.HfWriteRequest{UID: card.Data.UID, CardType: card.Type, BlankType: blank}
		m.launch(gen, SourceWrite, func(ctx context.Context) (gateway.Outcome, error) {
			return m.client.HfWriteClone(ctx, req)
		})
		return
	}
	req := gateway.WriteRequest{
		Port:     port,
		CardType: card.Type,
		UID:      card.Data.UID,
		Decoded:  card.Data.Decoded,
	}
	if blank != card.Type.RecommendedBlank() {
		b := blank
		req.BlankType = &b
	}
	m.launch(gen, SourceWrite, func(ctx context.Context) (gateway.Outcome, error) {
		return m.client.WriteClone(ctx, req)
	})
}

func (m *Machine) launchVerify(gen uint64) {
	card := *m.context.Card
	blank := m.context.Blank.Expected
	port := m.context.Device.Port
	if card.Frequency == cards.HF {
		req := gateway.HfWriteRequest{UID: card.Data.UID, CardType: card.Type, BlankType: blank}
		m.launch(gen, SourceVerify, func(ctx context.Context) (gateway.Outcome, error) {
			return m.client.HfVerifyClone(ctx, req)
		})
		return
	}
	req := gateway.WriteRequest{
		Port:     port,
		CardType: card.Type,
		UID:      card.Data.UID,
		Decoded:  card.Data.Decoded,
	}
	if blank != card.Type.RecommendedBlank() {
		b := blank
		req.BlankType = &b
	}
	m.launch(gen, SourceVerify, func(ctx context.Context) (gateway.Outcome, error) {
		return m.client.VerifyClone(ctx, req)
	})
}
