package wizard

import (
	"log/slog"
	"time"

	"github.com/phosphor-rfid/phosphor/pkg/bridge"
	"github.com/phosphor-rfid/phosphor/pkg/cards"
	"github.com/phosphor-rfid/phosphor/pkg/errors"
	"github.com/phosphor-rfid/phosphor/pkg/gateway"
)

func (m *Machine) port() string {
	if m.context.Device == nil {
		return ""
	}
	return m.context.Device.Port
}

// applyIntent maps a user intent onto the current state. Intents that do not
// apply are dropped with a debug log; dispatching is idempotent, so clients
// may re-send freely.
func (m *Machine) applyIntent(intent Intent) {
	switch it := intent.(type) {
	case StartDetection:
		switch m.state {
		case StateIdle:
			m.enter(StateDetectingDevice)
		case StateComplete:
			m.context.resetAll()
			m.enter(StateDetectingDevice)
		default:
			m.ignore(intent)
		}

	case StartScan:
		if m.state != StateDeviceConnected || m.inflight {
			m.ignore(intent)
			return
		}
		m.context.softClear()
		m.enter(StateScanningCard)

	case ProceedToWrite:
		m.applyProceedToWrite(it)

	case StartWrite:
		if m.state != StateBlankDetected || m.context.Blank == nil || !m.context.Blank.ReadyToWrite {
			m.ignore(intent)
			return
		}
		m.enter(StateWriting)

	case Finish:
		m.applyFinish()

	case Recover:
		m.applyRecover()

	case Reset:
		go func() {
			if err := m.client.ResetWizard(m.base); err != nil {
				slog.Warn("wizard_remote_reset_failed", "error", err)
			}
		}()
		m.context.resetAll()
		m.enter(StateIdle)

	case SoftReset:
		m.bestEffort(gateway.Action{Kind: gateway.ActionSoftReset})
		m.context.softClear()
		if m.context.Device != nil {
			m.enter(StateDeviceConnected)
		} else {
			m.enter(StateIdle)
		}

	case BackToScan:
		if m.context.Device == nil {
			m.ignore(intent)
			return
		}
		m.bestEffort(gateway.Action{Kind: gateway.ActionBackToScan})
		m.context.softClear()
		m.enter(StateScanningCard)

	case Disconnect:
		m.bestEffort(gateway.Action{Kind: gateway.ActionDisconnect})
		m.context.resetAll()
		m.enter(StateIdle)

	case ReDetectBlank:
		if m.state != StateBlankDetected || m.context.Blank == nil {
			m.ignore(intent)
			return
		}
		m.context.Blank.Detected = nil
		m.context.Blank.ReadyToWrite = false
		m.context.Blank.ExistingData = ""
		m.bestEffort(gateway.Action{Kind: gateway.ActionReDetectBlank})
		m.enter(StateWaitingForBlank)

	case LoadSavedCard:
		if m.state != StateDeviceConnected || m.inflight {
			m.ignore(intent)
			return
		}
		m.context.softClear()
		m.launchControl(m.gen, SourceScan, gateway.LoadSavedCard(it.Card), nil)

	case StartFirmwareUpdate:
		if m.state != StateFirmwareOutdated || !m.context.Firmware.BundledImageExists {
			m.ignore(intent)
			return
		}
		m.enter(StateUpdatingFirmware)

	case SkipFirmwareUpdate:
		if m.state != StateFirmwareOutdated {
			m.ignore(intent)
			return
		}
		m.enter(StateDeviceConnected)

	case CancelFirmwareUpdate:
		if m.state != StateUpdatingFirmware {
			m.ignore(intent)
			return
		}
		go func() {
			if err := m.client.CancelFlash(m.base); err != nil {
				slog.Warn("wizard_cancel_flash_failed", "error", err)
			}
		}()
		m.context.Firmware.Status = FirmwareMismatched
		m.context.Firmware.FlashPercent = 0
		m.context.Firmware.FlashMessage = ""
		m.enter(StateDeviceConnected)

	case CancelHfProcess:
		if m.state != StateHfProcessing {
			m.ignore(intent)
			return
		}
		go func() {
			if err := m.client.CancelHfOperation(m.base); err != nil {
				slog.Warn("wizard_cancel_hf_failed", "error", err)
			}
		}()
		m.context.HF = nil
		m.enter(StateCredentialIdentified)
	}
}

func (m *Machine) ignore(intent Intent) {
	slog.Debug("wizard_intent_ignored", "state", m.state, "intent", intentName(intent))
}

func intentName(intent Intent) string {
	switch intent.(type) {
	case StartDetection:
		return "start_detection"
	case StartScan:
		return "start_scan"
	case ProceedToWrite:
		return "proceed_to_write"
	case StartWrite:
		return "start_write"
	case Finish:
		return "finish"
	case Recover:
		return "recover"
	case Reset:
		return "reset"
	case SoftReset:
		return "soft_reset"
	case BackToScan:
		return "back_to_scan"
	case Disconnect:
		return "disconnect"
	case ReDetectBlank:
		return "re_detect_blank"
	case LoadSavedCard:
		return "load_saved_card"
	case StartFirmwareUpdate:
		return "start_firmware_update"
	case SkipFirmwareUpdate:
		return "skip_firmware_update"
	case CancelFirmwareUpdate:
		return "cancel_firmware_update"
	case CancelHfProcess:
		return "cancel_hf_process"
	}
	return "unknown"
}

// applyProceedToWrite routes an identified credential toward the write. HF
// credentials first run key recovery; LF credentials and finished HF dumps
// advance the authoritative machine and start blank detection.
func (m *Machine) applyProceedToWrite(it ProceedToWrite) {
	card := m.context.Card
	if card == nil || !card.Cloneable {
		m.ignore(it)
		return
	}
	switch m.state {
	case StateCredentialIdentified:
		if card.Frequency == cards.HF {
			m.enter(StateHfProcessing)
			return
		}
		m.advanceToBlank(it.BlankType)
	case StateDumpReady:
		m.advanceToBlank(it.BlankType)
	default:
		m.ignore(it)
	}
}

// advanceToBlank records the expected blank, queues the must-succeed
// proceed-to-write action, and enters waitingForBlank, whose entry action
// issues action and detection in order.
func (m *Machine) advanceToBlank(chosen cards.BlankType) {
	expected := chosen
	if expected == "" {
		expected = m.context.Card.RecommendedBlank
	}
	if expected == cards.EM4305 && !m.context.Card.Type.SupportsEM4305() {
		expected = m.context.Card.RecommendedBlank
	}
	m.context.Blank = &BlankGroup{Expected: expected}
	action := gateway.ProceedToWrite(expected)
	m.pendingAdvance = &action
	m.enter(StateWaitingForBlank)
}

// applyFinish commits a successfully verified run on both sides.
func (m *Machine) applyFinish() {
	if m.state != StateVerificationComplete || m.inflight {
		m.ignore(Finish{})
		return
	}
	if m.context.Verify.Success == nil || !*m.context.Verify.Success {
		m.ignore(Finish{})
		return
	}
	source, target := m.summaries()
	m.launchControl(m.gen, SourceVerify, gateway.MarkComplete(source, target), nil)
}

func (m *Machine) summaries() (source, target cards.CardSummary) {
	card := m.context.Card
	source = cards.CardSummary{
		CardType:    string(card.Type),
		UID:         card.Data.UID,
		DisplayName: card.Type.DisplayName(),
	}
	blank := card.RecommendedBlank
	if m.context.Blank != nil {
		blank = m.context.Blank.Expected
		if m.context.Blank.Detected != nil {
			blank = *m.context.Blank.Detected
		}
	}
	target = cards.CardSummary{
		CardType:    string(blank),
		UID:         card.Data.UID,
		DisplayName: blank.DisplayName(),
	}
	return source, target
}

// applyRecover leaves the error state along the route keyed by the stored
// failure's recovery action and source. Non-recoverable failures only leave
// through Reset.
func (m *Machine) applyRecover() {
	if m.state != StateError || m.context.Failure == nil {
		m.ignore(Recover{})
		return
	}
	f := *m.context.Failure
	if !f.Recoverable {
		m.ignore(Recover{})
		return
	}
	switch f.Recovery {
	case cards.RecoverReconnect:
		m.context.resetAll()
		m.enter(StateDetectingDevice)
	case cards.RecoverRetry:
		m.context.Failure = nil
		switch f.Source {
		case SourceWrite, SourceBlank:
			if m.context.Blank == nil {
				m.context.Blank = &BlankGroup{Expected: m.context.Card.RecommendedBlank}
			}
			m.context.Blank.Detected = nil
			m.context.Blank.ReadyToWrite = false
			m.context.Blank.ExistingData = ""
			m.context.Write = WriteGroup{}
			m.context.Verify = VerifyGroup{}
			m.enter(StateWaitingForBlank)
		default:
			if m.context.Device == nil {
				m.enter(StateDetectingDevice)
				return
			}
			m.context.softClear()
			m.enter(StateScanningCard)
		}
	default:
		// GoBack and Manual leave no automatic route; the user chooses
		// Reset, SoftReset, or BackToScan explicitly.
		m.ignore(Recover{})
	}
}

// applyResult commits the outcome of the state's asynchronous operation.
// Stale generations were already discarded by the caller.
func (m *Machine) applyResult(v resultMsg) {
	if v.mustReset {
		slog.Error("wizard_control_action_lost", "state", m.state, "error", v.err)
		m.fullReset()
		return
	}
	if v.err != nil {
		slog.Error("wizard_call_failed", "state", m.state, "source", v.source, "error", v.err)
		m.fail(transportFailure(v.source, v.err))
		return
	}
	out := v.outcome
	if out.Step == gateway.StepError {
		slog.Warn("wizard_domain_error", "state", m.state, "message", out.Err.Message)
		m.fail(domainFailure(v.source, out.Err))
		return
	}

	switch m.state {
	case StateDetectingDevice:
		if out.Step != gateway.StepDeviceConnected {
			break
		}
		m.context.Device = &DeviceGroup{
			Port:     out.Device.Port,
			Model:    out.Device.Model,
			Firmware: out.Device.Firmware,
		}
		m.enter(StateCheckingFirmware)
		return

	case StateRedetectingDevice:
		if out.Step != gateway.StepDeviceConnected {
			break
		}
		m.context.Device = &DeviceGroup{
			Port:     out.Device.Port,
			Model:    out.Device.Model,
			Firmware: out.Device.Firmware,
		}
		m.context.Firmware.Status = FirmwareUpdated
		m.context.Firmware.DeviceVersion = out.Device.Firmware
		m.enter(StateDeviceConnected)
		return

	case StateDeviceConnected, StateScanningCard:
		if out.Step != gateway.StepCredentialIdentified {
			break
		}
		m.setCredential(out.Credential)
		m.enter(StateCredentialIdentified)
		return

	case StateHfProcessing:
		if out.Step != gateway.StepHfDumpReady {
			break
		}
		if m.context.HF == nil {
			m.context.HF = &HfGroup{}
		}
		m.context.HF.Phase = cards.PhaseDumping
		m.context.HF.DumpInfo = out.Dump.DumpInfo
		m.enter(StateDumpReady)
		return

	case StateWaitingForBlank:
		if out.Step != gateway.StepBlankDetected {
			break
		}
		detected := out.Blank.BlankType
		m.context.Blank.Detected = &detected
		m.context.Blank.ExistingData = out.Blank.ExistingData
		m.context.Blank.ReadyToWrite = out.Blank.ReadyToWrite &&
			cards.Compatible(m.context.Blank.Expected, detected)
		m.enter(StateBlankDetected)
		return

	case StateWriting:
		if out.Step != gateway.StepVerifying {
			break
		}
		m.context.Write.Percent = 100
		m.enter(StateVerifying)
		return

	case StateVerifying:
		if out.Step != gateway.StepVerificationComplete {
			break
		}
		success := out.Verification.Success
		m.context.Verify.Success = &success
		m.context.Verify.MismatchedBlocks = out.Verification.MismatchedBlocks
		m.enter(StateVerificationComplete)
		return

	case StateVerificationComplete:
		if out.Step != gateway.StepComplete {
			break
		}
		m.commitCompletion(out.Completion)
		m.enter(StateComplete)
		return
	}

	slog.Warn("wizard_unexpected_outcome", "state", m.state, "step", out.Step)
	m.fail(unexpectedOutcome(v.source, out.Step))
}

func (m *Machine) setCredential(p *gateway.CredentialPayload) {
	m.context.Card = &CardGroup{
		Frequency:        p.Frequency,
		Type:             p.CardType,
		Data:             p.CardData,
		Cloneable:        p.Cloneable,
		RecommendedBlank: p.RecommendedBlank,
	}
	if m.context.Card.RecommendedBlank == "" {
		m.context.Card.RecommendedBlank = p.CardType.RecommendedBlank()
	}
	m.context.Blank = nil
	m.context.HF = nil
	m.context.Write = WriteGroup{}
	m.context.Verify = VerifyGroup{}
}

// commitCompletion stamps the run and records it. Recording is best-effort.
func (m *Machine) commitCompletion(p *gateway.CompletionPayload) {
	at, err := time.Parse(time.RFC3339, p.Timestamp)
	if err != nil {
		at = time.Now().UTC()
	}
	m.context.CompletedAt = &at
	if m.recorder == nil {
		return
	}
	source, target, port := p.Source, p.Target, m.port()
	stamp := at.Format(time.RFC3339)
	go func() {
		if err := m.recorder.RecordClone(source, target, port, true, stamp); err != nil {
			slog.Warn("wizard_record_clone_failed", "error", err)
		}
	}()
}

// applyFirmwareCheck handles the checkingFirmware probe. A failed probe is
// not an error: firmware status demotes to unknown and the workflow
// continues.
func (m *Machine) applyFirmwareCheck(v checkMsg) {
	if v.err != nil {
		slog.Warn("wizard_firmware_check_failed", "error", errors.ScrubPaths(v.err.Error()))
		m.context.Firmware.Status = FirmwareUnknown
		m.enter(StateDeviceConnected)
		return
	}
	m.context.Firmware.ClientVersion = v.check.ClientVersion
	m.context.Firmware.DeviceVersion = v.check.DeviceVersion
	m.context.Firmware.HardwareVariant = v.check.HardwareVariant
	if v.check.Matched {
		m.context.Firmware.Status = FirmwareMatched
		m.enter(StateDeviceConnected)
		return
	}
	m.context.Firmware.Status = FirmwareMismatched
	m.context.Firmware.BundledImageExists = m.images != nil && m.images.Available(v.check.HardwareVariant)
	m.enter(StateFirmwareOutdated)
}

// applyEvent folds a bridged notification into context. Progress events
// never transition; only the two firmware terminal events do, and only out
// of updatingFirmware.
func (m *Machine) applyEvent(ev bridge.Event) {
	switch e := ev.(type) {
	case bridge.WriteProgress:
		if m.state != StateWriting {
			return
		}
		m.context.Write.Percent = e.Percent
		if e.CurrentBlock != nil && e.TotalBlocks != nil {
			cur, total := *e.CurrentBlock, *e.TotalBlocks
			m.context.Write.CurrentBlock = &cur
			m.context.Write.TotalBlocks = &total
		}

	case bridge.HfProgress:
		if m.state != StateHfProcessing || m.context.HF == nil {
			return
		}
		m.context.HF.Phase = e.Phase
		m.context.HF.KeysFound = e.KeysFound
		m.context.HF.KeysTotal = e.KeysTotal
		m.context.HF.ElapsedSecs = e.ElapsedSecs

	case bridge.FirmwareProgress:
		if m.state != StateUpdatingFirmware {
			return
		}
		m.context.Firmware.FlashPercent = e.Percent
		m.context.Firmware.FlashMessage = e.Message

	case bridge.FirmwareComplete:
		if m.state != StateUpdatingFirmware {
			slog.Debug("wizard_flash_complete_ignored", "state", m.state)
			return
		}
		m.context.Firmware.FlashPercent = 100
		m.enter(StateRedetectingDevice)

	case bridge.FirmwareFailed:
		if m.state != StateUpdatingFirmware {
			slog.Debug("wizard_flash_failed_ignored", "state", m.state)
			return
		}
		m.context.Firmware.Status = FirmwareMismatched
		m.fail(Failure{
			Message:     errors.ScrubPaths(e.Message),
			UserMessage: "Firmware update failed. Reconnect the device and try again.",
			Recoverable: true,
			Recovery:    cards.RecoverReconnect,
			Source:      SourceDetect,
		})
	}
}

// fullReset is the reaction to a lost must-succeed control action: both
// machines reset so they re-converge on idle.
func (m *Machine) fullReset() {
	go func() {
		if err := m.client.ResetWizard(m.base); err != nil {
			slog.Warn("wizard_remote_reset_failed", "error", err)
		}
	}()
	m.context.resetAll()
	m.pendingAdvance = nil
	m.enter(StateIdle)
}
