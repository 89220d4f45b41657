package wizard

import (
	"github.com/phosphor-rfid/phosphor/pkg/cards"
	"github.com/phosphor-rfid/phosphor/pkg/gateway"
)

// Intent is a user-initiated request posted to the machine's mailbox.
// Intents that do not apply to the current state are no-ops: an in-flight
// asynchronous operation is never duplicated, and guards (ready-to-write,
// verify-success) silently reject illegal requests.
type Intent interface {
	isIntent()
}

// StartDetection begins device detection from idle or complete.
type StartDetection struct{}

// StartScan begins credential identification from deviceConnected.
type StartScan struct{}

// ProceedToWrite advances an identified credential toward writing, carrying
// the caller-chosen expected blank type. HF credential types route through
// key recovery first.
type ProceedToWrite struct {
	BlankType cards.BlankType
}

// StartWrite begins the write from blankDetected. No-op unless the detected
// blank is ready to write.
type StartWrite struct{}

// Finish marks a successfully verified run complete. No-op unless
// verification succeeded.
type Finish struct{}

// Recover applies the error state's keyed recovery transition.
type Recover struct{}

// Reset returns both sides to idle and clears all context.
type Reset struct{}

// SoftReset clears the current run but keeps the connected device.
type SoftReset struct{}

// BackToScan clears the current run and immediately rescans.
type BackToScan struct{}

// Disconnect releases the device and returns to idle.
type Disconnect struct{}

// ReDetectBlank discards the detected blank and waits for a new one.
type ReDetectBlank struct{}

// LoadSavedCard restores a previously saved credential from deviceConnected.
type LoadSavedCard struct {
	Card gateway.SavedCardPayload
}

// StartFirmwareUpdate begins flashing from firmwareOutdated.
type StartFirmwareUpdate struct{}

// SkipFirmwareUpdate continues with mismatched firmware.
type SkipFirmwareUpdate struct{}

// CancelFirmwareUpdate aborts an in-progress flash. The abort request to the
// agent is best-effort; the machine always returns to deviceConnected.
type CancelFirmwareUpdate struct{}

// CancelHfProcess aborts key recovery. Best-effort remotely; the machine
// always returns to credentialIdentified.
type CancelHfProcess struct{}

func (StartDetection) isIntent()       {}
func (StartScan) isIntent()            {}
func (ProceedToWrite) isIntent()       {}
func (StartWrite) isIntent()           {}
func (Finish) isIntent()               {}
func (Recover) isIntent()              {}
func (Reset) isIntent()                {}
func (SoftReset) isIntent()            {}
func (BackToScan) isIntent()           {}
func (Disconnect) isIntent()           {}
func (ReDetectBlank) isIntent()        {}
func (LoadSavedCard) isIntent()        {}
func (StartFirmwareUpdate) isIntent()  {}
func (SkipFirmwareUpdate) isIntent()   {}
func (CancelFirmwareUpdate) isIntent() {}
func (CancelHfProcess) isIntent()      {}
