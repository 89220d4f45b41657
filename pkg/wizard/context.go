package wizard

import (
	"time"

	"github.com/phosphor-rfid/phosphor/pkg/cards"
)

// FirmwareStatus tracks the firmware reconciliation sub-flow. Transitions
// run unknown -> matched|mismatched -> updating -> updated.
type FirmwareStatus string

const (
	FirmwareUnknown    FirmwareStatus = "unknown"
	FirmwareMatched    FirmwareStatus = "matched"
	FirmwareMismatched FirmwareStatus = "mismatched"
	FirmwareUpdating   FirmwareStatus = "updating"
	FirmwareUpdated    FirmwareStatus = "updated"
)

// DeviceGroup holds detected reader identity. All three fields are set
// together on successful detection; the group is nil otherwise.
type DeviceGroup struct {
	Port     string
	Model    string
	Firmware string
}

// CardGroup holds the identified source credential.
type CardGroup struct {
	Frequency        cards.Frequency
	Type             cards.CardType
	Data             cards.CardData
	Cloneable        bool
	RecommendedBlank cards.BlankType
}

// BlankGroup holds the write target. ReadyToWrite is true only when the
// detected blank is compatible with the expected blank.
type BlankGroup struct {
	Expected     cards.BlankType
	Detected     *cards.BlankType
	ReadyToWrite bool
	ExistingData string
}

// WriteGroup tracks write progress. CurrentBlock and TotalBlocks are both
// nil or both non-nil.
type WriteGroup struct {
	Percent      float64
	CurrentBlock *int
	TotalBlocks  *int
}

// VerifyGroup holds the verification outcome. Success is tri-state; the
// mismatch list is non-empty only when Success points at false.
type VerifyGroup struct {
	Success          *bool
	MismatchedBlocks []int
}

// FirmwareGroup tracks the firmware reconciliation sub-flow.
type FirmwareGroup struct {
	Status             FirmwareStatus
	ClientVersion      string
	DeviceVersion      string
	HardwareVariant    string
	BundledImageExists bool
	FlashPercent       int
	FlashMessage       string
}

// HfGroup tracks HF key recovery.
type HfGroup struct {
	Phase       cards.ProcessPhase
	KeysFound   int
	KeysTotal   int
	ElapsedSecs int
	DumpInfo    string
}

// Context is the single mutable record owned by the orchestrator. It is
// mutated exclusively by the run loop.
type Context struct {
	Device      *DeviceGroup
	Card        *CardGroup
	Blank       *BlankGroup
	Write       WriteGroup
	Verify      VerifyGroup
	CompletedAt *time.Time
	Failure     *Failure
	Firmware    FirmwareGroup
	HF          *HfGroup
}

func newContext() Context {
	return Context{Firmware: FirmwareGroup{Status: FirmwareUnknown}}
}

// resetAll returns the context to its empty initial value.
func (c *Context) resetAll() {
	*c = newContext()
}

// softClear keeps the device and firmware groups and clears everything
// accumulated for the current run: credential, blank, progress,
// verification, completion, error, and key-recovery state.
func (c *Context) softClear() {
	c.Card = nil
	c.Blank = nil
	c.Write = WriteGroup{}
	c.Verify = VerifyGroup{}
	c.CompletedAt = nil
	c.Failure = nil
	c.HF = nil
}

// clone copies the context deeply enough that snapshot readers never share
// mutable memory with the run loop.
func (c Context) clone() Context {
	out := c
	if c.Device != nil {
		d := *c.Device
		out.Device = &d
	}
	if c.Card != nil {
		card := *c.Card
		card.Data.Decoded = copyMap(c.Card.Data.Decoded)
		out.Card = &card
	}
	if c.Blank != nil {
		b := *c.Blank
		if c.Blank.Detected != nil {
			det := *c.Blank.Detected
			b.Detected = &det
		}
		out.Blank = &b
	}
	out.Write.CurrentBlock = copyInt(c.Write.CurrentBlock)
	out.Write.TotalBlocks = copyInt(c.Write.TotalBlocks)
	if c.Verify.Success != nil {
		s := *c.Verify.Success
		out.Verify.Success = &s
	}
	if len(c.Verify.MismatchedBlocks) > 0 {
		out.Verify.MismatchedBlocks = append([]int(nil), c.Verify.MismatchedBlocks...)
	}
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		out.CompletedAt = &t
	}
	if c.Failure != nil {
		f := *c.Failure
		out.Failure = &f
	}
	if c.HF != nil {
		hf := *c.HF
		out.HF = &hf
	}
	return out
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
