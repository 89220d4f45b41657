// Package gateway defines the request/response boundary to the authoritative
// device-side wizard machine. Every call returns either an Outcome — a closed
// tagged union mirroring the authoritative machine's state — or a transport
// error. Domain failures are not transport errors; they arrive as the
// StepError outcome with a fully-specified recovery classification.
package gateway

import (
	"fmt"

	"github.com/phosphor-rfid/phosphor/pkg/cards"
)

// Step is the tag of an authoritative outcome. Exactly one payload field of
// Outcome is populated per tag.
type Step string

const (
	StepIdle                 Step = "Idle"
	StepDetectingDevice      Step = "DetectingDevice"
	StepDeviceConnected      Step = "DeviceConnected"
	StepScanningCard         Step = "ScanningCard"
	StepCredentialIdentified Step = "CredentialIdentified"
	StepWaitingForBlank      Step = "WaitingForBlank"
	StepBlankDetected        Step = "BlankDetected"
	StepWriting              Step = "Writing"
	StepHfProcessing         Step = "HfProcessing"
	StepHfDumpReady          Step = "HfDumpReady"
	StepVerifying            Step = "Verifying"
	StepVerificationComplete Step = "VerificationComplete"
	StepComplete             Step = "Complete"
	StepError                Step = "Error"
)

// DevicePayload accompanies StepDeviceConnected.
type DevicePayload struct {
	Port     string `json:"port"`
	Model    string `json:"model"`
	Firmware string `json:"firmware"`
}

// CredentialPayload accompanies StepCredentialIdentified.
type CredentialPayload struct {
	Frequency        cards.Frequency `json:"frequency"`
	CardType         cards.CardType  `json:"card_type"`
	CardData         cards.CardData  `json:"card_data"`
	Cloneable        bool            `json:"cloneable"`
	RecommendedBlank cards.BlankType `json:"recommended_blank"`
}

// WaitingBlankPayload accompanies StepWaitingForBlank.
type WaitingBlankPayload struct {
	ExpectedBlank cards.BlankType `json:"expected_blank"`
}

// BlankPayload accompanies StepBlankDetected.
type BlankPayload struct {
	BlankType    cards.BlankType `json:"blank_type"`
	ReadyToWrite bool            `json:"ready_to_write"`
	ExistingData string          `json:"existing_data,omitempty"`
}

// WritingPayload accompanies StepWriting.
type WritingPayload struct {
	Progress     float64 `json:"progress"`
	CurrentBlock *int    `json:"current_block,omitempty"`
	TotalBlocks  *int    `json:"total_blocks,omitempty"`
}

// HfProcessingPayload accompanies StepHfProcessing.
type HfProcessingPayload struct {
	Phase       cards.ProcessPhase `json:"phase"`
	KeysFound   int                `json:"keys_found"`
	KeysTotal   int                `json:"keys_total"`
	ElapsedSecs int                `json:"elapsed_secs"`
}

// DumpPayload accompanies StepHfDumpReady.
type DumpPayload struct {
	DumpInfo string `json:"dump_info"`
}

// VerificationPayload accompanies StepVerificationComplete.
type VerificationPayload struct {
	Success          bool  `json:"success"`
	MismatchedBlocks []int `json:"mismatched_blocks"`
}

// CompletionPayload accompanies StepComplete.
type CompletionPayload struct {
	Source    cards.CardSummary `json:"source"`
	Target    cards.CardSummary `json:"target"`
	Timestamp string            `json:"timestamp"`
}

// ErrorPayload accompanies StepError. It is the authoritative machine's own
// recovery classification and is propagated verbatim.
type ErrorPayload struct {
	Message        string               `json:"message"`
	UserMessage    string               `json:"user_message"`
	Recoverable    bool                 `json:"recoverable"`
	RecoveryAction cards.RecoveryAction `json:"recovery_action,omitempty"`
}

// Outcome is the tagged union returned by every gateway call.
type Outcome struct {
	Step Step `json:"step"`

	Device       *DevicePayload       `json:"device,omitempty"`
	Credential   *CredentialPayload   `json:"credential,omitempty"`
	WaitingBlank *WaitingBlankPayload `json:"waiting_blank,omitempty"`
	Blank        *BlankPayload        `json:"blank,omitempty"`
	Writing      *WritingPayload      `json:"writing,omitempty"`
	HfProcessing *HfProcessingPayload `json:"hf_processing,omitempty"`
	Dump         *DumpPayload         `json:"dump,omitempty"`
	Verification *VerificationPayload `json:"verification,omitempty"`
	Completion   *CompletionPayload   `json:"completion,omitempty"`
	Err          *ErrorPayload        `json:"error,omitempty"`
}

// payload returns the populated payload pointer for validation, or nil for
// payload-free tags.
func (o Outcome) payloads() []any {
	var set []any
	for _, p := range []struct {
		present bool
		v       any
	}{
		{o.Device != nil, o.Device},
		{o.Credential != nil, o.Credential},
		{o.WaitingBlank != nil, o.WaitingBlank},
		{o.Blank != nil, o.Blank},
		{o.Writing != nil, o.Writing},
		{o.HfProcessing != nil, o.HfProcessing},
		{o.Dump != nil, o.Dump},
		{o.Verification != nil, o.Verification},
		{o.Completion != nil, o.Completion},
		{o.Err != nil, o.Err},
	} {
		if p.present {
			set = append(set, p.v)
		}
	}
	return set
}

// Validate checks that the tag is known and that exactly the payload matching
// the tag is populated.
func (o Outcome) Validate() error {
	set := o.payloads()
	if len(set) > 1 {
		return fmt.Errorf("outcome %s carries %d payloads", o.Step, len(set))
	}

	check := func(want any) error {
		if len(set) == 0 {
			return fmt.Errorf("outcome %s missing payload", o.Step)
		}
		if set[0] != want {
			return fmt.Errorf("outcome %s carries mismatched payload", o.Step)
		}
		return nil
	}

	switch o.Step {
	case StepIdle, StepDetectingDevice, StepScanningCard, StepVerifying:
		if len(set) != 0 {
			return fmt.Errorf("outcome %s must not carry a payload", o.Step)
		}
		return nil
	case StepDeviceConnected:
		return check(any(o.Device))
	case StepCredentialIdentified:
		return check(any(o.Credential))
	case StepWaitingForBlank:
		return check(any(o.WaitingBlank))
	case StepBlankDetected:
		return check(any(o.Blank))
	case StepWriting:
		return check(any(o.Writing))
	case StepHfProcessing:
		return check(any(o.HfProcessing))
	case StepHfDumpReady:
		return check(any(o.Dump))
	case StepVerificationComplete:
		return check(any(o.Verification))
	case StepComplete:
		return check(any(o.Completion))
	case StepError:
		return check(any(o.Err))
	}
	return fmt.Errorf("unknown outcome tag %q", o.Step)
}

// Constructors keep call sites exhaustive and payload placement correct.

func Idle() Outcome            { return Outcome{Step: StepIdle} }
func DetectingDevice() Outcome { return Outcome{Step: StepDetectingDevice} }
func ScanningCard() Outcome    { return Outcome{Step: StepScanningCard} }
func Verifying() Outcome       { return Outcome{Step: StepVerifying} }

func DeviceConnected(port, model, firmware string) Outcome {
	return Outcome{Step: StepDeviceConnected, Device: &DevicePayload{Port: port, Model: model, Firmware: firmware}}
}

func CredentialIdentified(p CredentialPayload) Outcome {
	return Outcome{Step: StepCredentialIdentified, Credential: &p}
}

func WaitingForBlank(expected cards.BlankType) Outcome {
	return Outcome{Step: StepWaitingForBlank, WaitingBlank: &WaitingBlankPayload{ExpectedBlank: expected}}
}

func BlankDetected(p BlankPayload) Outcome {
	return Outcome{Step: StepBlankDetected, Blank: &p}
}

func WritingStep(p WritingPayload) Outcome {
	return Outcome{Step: StepWriting, Writing: &p}
}

func HfProcessingStep(p HfProcessingPayload) Outcome {
	return Outcome{Step: StepHfProcessing, HfProcessing: &p}
}

func HfDumpReady(info string) Outcome {
	return Outcome{Step: StepHfDumpReady, Dump: &DumpPayload{DumpInfo: info}}
}

func VerificationComplete(success bool, mismatched []int) Outcome {
	return Outcome{Step: StepVerificationComplete, Verification: &VerificationPayload{Success: success, MismatchedBlocks: mismatched}}
}

func Complete(source, target cards.CardSummary, timestamp string) Outcome {
	return Outcome{Step: StepComplete, Completion: &CompletionPayload{Source: source, Target: target, Timestamp: timestamp}}
}

func DomainError(p ErrorPayload) Outcome {
	return Outcome{Step: StepError, Err: &p}
}
