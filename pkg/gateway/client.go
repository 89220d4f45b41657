package gateway

import (
	"context"

	"github.com/phosphor-rfid/phosphor/pkg/cards"
)

// WriteRequest parameterizes an LF write or verify against the blank on the
// reader. BlankType overrides the recommended blank when the caller chose a
// different compatible target.
type WriteRequest struct {
	Port      string            `json:"port"`
	CardType  cards.CardType    `json:"card_type"`
	UID       string            `json:"uid"`
	Decoded   map[string]string `json:"decoded,omitempty"`
	BlankType *cards.BlankType  `json:"blank_type,omitempty"`
}

// HfWriteRequest parameterizes a dump-based HF write or verify. The dump file
// itself lives on the authoritative side; only identity travels here.
type HfWriteRequest struct {
	UID       string          `json:"uid"`
	CardType  cards.CardType  `json:"card_type"`
	BlankType cards.BlankType `json:"blank_type"`
}

// FirmwareCheck is the result of a firmware version comparison between the
// device-side client and the device OS. It is not an Outcome: the
// authoritative machine does not model firmware states.
type FirmwareCheck struct {
	Matched         bool   `json:"matched"`
	ClientVersion   string `json:"client_version"`
	DeviceVersion   string `json:"device_version"`
	HardwareVariant string `json:"hardware_variant"`
}

// Client is the command boundary to the authoritative machine. A returned
// error is a transport failure (I/O, serialization, disconnection); domain
// failures arrive as the StepError outcome. Implementations must issue at
// most one in-flight operation at a time per wizard run; callers uphold this
// by invoking exactly one operation per orchestrator state.
type Client interface {
	DetectDevice(ctx context.Context) (Outcome, error)
	ScanCard(ctx context.Context) (Outcome, error)
	DetectBlank(ctx context.Context, port string) (Outcome, error)
	WriteClone(ctx context.Context, req WriteRequest) (Outcome, error)
	VerifyClone(ctx context.Context, req WriteRequest) (Outcome, error)

	HfAutopwn(ctx context.Context) (Outcome, error)
	HfDump(ctx context.Context) (Outcome, error)
	HfWriteClone(ctx context.Context, req HfWriteRequest) (Outcome, error)
	HfVerifyClone(ctx context.Context, req HfWriteRequest) (Outcome, error)
	CancelHfOperation(ctx context.Context) error

	CheckFirmwareVersion(ctx context.Context, port string) (FirmwareCheck, error)
	FlashFirmware(ctx context.Context, port, hardwareVariant string) error
	CancelFlash(ctx context.Context) error

	ResetWizard(ctx context.Context) error
	WizardAction(ctx context.Context, action Action) (Outcome, error)
}
