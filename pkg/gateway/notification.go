package gateway

import "encoding/json"

// Notification channel names emitted by the authoritative machine.
const (
	ChannelWriteProgress    = "write-progress"
	ChannelHfProgress       = "hf-progress"
	ChannelFirmwareProgress = "firmware-progress"
	ChannelFirmwareComplete = "firmware-complete"
	ChannelFirmwareFailed   = "firmware-failed"
)

// Notification is one out-of-band message from the authoritative machine.
// Payload decoding is channel-specific and owned by the event bridge.
type Notification struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// WriteProgressPayload is the wire shape on the write-progress channel.
// Progress is reported as a [0,1] fraction by current firmware and as a
// percent by older builds; consumers normalize.
type WriteProgressPayload struct {
	Progress     float64 `json:"progress"`
	CurrentBlock *int    `json:"current_block,omitempty"`
	TotalBlocks  *int    `json:"total_blocks,omitempty"`
}

// HfProgressPayload is the wire shape on the hf-progress channel.
type HfProgressPayload struct {
	Phase       string `json:"phase"`
	KeysFound   int    `json:"keys_found"`
	KeysTotal   int    `json:"keys_total"`
	ElapsedSecs int    `json:"elapsed_secs"`
}

// FirmwarePayload is the wire shape on the firmware-progress and
// firmware-failed channels.
type FirmwarePayload struct {
	Phase   string `json:"phase"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}
