package wizard

import (
	"fmt"

	"github.com/phosphor-rfid/phosphor/pkg/cards"
	"github.com/phosphor-rfid/phosphor/pkg/errors"
	"github.com/phosphor-rfid/phosphor/pkg/gateway"
)

// Failure is the unified error record stored in context while the machine is
// in the error state. Three classes feed it: transport failures (the gateway
// call rejected), domain errors (the authoritative machine returned the
// error outcome, propagated verbatim), and unexpected-but-not-erroneous
// outcomes (a tag the current state did not anticipate).
type Failure struct {
	Message     string
	UserMessage string
	Recoverable bool
	Recovery    cards.RecoveryAction
	Source      Source
}

// user-facing defaults per failure source, used when synthesizing a failure
// from a bare transport error.
func transportUserMessage(source Source) string {
	switch source {
	case SourceDetect:
		return "No reader found. Check your USB connection and try again."
	case SourceScan:
		return "Scan failed. Check the device connection."
	case SourceBlank:
		return "Blank detection failed. Place the blank on the reader and try again."
	case SourceWrite:
		return "Write failed. The blank may be partially written; do not use it."
	case SourceVerify:
		return "Verification failed. Check the device connection."
	}
	return "Operation failed. Check the device connection."
}

// transportFailure classifies a gateway-level rejection. Writes default to
// non-recoverable: a failed write leaves the blank in an unknown state, and
// only an explicit authoritative classification may soften that.
func transportFailure(source Source, err error) Failure {
	f := Failure{
		Message:     errors.ScrubPaths(err.Error()),
		UserMessage: transportUserMessage(source),
		Source:      source,
	}
	switch source {
	case SourceWrite:
		f.Recoverable = false
		f.Recovery = cards.RecoverManual
	case SourceDetect:
		f.Recoverable = true
		f.Recovery = cards.RecoverReconnect
	default:
		f.Recoverable = true
		f.Recovery = cards.RecoverRetry
	}
	return f
}

// domainFailure propagates an authoritative error classification verbatim,
// defaulting the recovery action to Retry when the agent omitted one.
func domainFailure(source Source, p *gateway.ErrorPayload) Failure {
	f := Failure{
		Message:     errors.ScrubPaths(p.Message),
		UserMessage: p.UserMessage,
		Recoverable: p.Recoverable,
		Recovery:    p.RecoveryAction,
		Source:      source,
	}
	if f.Recovery == "" {
		f.Recovery = cards.RecoverRetry
	}
	if f.UserMessage == "" {
		f.UserMessage = errors.ScrubPaths(p.Message)
	}
	return f
}

// unexpectedOutcome classifies a response tag the current state did not
// anticipate. Always recoverable: both sides are healthy, they just
// disagree, and a retry resynchronizes them.
func unexpectedOutcome(source Source, got gateway.Step) Failure {
	return Failure{
		Message:     fmt.Sprintf("unexpected outcome %s", got),
		UserMessage: "The device reported an unexpected state. Try again.",
		Recoverable: true,
		Recovery:    cards.RecoverRetry,
		Source:      source,
	}
}

// timeoutFailure is the dead-man classification. A timeout means the device
// link itself is suspect, so it bypasses the Retry default.
func timeoutFailure(source Source, what string) Failure {
	return Failure{
		Message:     fmt.Sprintf("%s timed out", what),
		UserMessage: "The device stopped responding. Reconnect it and try again.",
		Recoverable: true,
		Recovery:    cards.RecoverReconnect,
		Source:      source,
	}
}
