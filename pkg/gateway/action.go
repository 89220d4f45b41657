package gateway

import (
	"fmt"

	"github.com/phosphor-rfid/phosphor/pkg/cards"
)

// ActionKind tags a control action sent to the authoritative machine so its
// own state advances in lockstep with the orchestrator.
type ActionKind string

const (
	ActionProceedToWrite  ActionKind = "ProceedToWrite"
	ActionMarkComplete    ActionKind = "MarkComplete"
	ActionReset           ActionKind = "Reset"
	ActionBackToScan      ActionKind = "BackToScan"
	ActionSoftReset       ActionKind = "SoftReset"
	ActionDisconnect      ActionKind = "Disconnect"
	ActionReDetectBlank   ActionKind = "ReDetectBlank"
	ActionLoadSavedCard   ActionKind = "LoadSavedCard"
	ActionCancelHfProcess ActionKind = "CancelHfProcess"
)

// ProceedToWritePayload carries the caller-chosen expected blank type.
type ProceedToWritePayload struct {
	BlankType cards.BlankType `json:"blank_type"`
}

// MarkCompletePayload carries the source and target summaries recorded at
// completion.
type MarkCompletePayload struct {
	Source cards.CardSummary `json:"source"`
	Target cards.CardSummary `json:"target"`
}

// SavedCardPayload restores a previously saved credential into the wizard.
type SavedCardPayload struct {
	Frequency        cards.Frequency   `json:"frequency"`
	CardType         cards.CardType    `json:"card_type"`
	UID              string            `json:"uid"`
	Raw              string            `json:"raw"`
	Decoded          map[string]string `json:"decoded"`
	Cloneable        bool              `json:"cloneable"`
	RecommendedBlank cards.BlankType   `json:"recommended_blank"`
}

// Action is the tagged control-action union for Client.WizardAction.
type Action struct {
	Kind ActionKind `json:"action"`

	ProceedToWrite *ProceedToWritePayload `json:"proceed_to_write,omitempty"`
	MarkComplete   *MarkCompletePayload   `json:"mark_complete,omitempty"`
	SavedCard      *SavedCardPayload      `json:"saved_card,omitempty"`
}

// Validate checks tag/payload consistency.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionProceedToWrite:
		if a.ProceedToWrite == nil {
			return fmt.Errorf("action %s missing payload", a.Kind)
		}
	case ActionMarkComplete:
		if a.MarkComplete == nil {
			return fmt.Errorf("action %s missing payload", a.Kind)
		}
	case ActionLoadSavedCard:
		if a.SavedCard == nil {
			return fmt.Errorf("action %s missing payload", a.Kind)
		}
	case ActionReset, ActionBackToScan, ActionSoftReset, ActionDisconnect,
		ActionReDetectBlank, ActionCancelHfProcess:
		if a.ProceedToWrite != nil || a.MarkComplete != nil || a.SavedCard != nil {
			return fmt.Errorf("action %s must not carry a payload", a.Kind)
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}

func ProceedToWrite(blank cards.BlankType) Action {
	return Action{Kind: ActionProceedToWrite, ProceedToWrite: &ProceedToWritePayload{BlankType: blank}}
}

func MarkComplete(source, target cards.CardSummary) Action {
	return Action{Kind: ActionMarkComplete, MarkComplete: &MarkCompletePayload{Source: source, Target: target}}
}

func LoadSavedCard(p SavedCardPayload) Action {
	return Action{Kind: ActionLoadSavedCard, SavedCard: &p}
}
