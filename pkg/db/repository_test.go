package db

import (
	"os"
	"testing"

	"github.com/phosphor-rfid/phosphor/pkg/cards"
)

func TestRepository_RecordAndListClones(t *testing.T) {
	dbPath := "/tmp/test_clone_log.db"
	os.Remove(dbPath)
	defer os.Remove(dbPath)

	repo, err := NewRepository(dbPath)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	source := cards.CardSummary{CardType: "EM4100", UID: "2004263657", DisplayName: "EM4100"}
	target := cards.CardSummary{CardType: "T5577", UID: "2004263657", DisplayName: "T5577"}

	if err := repo.RecordClone(source, target, "/dev/ttyACM0", true, "2026-08-30T12:00:00Z"); err != nil {
		t.Fatalf("failed to record clone: %v", err)
	}
	if err := repo.RecordClone(source, target, "/dev/ttyACM0", false, "2026-08-30T12:05:00Z"); err != nil {
		t.Fatalf("failed to record clone: %v", err)
	}

	records, err := repo.ListClones(0)
	if err != nil {
		t.Fatalf("failed to list clones: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].RunID == records[1].RunID {
		t.Errorf("run ids must be unique: %s", records[0].RunID)
	}
	if records[0].CompletedAt != "2026-08-30T12:05:00Z" {
		t.Errorf("newest record first: got %s", records[0].CompletedAt)
	}
	if records[0].Success {
		t.Errorf("expected failed run first, got success")
	}
	if records[1].SourceCardType != "EM4100" || records[1].TargetBlankType != "T5577" {
		t.Errorf("record mismatch: %+v", records[1])
	}

	limited, err := repo.ListClones(1)
	if err != nil {
		t.Fatalf("failed to list clones with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 record with limit, got %d", len(limited))
	}
}

func TestRepository_RecordCloneValidatesUID(t *testing.T) {
	dbPath := "/tmp/test_clone_log_invalid.db"
	os.Remove(dbPath)
	defer os.Remove(dbPath)

	repo, err := NewRepository(dbPath)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	source := cards.CardSummary{CardType: "EM4100"}
	target := cards.CardSummary{CardType: "T5577"}
	if err := repo.RecordClone(source, target, "", true, "2026-08-30T12:00:00Z"); err == nil {
		t.Fatal("expected error for empty uid")
	}
}

func TestRepository_SaveAndGetCard(t *testing.T) {
	dbPath := "/tmp/test_saved_cards.db"
	os.Remove(dbPath)
	defer os.Remove(dbPath)

	repo, err := NewRepository(dbPath)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	card := &SavedCard{
		Label:     "office badge",
		Frequency: "LF",
		CardType:  "HIDProx",
		UID:       "10691337",
		Raw:       "1D5559A6B4",
		Decoded:   map[string]string{"facility": "42", "card": "1337"},
	}
	if err := repo.SaveCard(card); err != nil {
		t.Fatalf("failed to save card: %v", err)
	}
	if card.ID == 0 {
		t.Fatal("save must assign an id")
	}

	got, err := repo.GetSavedCard(card.ID)
	if err != nil {
		t.Fatalf("failed to get saved card: %v", err)
	}
	if got == nil {
		t.Fatal("saved card not found")
	}
	if got.Label != card.Label || got.UID != card.UID || got.Raw != card.Raw {
		t.Errorf("retrieved card mismatch: got %+v, want %+v", got, card)
	}
	if got.Decoded["facility"] != "42" {
		t.Errorf("decoded fields not preserved: %+v", got.Decoded)
	}

	missing, err := repo.GetSavedCard(9999)
	if err != nil {
		t.Fatalf("unexpected error for missing card: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing card, got %+v", missing)
	}
}

func TestRepository_SaveCardValidation(t *testing.T) {
	dbPath := "/tmp/test_saved_cards_invalid.db"
	os.Remove(dbPath)
	defer os.Remove(dbPath)

	repo, err := NewRepository(dbPath)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	tests := []struct {
		name string
		card *SavedCard
	}{
		{"missing_label", &SavedCard{Frequency: "LF", CardType: "EM4100", UID: "1"}},
		{"bad_frequency", &SavedCard{Label: "x", Frequency: "UHF", CardType: "EM4100", UID: "1"}},
		{"missing_type", &SavedCard{Label: "x", Frequency: "LF", UID: "1"}},
		{"missing_uid", &SavedCard{Label: "x", Frequency: "LF", CardType: "EM4100"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.SaveCard(tt.card); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestRepository_SaveCardDuplicate(t *testing.T) {
	dbPath := "/tmp/test_saved_cards_dup.db"
	os.Remove(dbPath)
	defer os.Remove(dbPath)

	repo, err := NewRepository(dbPath)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	card := &SavedCard{Label: "badge", Frequency: "LF", CardType: "EM4100", UID: "2004263657"}
	if err := repo.SaveCard(card); err != nil {
		t.Fatalf("failed to save card: %v", err)
	}
	dup := &SavedCard{Label: "badge copy", Frequency: "LF", CardType: "EM4100", UID: "2004263657"}
	if err := repo.SaveCard(dup); err == nil {
		t.Fatal("expected unique constraint error for duplicate (card_type, uid)")
	}
}

func TestRepository_ListAndDeleteSavedCards(t *testing.T) {
	dbPath := "/tmp/test_saved_cards_list.db"
	os.Remove(dbPath)
	defer os.Remove(dbPath)

	repo, err := NewRepository(dbPath)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	repo.SaveCard(&SavedCard{Label: "one", Frequency: "LF", CardType: "EM4100", UID: "1111"})
	repo.SaveCard(&SavedCard{Label: "two", Frequency: "HF", CardType: "MifareClassic1K", UID: "2222"})

	saved, err := repo.ListSavedCards()
	if err != nil {
		t.Fatalf("failed to list saved cards: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected 2 saved cards, got %d", len(saved))
	}

	if err := repo.DeleteSavedCard(saved[0].ID); err != nil {
		t.Fatalf("failed to delete saved card: %v", err)
	}
	remaining, _ := repo.ListSavedCards()
	if len(remaining) != 1 {
		t.Errorf("expected 1 card after delete, got %d", len(remaining))
	}

	if err := repo.DeleteSavedCard(9999); err == nil {
		t.Error("expected error deleting missing card")
	}
}
