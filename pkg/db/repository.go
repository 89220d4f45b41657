// Package db persists clone history and the saved card library in SQLite.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/phosphor-rfid/phosphor/pkg/cards"
	"github.com/phosphor-rfid/phosphor/pkg/errors"
)

// Field limits enforced before any row is written.
const (
	maxUIDLen     = 64
	maxLabelLen   = 128
	maxRawLen     = 4096
	maxDecodedLen = 4096
)

// Repository provides database operations for clone history and saved cards
type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the database at dbPath
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}

	slog.Info("database_create_schema", "db_path", dbPath)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// RecordClone inserts one clone_log row for a finished run. It satisfies the
// orchestrator's recorder contract.
func (r *Repository) RecordClone(source, target cards.CardSummary, port string, success bool, timestamp string) error {
	if err := validateUID(source.UID); err != nil {
		return err
	}
	runID := uuid.NewString()
	slog.Info("database_record_clone",
		"run_id", runID,
		"source_card_type", source.CardType,
		"target_blank_type", target.CardType,
		"success", success)

	query := `
		INSERT INTO clone_log (run_id, source_card_type, source_uid, source_display_name,
		                       target_blank_type, target_display_name, port, success, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		runID, source.CardType, source.UID, source.DisplayName,
		target.CardType, target.DisplayName, port, boolToInt(success), timestamp)
	if err != nil {
		slog.Error("database_insert_failed", "run_id", runID, "error", err)
		return errors.Wrap(err, "failed to insert clone record")
	}

	slog.Info("database_clone_recorded", "run_id", runID)
	return nil
}

// ListClones retrieves clone history, newest first. limit <= 0 returns all
// rows.
func (r *Repository) ListClones(limit int) ([]*CloneRecord, error) {
	slog.Info("database_list_clones", "limit", limit)

	query := `
		SELECT id, run_id, source_card_type, source_uid, source_display_name,
		       target_blank_type, target_display_name, port, success, completed_at, created_at
		FROM clone_log ORDER BY created_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list clone records")
	}
	defer rows.Close()

	var records []*CloneRecord
	for rows.Next() {
		var rec CloneRecord
		var sourceName, targetName, port sql.NullString
		var success int

		err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.SourceCardType, &rec.SourceUID, &sourceName,
			&rec.TargetBlankType, &targetName, &port, &success, &rec.CompletedAt, &rec.CreatedAt)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}

		rec.SourceDisplayName = sourceName.String
		rec.TargetDisplayName = targetName.String
		rec.Port = port.String
		rec.Success = success != 0

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Info("database_list_complete", "record_count", len(records))
	return records, nil
}

// SaveCard inserts a saved card record
func (r *Repository) SaveCard(card *SavedCard) error {
	if err := validateSavedCard(card); err != nil {
		return err
	}
	slog.Info("database_save_card", "card_type", card.CardType, "label", card.Label)

	decoded, err := encodeDecoded(card.Decoded)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO saved_cards (label, frequency, card_type, uid, raw, decoded)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query,
		card.Label, card.Frequency, card.CardType, card.UID, card.Raw, decoded)
	if err != nil {
		slog.Error("database_save_card_failed", "card_type", card.CardType, "error", err)
		return errors.Wrap(err, "failed to insert saved card")
	}

	id, err := result.LastInsertId()
	if err != nil {
		slog.Error("database_last_insert_id_failed", "card_type", card.CardType, "error", err)
		return errors.Wrap(err, "failed to get last insert id")
	}
	card.ID = id

	slog.Info("database_card_saved", "card_id", card.ID, "card_type", card.CardType)
	return nil
}

// GetSavedCard retrieves a saved card by ID. Returns nil when not found.
func (r *Repository) GetSavedCard(id int64) (*SavedCard, error) {
	slog.Info("database_query_saved_card", "card_id", id)

	query := `
		SELECT id, label, frequency, card_type, uid, raw, decoded, created_at
		FROM saved_cards WHERE id = ?
	`
	var card SavedCard
	var raw, decoded sql.NullString

	err := r.db.QueryRow(query, id).Scan(
		&card.ID, &card.Label, &card.Frequency, &card.CardType, &card.UID,
		&raw, &decoded, &card.CreatedAt)

	if err == sql.ErrNoRows {
		slog.Info("database_saved_card_not_found", "card_id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("database_query_failed", "card_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query saved card")
	}

	card.Raw = raw.String
	if decoded.String != "" {
		if err := json.Unmarshal([]byte(decoded.String), &card.Decoded); err != nil {
			slog.Error("database_decoded_corrupt", "card_id", id, "error", err)
			return nil, errors.Wrap(err, "failed to decode saved card fields")
		}
	}

	return &card, nil
}

// ListSavedCards retrieves all saved cards, newest first
func (r *Repository) ListSavedCards() ([]*SavedCard, error) {
	slog.Info("database_list_saved_cards")

	query := `
		SELECT id, label, frequency, card_type, uid, raw, decoded, created_at
		FROM saved_cards ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list saved cards")
	}
	defer rows.Close()

	var cardsOut []*SavedCard
	for rows.Next() {
		var card SavedCard
		var raw, decoded sql.NullString

		err := rows.Scan(
			&card.ID, &card.Label, &card.Frequency, &card.CardType, &card.UID,
			&raw, &decoded, &card.CreatedAt)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}

		card.Raw = raw.String
		if decoded.String != "" {
			if err := json.Unmarshal([]byte(decoded.String), &card.Decoded); err != nil {
				slog.Error("database_decoded_corrupt", "card_id", card.ID, "error", err)
				return nil, errors.Wrap(err, "failed to decode saved card fields")
			}
		}

		cardsOut = append(cardsOut, &card)
	}

	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Info("database_list_complete", "card_count", len(cardsOut))
	return cardsOut, nil
}

// DeleteSavedCard deletes a saved card by ID
func (r *Repository) DeleteSavedCard(id int64) error {
	slog.Info("database_delete_saved_card", "card_id", id)

	result, err := r.db.Exec(`DELETE FROM saved_cards WHERE id = ?`, id)
	if err != nil {
		slog.Error("database_delete_failed", "card_id", id, "error", err)
		return errors.Wrap(err, "failed to delete saved card")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		slog.Error("database_rows_affected_failed", "card_id", id, "error", err)
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		slog.Error("database_saved_card_not_found_for_delete", "card_id", id)
		return fmt.Errorf("saved card not found: id=%d", id)
	}

	slog.Info("database_saved_card_deleted", "card_id", id)
	return nil
}

func validateSavedCard(card *SavedCard) error {
	if card.Label == "" {
		return fmt.Errorf("saved card label is required")
	}
	if len(card.Label) > maxLabelLen {
		return fmt.Errorf("saved card label too long: %d > %d", len(card.Label), maxLabelLen)
	}
	if card.Frequency != string(cards.LF) && card.Frequency != string(cards.HF) {
		return fmt.Errorf("invalid frequency: %q", card.Frequency)
	}
	if card.CardType == "" {
		return fmt.Errorf("saved card type is required")
	}
	if len(card.Raw) > maxRawLen {
		return fmt.Errorf("saved card raw data too long: %d > %d", len(card.Raw), maxRawLen)
	}
	return validateUID(card.UID)
}

func validateUID(uid string) error {
	if uid == "" {
		return fmt.Errorf("card uid is required")
	}
	if len(uid) > maxUIDLen {
		return fmt.Errorf("card uid too long: %d > %d", len(uid), maxUIDLen)
	}
	return nil
}

func encodeDecoded(decoded map[string]string) (string, error) {
	if len(decoded) == 0 {
		return "", nil
	}
	b, err := json.Marshal(decoded)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode decoded fields")
	}
	if len(b) > maxDecodedLen {
		return "", fmt.Errorf("decoded fields too large: %d > %d", len(b), maxDecodedLen)
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
