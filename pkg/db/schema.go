package db

// Schema defines the SQLite database schema for clone history and the saved
// card library. Each completed run gets one clone_log row keyed by a
// client-generated run id; saved_cards stores re-loadable credentials.
const Schema = `
CREATE TABLE IF NOT EXISTS clone_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    source_card_type TEXT NOT NULL,
    source_uid TEXT NOT NULL,
    source_display_name TEXT,
    target_blank_type TEXT NOT NULL,
    target_display_name TEXT,
    port TEXT,
    success INTEGER NOT NULL DEFAULT 0,
    completed_at TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_clone_log_run_id ON clone_log(run_id);
CREATE INDEX IF NOT EXISTS idx_clone_log_created_at ON clone_log(created_at);

CREATE TABLE IF NOT EXISTS saved_cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    label TEXT NOT NULL,
    frequency TEXT NOT NULL CHECK(frequency IN ('LF', 'HF')),
    card_type TEXT NOT NULL,
    uid TEXT NOT NULL,
    raw TEXT,
    decoded TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(card_type, uid)
);

CREATE INDEX IF NOT EXISTS idx_saved_cards_card_type ON saved_cards(card_type);
`

// CloneRecord represents one completed (or failed) clone run.
type CloneRecord struct {
	ID                int64
	RunID             string
	SourceCardType    string
	SourceUID         string
	SourceDisplayName string
	TargetBlankType   string
	TargetDisplayName string
	Port              string
	Success           bool
	CompletedAt       string
	CreatedAt         string
}

// SavedCard represents a credential stored for later re-cloning.
type SavedCard struct {
	ID        int64
	Label     string
	Frequency string
	CardType  string
	UID       string
	Raw       string
	Decoded   map[string]string
	CreatedAt string
}
