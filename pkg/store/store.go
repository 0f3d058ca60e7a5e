// Package store persists per-match settings and an archive of the scanner
// snapshots that were merged.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mapembed/pkg/core"
	"mapembed/pkg/types"
)

var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrChainBroken      = errors.New("snapshot chain broken")
)

const genesisLink = "GENESIS"

// Match is the per-game record the prompts fill in.
type Match struct {
	GameID        string    `json:"game_id"`
	Enabled       bool      `json:"enabled"`
	Prompted      bool      `json:"prompted"`
	AskedForCreds bool      `json:"asked_for_creds"`
	URL           string    `json:"url"`
	Code          string    `json:"-"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Settings remembers the last answers so the next match can offer them.
type Settings struct {
	LastURL  string
	LastCode string
}

type SnapshotInfo struct {
	ID          int64  `json:"id"`
	Tick        int    `json:"tick"`
	Now         int64  `json:"now"`
	Size        int    `json:"size"`
	ContentHash string `json:"content_hash"`
	ChainHash   string `json:"chain_hash"`
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS settings (key TEXT PRIMARY KEY, value TEXT);

CREATE TABLE IF NOT EXISTS matches (
	game_id TEXT PRIMARY KEY,
	enabled BOOLEAN DEFAULT 0,
	prompted BOOLEAN DEFAULT 0,
	asked_for_creds BOOLEAN DEFAULT 0,
	url TEXT DEFAULT '',
	code TEXT DEFAULT '',
	updated_at INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id TEXT,
	tick INTEGER,
	now INTEGER,
	state_blob BLOB,
	content_hash TEXT,
	chain_hash TEXT
);
CREATE INDEX IF NOT EXISTS snapshots_game ON snapshots (game_id, id);

CREATE TABLE IF NOT EXISTS sent_notifications (id TEXT PRIMARY KEY, sent_at INTEGER);
`

// Open connects with the given database/sql driver and applies the schema.
func Open(driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	// sqlite has one writer; one connection also keeps :memory: databases whole
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- Matches ---

func (s *Store) FindMatchOrFail(gameID string) (*Match, error) {
	m := &Match{GameID: gameID}
	var updated int64
	err := s.db.QueryRow(
		"SELECT enabled, prompted, asked_for_creds, url, code, updated_at FROM matches WHERE game_id=?",
		gameID,
	).Scan(&m.Enabled, &m.Prompted, &m.AskedForCreds, &m.URL, &m.Code, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find match %s: %w", gameID, err)
	}
	m.UpdatedAt = time.Unix(updated, 0)
	return m, nil
}

func (s *Store) FindOrCreateMatch(gameID string) (*Match, error) {
	m, err := s.FindMatchOrFail(gameID)
	if errors.Is(err, ErrMatchNotFound) {
		m = &Match{GameID: gameID}
		err = s.SaveMatch(m)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) SaveMatch(m *Match) error {
	m.UpdatedAt = time.Now()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO matches (game_id, enabled, prompted, asked_for_creds, url, code, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.GameID, m.Enabled, m.Prompted, m.AskedForCreds, m.URL, m.Code, m.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save match %s: %w", m.GameID, err)
	}
	return nil
}

// --- Settings ---

func (s *Store) Settings() (Settings, error) {
	var out Settings
	rows, err := s.db.Query("SELECT key, value FROM settings WHERE key IN ('last_url', 'last_code')")
	if err != nil {
		return out, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return out, fmt.Errorf("load settings: %w", err)
		}
		switch key {
		case "last_url":
			out.LastURL = value
		case "last_code":
			out.LastCode = value
		}
	}
	return out, rows.Err()
}

func (s *Store) SaveSettings(settings Settings) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, value := range map[string]string{"last_url": settings.LastURL, "last_code": settings.LastCode} {
		if _, err := tx.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	return tx.Commit()
}

// --- Snapshots ---

// SaveSnapshot archives resp unless it is identical to the latest one kept
// for the game. Each row is chained to the previous row's hash.
func (s *Store) SaveSnapshot(gameID string, resp *types.APIResponse) (bool, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return false, fmt.Errorf("encode snapshot: %w", err)
	}
	contentHash := core.Hash(raw)

	prevContent, prevChain := "", genesisLink
	err = s.db.QueryRow(
		"SELECT content_hash, chain_hash FROM snapshots WHERE game_id=? ORDER BY id DESC LIMIT 1",
		gameID,
	).Scan(&prevContent, &prevChain)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("load previous snapshot: %w", err)
	}
	if prevContent == contentHash {
		return false, nil
	}

	compressed, err := core.Compress(raw)
	if err != nil {
		return false, err
	}

	_, err = s.db.Exec(
		"INSERT INTO snapshots (game_id, tick, now, state_blob, content_hash, chain_hash) VALUES (?, ?, ?, ?, ?, ?)",
		gameID, resp.ScanningData.Tick, resp.ScanningData.Now, compressed, contentHash, core.ChainHash(prevChain, compressed),
	)
	if err != nil {
		return false, fmt.Errorf("save snapshot: %w", err)
	}
	return true, nil
}

func (s *Store) LatestSnapshot(gameID string) (*types.APIResponse, error) {
	var blob []byte
	err := s.db.QueryRow(
		"SELECT state_blob FROM snapshots WHERE game_id=? ORDER BY id DESC LIMIT 1",
		gameID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	raw, err := core.Decompress(blob)
	if err != nil {
		return nil, err
	}
	resp := &types.APIResponse{}
	if err := json.Unmarshal(raw, resp); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return resp, nil
}

// ListSnapshots returns the newest snapshots first.
func (s *Store) ListSnapshots(gameID string, limit int) ([]SnapshotInfo, error) {
	rows, err := s.db.Query(
		"SELECT id, tick, now, length(state_blob), content_hash, chain_hash FROM snapshots WHERE game_id=? ORDER BY id DESC LIMIT ?",
		gameID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := []SnapshotInfo{}
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.ID, &info.Tick, &info.Now, &info.Size, &info.ContentHash, &info.ChainHash); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// VerifyChain walks a game's archive oldest first and recomputes every link.
func (s *Store) VerifyChain(gameID string) error {
	rows, err := s.db.Query(
		"SELECT id, state_blob, chain_hash FROM snapshots WHERE game_id=? ORDER BY id ASC",
		gameID,
	)
	if err != nil {
		return fmt.Errorf("verify chain: %w", err)
	}
	defer rows.Close()

	prev := genesisLink
	for rows.Next() {
		var id int64
		var blob []byte
		var chain string
		if err := rows.Scan(&id, &blob, &chain); err != nil {
			return fmt.Errorf("verify chain: %w", err)
		}
		if want := core.ChainHash(prev, blob); want != chain {
			return fmt.Errorf("%w at snapshot %d", ErrChainBroken, id)
		}
		prev = chain
	}
	return rows.Err()
}

// --- Sent Notifications ---

func (s *Store) CheckSent(id string) (bool, error) {
	var n int
	if err := s.db.QueryRow("SELECT count(*) FROM sent_notifications WHERE id=?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("check notification %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) RecordSent(id string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO sent_notifications (id, sent_at) VALUES (?, ?)", id, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record notification %s: %w", id, err)
	}
	return nil
}
