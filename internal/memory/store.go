package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"gonum.org/v1/gonum/floats"

	"github.com/vthunder/mneme/internal/logging"
)

func init() {
	sqlite_vec.Auto() // registers the vec0 virtual table with go-sqlite3
}

// episodeVecDim is the embedding width spec.md §3 fixes for episodes.
const episodeVecDim = 384

// Embedder produces the 384-d embedding Memorize stores alongside an
// episode. Implementations live in internal/embedding or internal/llm;
// Memory only depends on the interface to avoid import cycles.
type Embedder interface {
	Embed(text string) ([]float64, error)
}

// Store is the Memory Substrate: the sole owner of every persistent row in
// the system and the sole component performing disk I/O (spec.md §5).
type Store struct {
	db           *sql.DB
	embedder     Embedder
	strengthFloor float64
	recallWindow  int // bounded linear-scan fallback window size

	vecAvailable bool

	mu          sync.Mutex // serializes insertion-counter allocation
	insertSeq   int64
}

// Open opens (creating if needed) the SQLite database at dbPath and runs
// migrations. strengthFloor is the episode-forgetting threshold from
// config.Memory.StrengthFloor.
func Open(dbPath string, embedder Embedder, strengthFloor float64) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, embedder: embedder, strengthFloor: strengthFloor, recallWindow: 500}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		logging.Info("memory", "sqlite-vec not available: %v — falling back to bounded linear scan", err)
	} else {
		logging.Info("memory", "sqlite-vec %s loaded", vecVersion)
		s.vecAvailable = true
		if err := s.ensureEpisodeVecTable(); err != nil {
			logging.Warn("memory", "vec table init: %v", err)
			s.vecAvailable = false
		}
	}

	if err := s.loadInsertSeq(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load insertion counter: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) loadInsertSeq() error {
	return s.db.QueryRow(`SELECT COALESCE(MAX(insert_seq), 0) FROM episodes`).Scan(&s.insertSeq)
}

func (s *Store) nextInsertSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertSeq++
	return s.insertSeq
}

// schema is the forward-only, idempotent migration sequence of spec.md §6:
// episodes, facts, people, aliases, relationships, organism_state (singleton),
// organism_state_history, narrative_chapters, feedback_signals,
// self_knowledge, token_usage, modulation_samples, learned_curves
// (singleton), learned_thresholds (singleton), learned_neural (singleton),
// behavior_rules, goals, plus the vec0 virtual table for episodes.
var migrations = []string{
	// v1: episodic + semantic + social + self-knowledge core.
	`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at DATETIME DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS episodes (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		author TEXT,
		author_id TEXT,
		body TEXT NOT NULL,
		media_refs TEXT,
		timestamp DATETIME NOT NULL,
		modality TEXT NOT NULL DEFAULT 'text',
		embedding BLOB,
		strength REAL NOT NULL DEFAULT 0.5,
		reply_to TEXT,
		insert_seq INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_episodes_order ON episodes(timestamp, insert_seq)`,
	`CREATE INDEX IF NOT EXISTS idx_episodes_strength ON episodes(strength)`,
	`CREATE TABLE IF NOT EXISTS facts (
		subject TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object TEXT NOT NULL,
		confidence REAL NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (subject, predicate, object)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_facts_subject ON facts(subject)`,
	`CREATE TABLE IF NOT EXISTS people (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS aliases (
		platform TEXT NOT NULL,
		platform_id TEXT NOT NULL,
		person_id TEXT NOT NULL REFERENCES people(id) ON DELETE CASCADE,
		PRIMARY KEY (platform, platform_id)
	)`,
	`CREATE TABLE IF NOT EXISTS relationships (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		person_id TEXT NOT NULL REFERENCES people(id) ON DELETE CASCADE,
		context TEXT NOT NULL,
		positive BOOLEAN NOT NULL DEFAULT 1,
		timestamp DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_relationships_person ON relationships(person_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS self_knowledge (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		content TEXT NOT NULL,
		confidence REAL NOT NULL,
		source TEXT,
		source_episode TEXT,
		private BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_self_knowledge_domain ON self_knowledge(domain)`,
	// v2: organism state singleton + history, narrative chapters, feedback.
	`CREATE TABLE IF NOT EXISTS organism_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		state_json TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS organism_state_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		state_json TEXT NOT NULL,
		recorded_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS narrative_chapters (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		period_start DATETIME NOT NULL,
		period_end DATETIME NOT NULL,
		emotional_tone REAL NOT NULL,
		themes TEXT,
		people TEXT,
		turning_points TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS feedback_signals (
		id TEXT PRIMARY KEY,
		signal_type TEXT NOT NULL,
		content TEXT NOT NULL,
		confidence REAL NOT NULL,
		emotional_context REAL NOT NULL,
		timestamp DATETIME NOT NULL,
		consolidated BOOLEAN NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_consolidated ON feedback_signals(consolidated)`,
	// v3: token budget + modulation samples + learnable parameter singletons.
	`CREATE TABLE IF NOT EXISTS token_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		prompt_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		provider TEXT,
		model TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_token_usage_timestamp ON token_usage(timestamp)`,
	`CREATE TABLE IF NOT EXISTS modulation_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		state_json TEXT NOT NULL,
		vector_json TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS learned_curves (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		curves_json TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS learned_thresholds (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		thresholds_json TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS learned_neural (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		weights_json TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS behavior_rules (
		name TEXT PRIMARY KEY,
		value REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		priority REAL NOT NULL DEFAULT 0.5,
		created_at DATETIME NOT NULL,
		due_at DATETIME
	)`,
}

func (s *Store) migrate() error {
	var version int
	_ = s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)

	for i, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	_, _ = s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, len(migrations))
	return nil
}

// ensureEpisodeVecTable creates the vec0 virtual table for episode
// embeddings at the spec-fixed 384-d width. Idempotent.
func (s *Store) ensureEpisodeVecTable() error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS episode_vec USING vec0(
			embedding float[%d],
			+episode_id TEXT
		)
	`, episodeVecDim))
	if err != nil {
		return fmt.Errorf("create episode_vec: %w", err)
	}
	return nil
}

// Stats returns row counts per table, for the CLI `status` command.
func (s *Store) Stats() (map[string]int, error) {
	tables := []string{"episodes", "facts", "people", "self_knowledge", "narrative_chapters", "feedback_signals", "goals"}
	out := make(map[string]int, len(tables))
	for _, t := range tables {
		var n int
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", t, err)
		}
		out[t] = n
	}
	return out, nil
}

// Clear removes all rows, for tests.
func (s *Store) Clear() error {
	tables := []string{
		"episode_edges", "episodes", "facts", "relationships", "aliases", "people",
		"self_knowledge", "narrative_chapters", "feedback_signals", "token_usage",
		"modulation_samples", "behavior_rules", "goals",
	}
	for _, t := range tables {
		if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", t)); err != nil {
			// Table may not exist (episode_edges is aspirational); ignore.
			continue
		}
	}
	if s.vecAvailable {
		_, _ = s.db.Exec(`DELETE FROM episode_vec`)
	}
	return nil
}

// cosineSim is used by the linear-scan recall fallback and the ANN
// re-ranking pass (vector.go) to correct sqlite-vec's raw L2 ranking on
// unnormalized embeddings. Built on gonum/floats rather than hand-rolled
// arithmetic, matching the teacher pack's numerical-computing dependency
// (gonum.org/v1/gonum) rather than reimplementing dot/norm locally.
func cosineSim(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}
