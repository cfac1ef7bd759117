package repository

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/ahmednasr/mapping-assistant/internal/database"
	"github.com/ahmednasr/mapping-assistant/internal/models"
)

const sqliteRulesSchema = `
CREATE TABLE IF NOT EXISTS rules (
    id               INTEGER PRIMARY KEY,
    code_pattern     TEXT,
    language         TEXT NOT NULL,
    category         TEXT NOT NULL DEFAULT '',
    severity         TEXT NOT NULL DEFAULT '',
    title            TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    practice_type    TEXT NOT NULL DEFAULT 'bad',
    last_updated_utc TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    vector           BLOB,
    UNIQUE (language, title)
);`

// RuleSQLite keeps the rule table in a local SQLite file.
type RuleSQLite struct {
	db    *sql.DB
	owned bool
}

// NewRuleSQLite wraps an already-open database. Close leaves db open.
func NewRuleSQLite(db *sql.DB) *RuleSQLite {
	return &RuleSQLite{db: db}
}

// OpenRuleSQLite opens path for the lifetime of the returned handle.
func OpenRuleSQLite(ctx context.Context, path string) (*RuleSQLite, error) {
	db, err := database.OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return &RuleSQLite{db: db, owned: true}, nil
}

// EnsureSchema creates the rules table and its (language, title) constraint.
func (r *RuleSQLite) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, sqliteRulesSchema)
	return err
}

// Upsert inserts the rule or updates the one with the same language and title.
// The stored vector is kept unless the rule carries a new one.
func (r *RuleSQLite) Upsert(ctx context.Context, rule models.Rule) error {
	if rule.PracticeType == "" {
		rule.PracticeType = models.PracticeBad
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO rules (id, code_pattern, language, category, severity, title, description, practice_type, last_updated_utc, vector)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (language, title) DO UPDATE SET
    code_pattern     = excluded.code_pattern,
    category         = excluded.category,
    severity         = excluded.severity,
    description      = excluded.description,
    practice_type    = excluded.practice_type,
    last_updated_utc = excluded.last_updated_utc,
    vector           = COALESCE(excluded.vector, rules.vector)`,
		nullableID(rule.ID), nullableString(rule.CodePattern), rule.Language, rule.Category,
		rule.Severity, rule.Title, rule.Description, rule.PracticeType,
		time.Now().UTC(), encodeVector(rule.Vector))
	if err != nil {
		return fmt.Errorf("upsert rule %q: %w", rule.Title, err)
	}
	return nil
}

// RegexRules returns the bad-practice rules of language that carry a pattern.
func (r *RuleSQLite) RegexRules(ctx context.Context, language string) ([]models.Rule, error) {
	return r.query(ctx, `
SELECT id, code_pattern, language, category, severity, title, description, practice_type, last_updated_utc, vector
FROM rules
WHERE language = ? AND practice_type = 'bad' AND code_pattern IS NOT NULL AND code_pattern <> ''
ORDER BY id`, language)
}

// VectorRules returns the rules of language that have been vectorized.
func (r *RuleSQLite) VectorRules(ctx context.Context, language string) ([]models.Rule, error) {
	return r.query(ctx, `
SELECT id, code_pattern, language, category, severity, title, description, practice_type, last_updated_utc, vector
FROM rules
WHERE language = ? AND vector IS NOT NULL
ORDER BY id`, language)
}

// MissingVectors returns every rule that has no vector yet.
func (r *RuleSQLite) MissingVectors(ctx context.Context) ([]models.Rule, error) {
	return r.query(ctx, `
SELECT id, code_pattern, language, category, severity, title, description, practice_type, last_updated_utc, vector
FROM rules
WHERE vector IS NULL
ORDER BY id`)
}

// SetVector stores the embedding of rule id.
func (r *RuleSQLite) SetVector(ctx context.Context, id int64, vec []float32) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rules SET vector = ?, last_updated_utc = ? WHERE id = ?`,
		encodeVector(vec), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set vector for rule %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set vector: rule %d not found", id)
	}
	return nil
}

// Close releases the database if this handle opened it.
func (r *RuleSQLite) Close() error {
	if r.owned {
		return r.db.Close()
	}
	return nil
}

func (r *RuleSQLite) query(ctx context.Context, q string, args ...any) ([]models.Rule, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		var (
			rule    models.Rule
			pattern sql.NullString
			vec     []byte
		)
		if err := rows.Scan(&rule.ID, &pattern, &rule.Language, &rule.Category, &rule.Severity,
			&rule.Title, &rule.Description, &rule.PracticeType, &rule.LastUpdated, &vec); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.CodePattern = pattern.String
		rule.Vector = decodeVector(vec)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// encodeVector converts a float32 slice to bytes (little-endian).
// A nil slice is stored as NULL.
func encodeVector(vec []float32) any {
	if vec == nil {
		return nil
	}
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// nullableString returns nil for empty strings, otherwise the string.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
