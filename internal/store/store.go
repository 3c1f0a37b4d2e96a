package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Sentinel conditions callers distinguish with errors.Is. A malformed
// identifier is reported separately from an unknown one because the backend
// rejects it before lookup.
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidID     = errors.New("invalid record identifier")
	ErrInvalidUpdate = errors.New("invalid update")
)

// Store is the persistence layer for completed research runs, backed by
// Postgres. Construction fails fast on connectivity problems; after that,
// errors are reported per call.
type Store struct {
	DB     *sql.DB
	logger *log.Logger
}

// ResearchRecord is the persisted form of a completed run.
type ResearchRecord struct {
	ID          string                 `json:"id"`
	Query       string                 `json:"query"`
	Research    string                 `json:"research"`
	Critique    string                 `json:"critique"`
	FinalAnswer string                 `json:"final_answer"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   *time.Time             `json:"updated_at,omitempty"`
}

// ResearchStats are aggregate counts, recomputed on every call.
type ResearchStats struct {
	Total         int64 `json:"total_count"`
	LastSevenDays int64 `json:"count_last_7_days"`
}

// New constructs the Store from DATABASE_URL or the POSTGRES_* env vars.
func New(ctx context.Context, logger *log.Logger) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn, logger)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}
	return NewFromDB(db, logger), nil
}

// NewFromDB wraps an existing database handle without a connectivity check.
func NewFromDB(db *sql.DB, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{DB: db, logger: logger}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// CreateResearch persists one run and returns the assigned identifier.
// Empty stage fields are stored as empty strings, never dropped.
func (s *Store) CreateResearch(ctx context.Context, query, research, critique, finalAnswer string, metadata map[string]interface{}) (string, error) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metaBytes, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	id := uuid.NewString()
	createdAt := time.Now().UTC()
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO research_records (id, query, research, critique, final_answer, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, id, query, research, critique, finalAnswer, metaBytes, createdAt)
	if err != nil {
		return "", err
	}
	s.logger.Printf("saved research %s (query: %.60q)", id, query)
	return id, nil
}

// GetResearch returns one record by identifier. Unknown ids yield
// ErrNotFound, malformed ids ErrInvalidID.
func (s *Store) GetResearch(ctx context.Context, id string) (ResearchRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return ResearchRecord{}, ErrInvalidID
	}
	row := s.DB.QueryRowContext(ctx, `
SELECT id, query, research, critique, final_answer, metadata, created_at, updated_at
FROM research_records WHERE id=$1
`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ResearchRecord{}, ErrNotFound
		}
		return ResearchRecord{}, err
	}
	return rec, nil
}

// ListResearch returns records ordered newest first. skip offsets before
// limit truncates.
func (s *Store) ListResearch(ctx context.Context, limit, skip int) ([]ResearchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, query, research, critique, final_answer, metadata, created_at, updated_at
FROM research_records ORDER BY created_at DESC LIMIT $1 OFFSET $2
`, limit, skip)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// SearchResearch does a case-insensitive substring match against the query
// field only. Not ranked; ordered newest first.
func (s *Store) SearchResearch(ctx context.Context, text string, limit int) ([]ResearchRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(text) + "%"
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, query, research, critique, final_answer, metadata, created_at, updated_at
FROM research_records WHERE query ILIKE $1 ESCAPE '\' ORDER BY created_at DESC LIMIT $2
`, pattern, limit)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// RecentResearch returns all records created within the last N days.
func (s *Store) RecentResearch(ctx context.Context, days int) ([]ResearchRecord, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, query, research, critique, final_answer, metadata, created_at, updated_at
FROM research_records WHERE created_at >= $1 ORDER BY created_at DESC
`, cutoff)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// Updatable record fields. Anything else in an update map is rejected.
var updatableFields = map[string]bool{
	"query":        true,
	"research":     true,
	"critique":     true,
	"final_answer": true,
	"metadata":     true,
}

// UpdateResearch merges the given fields into an existing record and stamps
// updated_at. Returns false (not an error) when the id does not exist.
func (s *Store) UpdateResearch(ctx context.Context, id string, updates map[string]interface{}) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, ErrInvalidID
	}
	if len(updates) == 0 {
		return false, fmt.Errorf("%w: no fields to update", ErrInvalidUpdate)
	}

	sets := make([]string, 0, len(updates)+1)
	args := make([]interface{}, 0, len(updates)+2)
	i := 1
	for field, value := range updates {
		if !updatableFields[field] {
			return false, fmt.Errorf("%w: field %q is not updatable", ErrInvalidUpdate, field)
		}
		if field == "metadata" {
			metaBytes, err := json.Marshal(value)
			if err != nil {
				return false, fmt.Errorf("marshal metadata: %w", err)
			}
			value = metaBytes
		}
		sets = append(sets, fmt.Sprintf("%s=$%d", field, i))
		args = append(args, value)
		i++
	}
	sets = append(sets, fmt.Sprintf("updated_at=$%d", i))
	args = append(args, time.Now().UTC())
	i++
	args = append(args, id)

	res, err := s.DB.ExecContext(ctx, fmt.Sprintf(
		`UPDATE research_records SET %s WHERE id=$%d`, strings.Join(sets, ", "), i), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteResearch removes a record. Returns false when the id does not exist.
func (s *Store) DeleteResearch(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, ErrInvalidID
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM research_records WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Stats recomputes aggregate counts at call time.
func (s *Store) Stats(ctx context.Context) (ResearchStats, error) {
	var stats ResearchStats
	cutoff := time.Now().UTC().Add(-7 * 24 * time.Hour)
	err := s.DB.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(*) FILTER (WHERE created_at >= $1) FROM research_records
`, cutoff).Scan(&stats.Total, &stats.LastSevenDays)
	if err != nil {
		return ResearchStats{}, err
	}
	return stats, nil
}

// User operations backing the API's JWT auth.
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

func (s *Store) Close() error { return s.DB.Close() }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (ResearchRecord, error) {
	var (
		rec       ResearchRecord
		metaBytes []byte
		updatedAt sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.Query, &rec.Research, &rec.Critique, &rec.FinalAnswer, &metaBytes, &rec.CreatedAt, &updatedAt); err != nil {
		return ResearchRecord{}, err
	}
	rec.Metadata = map[string]interface{}{}
	if len(metaBytes) > 0 {
		_ = json.Unmarshal(metaBytes, &rec.Metadata)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		rec.UpdatedAt = &t
	}
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]ResearchRecord, error) {
	defer rows.Close()
	var out []ResearchRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
