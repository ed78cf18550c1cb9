// Package postgres persists interview sessions and their feedback in
// PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"interview-session-service/internal/models"
	"interview-session-service/internal/observability/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrNotFound is returned when no session with the given id exists.
var ErrNotFound = errors.New("session not found")

// ErrUnknownField is returned by Update for fields that have no column.
var ErrUnknownField = errors.New("unknown session field")

// Store is a PostgreSQL session store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, checks the connection and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	logger := logging.WithComponent("postgres")

	migrations, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		logger.Info().
			Int64("version", r.Source.Version).
			Dur("took", r.Duration).
			Msg("Applied migration")
	}
	return nil
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Get returns the stored record for a session.
func (s *Store) Get(ctx context.Context, id string) (models.SessionRecord, error) {
	var (
		rec        models.SessionRecord
		startedAt  *time.Time
		config     []byte
		transcript []byte
		feedback   []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, status, config, started_at, duration_minutes, score, transcript, feedback
		FROM interview_sessions WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.Status, &config, &startedAt, &rec.DurationMinutes, &rec.Score, &transcript, &feedback)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return models.SessionRecord{}, fmt.Errorf("get session %s: %w", id, err)
	}

	if startedAt != nil {
		rec.StartedAt = *startedAt
	}
	if err := unmarshalColumn(config, &rec.Config); err != nil {
		return models.SessionRecord{}, fmt.Errorf("session %s config: %w", id, err)
	}
	if err := unmarshalColumn(transcript, &rec.Transcript); err != nil {
		return models.SessionRecord{}, fmt.Errorf("session %s transcript: %w", id, err)
	}
	if len(feedback) > 0 && string(feedback) != "null" {
		var report models.FeedbackReport
		if err := json.Unmarshal(feedback, &report); err != nil {
			return models.SessionRecord{}, fmt.Errorf("session %s feedback: %w", id, err)
		}
		report.Normalize()
		rec.Feedback = &report
	}
	return rec, nil
}

// Update writes the given fields, creating the session row when it does not
// exist yet. Field names are the JSON names of models.SessionRecord.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	query, args, err := upsertQuery(id, fields)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	return nil
}

// Complete stores the final record of a session and marks it completed.
func (s *Store) Complete(ctx context.Context, id string, rec models.CompletionRecord) error {
	transcript, err := json.Marshal(nonNilEntries(rec.Transcript))
	if err != nil {
		return err
	}
	feedback, err := json.Marshal(rec.Feedback)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO interview_sessions (id, status, completed_at, duration_minutes, score, transcript, feedback, updated_at)
		VALUES ($1, 'completed', now(), $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			status = 'completed',
			completed_at = now(),
			duration_minutes = EXCLUDED.duration_minutes,
			score = EXCLUDED.score,
			transcript = EXCLUDED.transcript,
			feedback = EXCLUDED.feedback,
			updated_at = now()`,
		id, rec.DurationMinutes, rec.Score, transcript, feedback)
	if err != nil {
		return fmt.Errorf("complete session %s: %w", id, err)
	}
	return nil
}

// SaveFeedback stores a report for a session.
func (s *Store) SaveFeedback(ctx context.Context, id string, report models.FeedbackReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO interview_sessions (id, feedback, score, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET feedback = EXCLUDED.feedback, score = EXCLUDED.score, updated_at = now()`,
		id, body, report.AverageScore())
	if err != nil {
		return fmt.Errorf("save feedback %s: %w", id, err)
	}
	return nil
}

// Feedback returns the stored report of a session, nil when none was saved.
func (s *Store) Feedback(ctx context.Context, id string) (*models.FeedbackReport, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Feedback, nil
}

// SaveSubmission records a finished or skipped coding task.
func (s *Store) SaveSubmission(ctx context.Context, sessionId string, sub models.CodingSubmission) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO coding_submissions (id, session_id, question, code, language, time_spent_ms, skipped, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING`,
		sub.ID, sessionId, sub.Question, sub.Code, sub.Language, sub.TimeSpent.Milliseconds(), sub.Skipped, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("save submission %s: %w", sub.ID, err)
	}
	return nil
}

// columns maps SessionRecord JSON names onto table columns.
var columns = map[string]string{
	"status":          "status",
	"config":          "config",
	"startedAt":       "started_at",
	"durationMinutes": "duration_minutes",
	"score":           "score",
	"transcript":      "transcript",
	"feedback":        "feedback",
}

var jsonColumns = map[string]bool{"config": true, "transcript": true, "feedback": true}

// upsertQuery builds an INSERT ... ON CONFLICT statement for fields. Columns
// are emitted in sorted order so the statement is stable.
func upsertQuery(id string, fields map[string]any) (string, []any, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := columns[k]; !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownField, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := []string{"id"}
	placeholders := []string{"$1"}
	sets := make([]string, 0, len(keys)+1)
	args := []any{id}
	for i, k := range keys {
		col := columns[k]
		v := fields[k]
		if jsonColumns[col] {
			b, err := json.Marshal(v)
			if err != nil {
				return "", nil, fmt.Errorf("encode %s: %w", k, err)
			}
			v = b
		}
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		args = append(args, v)
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(
		"INSERT INTO interview_sessions (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(sets, ", "))
	return query, args, nil
}

func unmarshalColumn(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

func nonNilEntries(e []models.TranscriptEntry) []models.TranscriptEntry {
	if e == nil {
		return []models.TranscriptEntry{}
	}
	return e
}
