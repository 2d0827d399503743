package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/google/uuid"
)

// Placeholders use the $N form, which both SQLite and PostgreSQL accept.
const (
	createTableSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			id           TEXT PRIMARY KEY,
			created_at   TEXT NOT NULL,
			patient_name TEXT NOT NULL DEFAULT '',
			department   TEXT NOT NULL,
			rating_1     TEXT NOT NULL DEFAULT '',
			rating_2     TEXT NOT NULL DEFAULT '',
			rating_3     TEXT NOT NULL DEFAULT '',
			rating_4     TEXT NOT NULL DEFAULT '',
			rating_5     TEXT NOT NULL DEFAULT '',
			review       TEXT NOT NULL DEFAULT ''
		)`

	insertRowSQL = `
		INSERT INTO %s (id, created_at, patient_name, department, rating_1, rating_2, rating_3, rating_4, rating_5, review)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	selectRowsSQL = `
		SELECT id, created_at, patient_name, department, rating_1, rating_2, rating_3, rating_4, rating_5, review
		FROM %s
		ORDER BY created_at`
)

// FeedbackSQLRepository stores each category in its own table.
type FeedbackSQLRepository struct {
	db *sql.DB
}

func NewFeedbackSQLRepository(db *sql.DB) *FeedbackSQLRepository {
	return &FeedbackSQLRepository{db: db}
}

// EnsureSchema creates the per-category tables if they do not exist.
func (s *FeedbackSQLRepository) EnsureSchema(ctx context.Context) error {
	for _, c := range feedback.Categories {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(createTableSQL, c.Table())); err != nil {
			return fmt.Errorf("create table %s: %w", c.Table(), err)
		}
	}
	return nil
}

func (s *FeedbackSQLRepository) AppendRow(ctx context.Context, category feedback.Category, record feedback.Record) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", feedback.ErrUnknownCategory, category)
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(insertRowSQL, category.Table()),
		record.ID,
		record.Timestamp,
		record.PatientName,
		record.Department,
		record.Ratings[0],
		record.Ratings[1],
		record.Ratings[2],
		record.Ratings[3],
		record.Ratings[4],
		record.Review,
	)
	if err != nil {
		return fmt.Errorf("insert AppendRow: %w", err)
	}
	return nil
}

func (s *FeedbackSQLRepository) ReadAll(ctx context.Context, category feedback.Category) ([]feedback.Record, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", feedback.ErrUnknownCategory, category)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(selectRowsSQL, category.Table()))
	if err != nil {
		return nil, fmt.Errorf("query ReadAll: %w", err)
	}
	defer rows.Close()

	var results []feedback.Record
	for rows.Next() {
		var r feedback.Record
		if err := rows.Scan(
			&r.ID,
			&r.Timestamp,
			&r.PatientName,
			&r.Department,
			&r.Ratings[0],
			&r.Ratings[1],
			&r.Ratings[2],
			&r.Ratings[3],
			&r.Ratings[4],
			&r.Review,
		); err != nil {
			return nil, fmt.Errorf("scan ReadAll row: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ReadAll: %w", err)
	}
	return results, nil
}

func (s *FeedbackSQLRepository) Close() error {
	return s.db.Close()
}
