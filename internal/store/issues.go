package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/fixdesk/internal/catalog"
)

// ReadAll returns every issue in insertion order.
func (s *Store) ReadAll(ctx context.Context) ([]catalog.IssueRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, issue, fix, image, created_by, created_at_unix
		 FROM issues
		 ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	records := []catalog.IssueRecord{}
	for rows.Next() {
		var (
			record        catalog.IssueRecord
			image         sql.NullString
			createdBy     sql.NullString
			createdAtUnix int64
		)
		if err := rows.Scan(&record.ID, &record.Issue, &record.Fix, &image, &createdBy, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		record.Image = image.String
		record.CreatedBy = createdBy.String
		if createdAtUnix > 0 {
			record.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return records, nil
}

func (s *Store) Append(ctx context.Context, record catalog.IssueRecord) error {
	id := strings.TrimSpace(record.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO issues (id, issue, fix, image, created_by, created_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		record.Issue,
		record.Fix,
		nullIfEmpty(record.Image),
		nullIfEmpty(record.CreatedBy),
		createdAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}
