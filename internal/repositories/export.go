package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// ExportRepository records completed library exports.
type ExportRepository struct {
	db *sql.DB
}

// NewExportRepository creates a new [ExportRepository] with the given database connection
func NewExportRepository(db *sql.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create inserts the record, assigning an ID when empty.
func (r *ExportRepository) Create(rec *models.ExportRecord) error {
	if rec.ID == "" {
		rec.ID = shared.GenerateID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.OutputDir == "" || rec.Format == "" {
		return fmt.Errorf("%w: output dir and format are required", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO exports (id, output_dir, format, shelves, volumes, failed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, rec.ID, rec.OutputDir, rec.Format, rec.Shelves, rec.Volumes, rec.Failed, rec.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert export: %w", err)
	}
	return nil
}

// List returns the most recent exports first, up to limit (0 means all).
func (r *ExportRepository) List(limit int) ([]*models.ExportRecord, error) {
	query := `
		SELECT id, output_dir, format, shelves, volumes, failed, created_at
		FROM exports
		ORDER BY created_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	defer rows.Close()

	var records []*models.ExportRecord
	for rows.Next() {
		rec := &models.ExportRecord{}
		if err := rows.Scan(&rec.ID, &rec.OutputDir, &rec.Format, &rec.Shelves, &rec.Volumes, &rec.Failed, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
