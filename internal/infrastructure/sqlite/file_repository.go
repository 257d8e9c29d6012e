package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/index/domain"
	"github.com/zjrosen/smripost/internal/log"
)

const runColumns = `id, dataset, dataset_type, started_at, finished_at, file_count, unmatched_count`

// fileRepository implements domain.Repository using SQLite.
type fileRepository struct {
	db *sql.DB
}

func newFileRepository(db *sql.DB) *fileRepository {
	return &fileRepository{db: db}
}

// Ensure fileRepository implements domain.Repository.
var _ domain.Repository = (*fileRepository)(nil)

func scanRun(scanner interface{ Scan(...any) error }) (*RunModel, error) {
	var model RunModel
	err := scanner.Scan(
		&model.ID, &model.Dataset, &model.DatasetType,
		&model.StartedAt, &model.FinishedAt,
		&model.FileCount, &model.UnmatchedCount,
	)
	return &model, err
}

// ReplaceAll records run and swaps the dataset's files in one transaction.
func (r *fileRepository) ReplaceAll(ctx context.Context, run domain.Run, files []domain.File) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m := toRunModel(run)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO index_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Dataset, m.DatasetType, m.StartedAt, m.FinishedAt, m.FileCount, m.UnmatchedCount,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE dataset = ?`, run.Dataset); err != nil {
		return fmt.Errorf("failed to clear files: %w", err)
	}

	fileStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (run_id, dataset, path, matched) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare file insert: %w", err)
	}
	defer func() { _ = fileStmt.Close() }()

	entityStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO file_entities (file_id, name, value, int_value, is_int) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare entity insert: %w", err)
	}
	defer func() { _ = entityStmt.Close() }()

	for _, f := range files {
		result, err := fileStmt.ExecContext(ctx, run.ID, run.Dataset, f.Path, f.Matched)
		if err != nil {
			return fmt.Errorf("failed to insert file %s: %w", f.Path, err)
		}
		fileID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		for _, e := range toEntityModels(f.Entities) {
			if _, err := entityStmt.ExecContext(ctx, fileID, e.Name, e.Value, e.IntValue, e.IsInt); err != nil {
				return fmt.Errorf("failed to insert entity %s of %s: %w", e.Name, f.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Debug(log.CatDB, "Replaced index", "dataset", run.Dataset, "run", run.ID, "files", len(files))
	return nil
}

// Find returns the dataset's files satisfying q, ordered by path.
func (r *fileRepository) Find(ctx context.Context, dataset string, q layout.Query) ([]domain.File, error) {
	where, params := NewQueryBuilder(q).Build()
	return r.selectFiles(ctx, where, append([]any{dataset}, params...))
}

// All returns every file of the dataset, ordered by path.
func (r *fileRepository) All(ctx context.Context, dataset string) ([]domain.File, error) {
	return r.selectFiles(ctx, "1", []any{dataset})
}

func (r *fileRepository) selectFiles(ctx context.Context, where string, args []any) ([]domain.File, error) {
	//nolint:gosec // G202: where is built from literal fragments, values passed as args
	query := `
		SELECT f.id, f.path, f.matched, e.name, e.value, e.int_value, e.is_int
		FROM files f
		LEFT JOIN file_entities e ON e.file_id = f.id
		WHERE f.dataset = ? AND (` + where + `)
		ORDER BY f.path, e.name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	files := []domain.File{}
	lastID := int64(-1)
	for rows.Next() {
		var (
			id      int64
			path    string
			matched bool
			name    sql.NullString
			value   sql.NullString
			intVal  sql.NullInt64
			isInt   sql.NullBool
		)
		if err := rows.Scan(&id, &path, &matched, &name, &value, &intVal, &isInt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		if id != lastID {
			files = append(files, domain.File{Path: path, Matched: matched, Entities: layout.Entities{}})
			lastID = id
		}
		if !name.Valid {
			continue
		}
		e := EntityModel{Name: name.String, Value: value.String, IsInt: isInt.Bool}
		if intVal.Valid {
			n := intVal.Int64
			e.IntValue = &n
		}
		files[len(files)-1].Entities[e.Name] = e.value()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}
	return files, nil
}

// LatestRun returns the most recently finished run of the dataset.
func (r *fileRepository) LatestRun(ctx context.Context, dataset string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM index_runs WHERE dataset = ? ORDER BY finished_at DESC, rowid DESC LIMIT 1`,
		dataset,
	)
	model, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.RunNotFoundError{Dataset: dataset}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return model.toDomain(), nil
}

// Close is a no-op; the connection belongs to DB.
func (r *fileRepository) Close() error {
	return nil
}
