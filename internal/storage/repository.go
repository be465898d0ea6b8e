package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sheetlink/internal/core"

	_ "modernc.org/sqlite"
)

// ErrSnapshotNotFound is returned when no snapshot matches the query.
var ErrSnapshotNotFound = errors.New("snapshot not found")

type (
	// Snapshot is the metadata of one stored worksheet copy.
	Snapshot struct {
		ID            int64
		SpreadsheetID string
		Title         string
		Worksheet     int
		CreatedAt     time.Time
	}

	// Repository persists worksheet snapshots in SQLite so pushes can
	// be queued and replayed without re-reading the remote sheet.
	Repository struct {
		db *sql.DB
	}
)

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveSnapshot stores a table as a snapshot of the given worksheet and
// returns the snapshot ID. Column order and zero-row tables survive the
// round trip.
func (r *Repository) SaveSnapshot(ctx context.Context, spreadsheetID, title string, worksheet int, t core.Table) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (spreadsheet_id, title, worksheet, created_at) VALUES (?, ?, ?, ?)`,
		spreadsheetID, title, worksheet, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot id: %w", err)
	}

	for position, name := range t.Headers() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_columns (snapshot_id, position, name) VALUES (?, ?, ?)`,
			id, position, name); err != nil {
			return 0, fmt.Errorf("insert column %q: %w", name, err)
		}
	}

	for row := 0; row < t.Rows(); row++ {
		for col := 0; col < t.Cols(); col++ {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO snapshot_cells (snapshot_id, row, col, value) VALUES (?, ?, ?, ?)`,
				id, row, col, t.Cell(row, col)); err != nil {
				return 0, fmt.Errorf("insert cell (%d,%d): %w", row, col, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}
	return id, nil
}

// GetSnapshot loads a snapshot and its table by ID.
func (r *Repository) GetSnapshot(ctx context.Context, id int64) (Snapshot, core.Table, error) {
	var meta Snapshot
	err := r.db.QueryRowContext(ctx,
		`SELECT id, spreadsheet_id, title, worksheet, created_at FROM snapshots WHERE id = ?`, id).
		Scan(&meta.ID, &meta.SpreadsheetID, &meta.Title, &meta.Worksheet, &meta.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, core.Table{}, fmt.Errorf("%w: id %d", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return Snapshot{}, core.Table{}, fmt.Errorf("select snapshot: %w", err)
	}

	t, err := r.loadTable(ctx, meta.ID)
	if err != nil {
		return Snapshot{}, core.Table{}, err
	}
	return meta, t, nil
}

// LatestSnapshot loads the most recent snapshot of a worksheet.
func (r *Repository) LatestSnapshot(ctx context.Context, spreadsheetID string, worksheet int) (Snapshot, core.Table, error) {
	var meta Snapshot
	err := r.db.QueryRowContext(ctx,
		`SELECT id, spreadsheet_id, title, worksheet, created_at FROM snapshots
		 WHERE spreadsheet_id = ? AND worksheet = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, spreadsheetID, worksheet).
		Scan(&meta.ID, &meta.SpreadsheetID, &meta.Title, &meta.Worksheet, &meta.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, core.Table{}, fmt.Errorf("%w: spreadsheet %s worksheet %d", ErrSnapshotNotFound, spreadsheetID, worksheet)
	}
	if err != nil {
		return Snapshot{}, core.Table{}, fmt.Errorf("select latest snapshot: %w", err)
	}

	t, err := r.loadTable(ctx, meta.ID)
	if err != nil {
		return Snapshot{}, core.Table{}, err
	}
	return meta, t, nil
}

// ListSnapshots returns snapshot metadata for a spreadsheet, newest
// first.
func (r *Repository) ListSnapshots(ctx context.Context, spreadsheetID string) ([]Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, spreadsheet_id, title, worksheet, created_at FROM snapshots
		 WHERE spreadsheet_id = ? ORDER BY created_at DESC, id DESC`, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var meta Snapshot
		if err := rows.Scan(&meta.ID, &meta.SpreadsheetID, &meta.Title, &meta.Worksheet, &meta.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// DeleteSnapshotsBefore removes snapshots older than the cutoff and
// returns how many were deleted.
func (r *Repository) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete snapshots: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (r *Repository) loadTable(ctx context.Context, id int64) (core.Table, error) {
	colRows, err := r.db.QueryContext(ctx,
		`SELECT name FROM snapshot_columns WHERE snapshot_id = ? ORDER BY position`, id)
	if err != nil {
		return core.Table{}, fmt.Errorf("select columns: %w", err)
	}
	defer colRows.Close()

	var headers []string
	for colRows.Next() {
		var name string
		if err := colRows.Scan(&name); err != nil {
			return core.Table{}, fmt.Errorf("scan column: %w", err)
		}
		headers = append(headers, name)
	}
	if err := colRows.Err(); err != nil {
		return core.Table{}, err
	}
	if len(headers) == 0 {
		return core.NewTable()
	}

	columns := make([]core.Column, len(headers))
	for i, h := range headers {
		columns[i] = core.Column{Name: h}
	}

	cellRows, err := r.db.QueryContext(ctx,
		`SELECT row, col, value FROM snapshot_cells WHERE snapshot_id = ? ORDER BY row, col`, id)
	if err != nil {
		return core.Table{}, fmt.Errorf("select cells: %w", err)
	}
	defer cellRows.Close()

	for cellRows.Next() {
		var row, col int
		var value string
		if err := cellRows.Scan(&row, &col, &value); err != nil {
			return core.Table{}, fmt.Errorf("scan cell: %w", err)
		}
		if col >= len(columns) {
			return core.Table{}, fmt.Errorf("cell column %d out of range for snapshot %d", col, id)
		}
		for len(columns[col].Values) <= row {
			columns[col].Values = append(columns[col].Values, "")
		}
		columns[col].Values[row] = value
	}
	if err := cellRows.Err(); err != nil {
		return core.Table{}, err
	}

	// Pad columns to equal length in case of sparse rows.
	maxLen := 0
	for _, c := range columns {
		if len(c.Values) > maxLen {
			maxLen = len(c.Values)
		}
	}
	for i := range columns {
		for len(columns[i].Values) < maxLen {
			columns[i].Values = append(columns[i].Values, "")
		}
	}

	return core.NewTable(columns...)
}
