package grid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists sheets in a single SQLite file (modernc driver, no cgo).
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("grid sqlite path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open grid sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate grid sqlite: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sheets (
			name TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS cells (
			sheet TEXT    NOT NULL,
			row   INTEGER NOT NULL,
			col   INTEGER NOT NULL,
			kind  INTEGER NOT NULL,
			text  TEXT    NOT NULL,
			PRIMARY KEY (sheet, row, col)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) exists(ctx context.Context, q queryer, sheet string) error {
	var name string
	err := q.QueryRowContext(ctx, `SELECT name FROM sheets WHERE name = ?`, sheet).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) extents(ctx context.Context, sheet string) (int, int, error) {
	var row, col sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(row), MAX(col) FROM cells WHERE sheet = ?`, sheet).Scan(&row, &col)
	if err != nil {
		return 0, 0, err
	}
	return int(row.Int64), int(col.Int64), nil
}

func (s *SQLiteStore) Read(ctx context.Context, sheet string, r Range) ([][]Value, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	sheet = strings.TrimSpace(sheet)
	if err := s.exists(ctx, s.db, sheet); err != nil {
		return nil, err
	}
	lastRow, lastCol, err := s.extents(ctx, sheet)
	if err != nil {
		return nil, err
	}
	r = r.resolve(lastRow, lastCol)
	if r.EndRow < r.Row || r.EndCol < r.Col {
		return nil, nil
	}
	out := make([][]Value, r.EndRow-r.Row+1)
	for i := range out {
		out[i] = make([]Value, r.EndCol-r.Col+1)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT row, col, kind, text FROM cells
		 WHERE sheet = ? AND row BETWEEN ? AND ? AND col BETWEEN ? AND ?`,
		sheet, r.Row, r.EndRow, r.Col, r.EndCol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			row, col int
			kind     Kind
			text     string
		)
		if err := rows.Scan(&row, &col, &kind, &text); err != nil {
			return nil, err
		}
		v, err := decodeValue(kind, text)
		if err != nil {
			return nil, fmt.Errorf("%s!%s: %w", sheet, Cell(row, col), err)
		}
		out[row-r.Row][col-r.Col] = v
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Write(ctx context.Context, sheet string, row, col int, values [][]Value) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("write origin must be >= 1, got row=%d col=%d", row, col)
	}
	sheet = strings.TrimSpace(sheet)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sheets(name) VALUES (?)`, sheet); err != nil {
		return err
	}
	for i, line := range values {
		for j, v := range line {
			if v.IsEmpty() {
				if _, err := tx.ExecContext(ctx,
					`DELETE FROM cells WHERE sheet = ? AND row = ? AND col = ?`,
					sheet, row+i, col+j); err != nil {
					return err
				}
				continue
			}
			kind, text := v.encode()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cells(sheet, row, col, kind, text) VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT(sheet, row, col) DO UPDATE SET kind = excluded.kind, text = excluded.text`,
				sheet, row+i, col+j, kind, text); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Clear(ctx context.Context, sheet string, r Range) error {
	if err := r.validate(); err != nil {
		return err
	}
	sheet = strings.TrimSpace(sheet)
	if err := s.exists(ctx, s.db, sheet); err != nil {
		return err
	}
	lastRow, lastCol, err := s.extents(ctx, sheet)
	if err != nil {
		return err
	}
	r = r.resolve(lastRow, lastCol)
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM cells WHERE sheet = ? AND row BETWEEN ? AND ? AND col BETWEEN ? AND ?`,
		sheet, r.Row, r.EndRow, r.Col, r.EndCol)
	return err
}

func (s *SQLiteStore) LastRow(ctx context.Context, sheet string) (int, error) {
	sheet = strings.TrimSpace(sheet)
	if err := s.exists(ctx, s.db, sheet); err != nil {
		return 0, err
	}
	row, _, err := s.extents(ctx, sheet)
	return row, err
}

func (s *SQLiteStore) LastColumn(ctx context.Context, sheet string) (int, error) {
	sheet = strings.TrimSpace(sheet)
	if err := s.exists(ctx, s.db, sheet); err != nil {
		return 0, err
	}
	_, col, err := s.extents(ctx, sheet)
	return col, err
}

func (s *SQLiteStore) EnsureSheet(ctx context.Context, sheet string) error {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return fmt.Errorf("sheet name cannot be empty")
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO sheets(name) VALUES (?)`, sheet)
	return err
}

func (s *SQLiteStore) DeleteSheet(ctx context.Context, sheet string) error {
	sheet = strings.TrimSpace(sheet)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := s.exists(ctx, tx, sheet); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cells WHERE sheet = ?`, sheet); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sheets WHERE name = ?`, sheet); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
