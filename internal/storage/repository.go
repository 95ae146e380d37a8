package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"budget/internal/adapters"
	"budget/internal/ports"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
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

	if _, err := MigrateUp(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListRecords implements ports.RecordStore
func (r *SQLiteRepository) ListRecords(ctx context.Context) ([]adapters.Record, error) {
	items, err := r.queries.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budget items: %w", err)
	}
	return items, nil
}

// GetRecord implements ports.RecordStore
func (r *SQLiteRepository) GetRecord(ctx context.Context, id int64) (adapters.Record, error) {
	rec, err := r.queries.GetItem(ctx, id)
	if err != nil {
		return adapters.Record{}, fmt.Errorf("get budget item %d: %w", id, translate(err))
	}
	return rec, nil
}

// InsertRecord implements ports.RecordStore
func (r *SQLiteRepository) InsertRecord(ctx context.Context, rec adapters.Record) (adapters.Record, error) {
	created, err := r.queries.CreateItem(ctx, rec)
	if err != nil {
		return adapters.Record{}, fmt.Errorf("create budget item: %w", translate(err))
	}

	slog.InfoContext(ctx, "Budget item saved to SQLite",
		"id", *created.ID,
		"category", deref(created.Category),
		"item", deref(created.Item))

	return created, nil
}

// UpdateRecordField implements ports.RecordStore
func (r *SQLiteRepository) UpdateRecordField(ctx context.Context, id int64, column string, value any) (adapters.Record, error) {
	if !updatableColumns[column] {
		return adapters.Record{}, fmt.Errorf("update budget item %d: column %q: %w", id, column, ports.ErrRejected)
	}
	rec, err := r.queries.UpdateItemField(ctx, id, column, value)
	if err != nil {
		return adapters.Record{}, fmt.Errorf("update budget item %d %s: %w", id, column, translate(err))
	}
	return rec, nil
}

// DeleteRecord implements ports.RecordStore
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, id int64) (bool, error) {
	n, err := r.queries.DeleteItem(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete budget item %d: %w", id, err)
	}
	return n > 0, nil
}

// SetHTML implements ports.HTMLWriter
func (r *SQLiteRepository) SetHTML(ctx context.Context, id int64, html string) error {
	n, err := r.queries.SetItemHTML(ctx, id, html)
	if err != nil {
		return fmt.Errorf("set html for budget item %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("set html for budget item %d: %w", id, ports.ErrNotFound)
	}
	return nil
}

// translate maps driver errors onto the port's sentinel errors.
func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrNotFound
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %s", ports.ErrRejected, serr.Error())
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
