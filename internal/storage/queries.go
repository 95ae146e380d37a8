package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"budget/internal/adapters"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const itemColumns = `id, category, item, required, notes, unit_cost, quantity, sub_total, md_content, html, created_at, updated_at`

const listItems = `SELECT ` + itemColumns + ` FROM budget_items ORDER BY id ASC`

const getItem = `SELECT ` + itemColumns + ` FROM budget_items WHERE id = ?`

const createItem = `INSERT INTO budget_items (
    category, item, required, notes, unit_cost, quantity, sub_total, md_content
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + itemColumns

const deleteItem = `DELETE FROM budget_items WHERE id = ?`

const setItemHTML = `UPDATE budget_items SET html = ? WHERE id = ?`

// updatableColumns guards the column name interpolated into updateItemField.
var updatableColumns = map[string]bool{
	"category":   true,
	"item":       true,
	"required":   true,
	"notes":      true,
	"unit_cost":  true,
	"quantity":   true,
	"sub_total":  true,
	"md_content": true,
}

func updateItemField(column string) string {
	return fmt.Sprintf(`UPDATE budget_items
SET %s = ?, updated_at = strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ', 'now')
WHERE id = ?
RETURNING %s`, column, itemColumns)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (adapters.Record, error) {
	var (
		r                    adapters.Record
		id                   int64
		category, item       sql.NullString
		required, notes      sql.NullString
		mdContent, html      sql.NullString
		createdAt, updatedAt sql.NullString
	)
	err := row.Scan(&id, &category, &item, &required, &notes,
		&r.UnitCost, &r.Quantity, &r.SubTotal, &mdContent, &html, &createdAt, &updatedAt)
	if err != nil {
		return adapters.Record{}, err
	}
	r.ID = &id
	r.Category = nullString(category)
	r.Item = nullString(item)
	r.Required = nullString(required)
	r.Notes = nullString(notes)
	r.MDContent = nullString(mdContent)
	r.HTML = nullString(html)
	r.CreatedAt = parseTimestamp(createdAt)
	r.UpdatedAt = parseTimestamp(updatedAt)
	return r, nil
}

func (q *Queries) ListItems(ctx context.Context) ([]adapters.Record, error) {
	rows, err := q.db.QueryContext(ctx, listItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []adapters.Record
	for rows.Next() {
		r, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (q *Queries) GetItem(ctx context.Context, id int64) (adapters.Record, error) {
	return scanItem(q.db.QueryRowContext(ctx, getItem, id))
}

func (q *Queries) CreateItem(ctx context.Context, r adapters.Record) (adapters.Record, error) {
	row := q.db.QueryRowContext(ctx, createItem,
		r.Category, r.Item, r.Required, r.Notes, r.UnitCost, r.Quantity, r.SubTotal, r.MDContent)
	return scanItem(row)
}

func (q *Queries) UpdateItemField(ctx context.Context, id int64, column string, value any) (adapters.Record, error) {
	return scanItem(q.db.QueryRowContext(ctx, updateItemField(column), value, id))
}

func (q *Queries) DeleteItem(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteItem, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) SetItemHTML(ctx context.Context, id int64, html string) (int64, error) {
	res, err := q.db.ExecContext(ctx, setItemHTML, html, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05"}

func parseTimestamp(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s.String); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
