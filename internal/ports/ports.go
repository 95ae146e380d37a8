// Package ports declares the outbound interfaces the item service depends on.
package ports

import (
	"context"
	"errors"

	"budget/internal/adapters"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrRejected is returned when the store refuses a payload, e.g. a
	// missing required text column.
	ErrRejected = errors.New("record rejected by store")
)

// Ports for outbound adapters.
type (
	// RecordStore is the external relational store holding budget_items.
	RecordStore interface {
		// ListRecords returns every record ordered by id ascending.
		ListRecords(ctx context.Context) ([]adapters.Record, error)
		// InsertRecord stores r and returns it with the generated id and
		// timestamps.
		InsertRecord(ctx context.Context, r adapters.Record) (adapters.Record, error)
		// UpdateRecordField sets a single column and returns the full record.
		UpdateRecordField(ctx context.Context, id int64, column string, value any) (adapters.Record, error)
		// DeleteRecord reports whether a row was removed.
		DeleteRecord(ctx context.Context, id int64) (bool, error)
		GetRecord(ctx context.Context, id int64) (adapters.Record, error)
	}

	// HTMLWriter stores a rendered copy of md_content in the html column.
	HTMLWriter interface {
		SetHTML(ctx context.Context, id int64, html string) error
	}
)
