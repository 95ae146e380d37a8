// Package memory is an in-process record store with the same contract as
// the SQLite repository. It backs the "memory" data backend and tests.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/adapters"
	"budget/internal/ports"
)

// SeedFile is read from the data directory by NewFromFiles.
const SeedFile = "seed_items.json"

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []adapters.Record
	now    func() time.Time
}

func New(seed ...adapters.Record) *Store {
	s := &Store{nextID: 1, now: func() time.Time { return time.Now().UTC() }}
	for _, r := range seed {
		if r.ID != nil && *r.ID >= s.nextID {
			s.nextID = *r.ID + 1
		}
	}
	for _, r := range seed {
		r = clone(r)
		if r.ID == nil {
			id := s.nextID
			s.nextID++
			r.ID = &id
		}
		s.stamp(&r, true)
		s.items = append(s.items, r)
	}
	slices.SortFunc(s.items, func(a, b adapters.Record) int { return cmp.Compare(*a.ID, *b.ID) })
	return s
}

// NewFromFiles seeds the store from base/seed_items.json when present. A
// missing or malformed file yields an empty store.
func NewFromFiles(base string) *Store {
	raw, err := os.ReadFile(filepath.Join(base, SeedFile))
	if err != nil {
		return New()
	}
	var seed []adapters.Record
	if err := json.Unmarshal(raw, &seed); err != nil {
		return New()
	}
	return New(seed...)
}

// ListRecords implements ports.RecordStore
func (s *Store) ListRecords(_ context.Context) ([]adapters.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]adapters.Record, len(s.items))
	for i, r := range s.items {
		out[i] = clone(r)
	}
	return out, nil
}

// GetRecord implements ports.RecordStore
func (s *Store) GetRecord(_ context.Context, id int64) (adapters.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return adapters.Record{}, ports.ErrNotFound
	}
	return clone(s.items[i]), nil
}

// InsertRecord implements ports.RecordStore
func (s *Store) InsertRecord(_ context.Context, r adapters.Record) (adapters.Record, error) {
	if err := validate(r); err != nil {
		return adapters.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r = clone(r)
	id := s.nextID
	s.nextID++
	r.ID = &id
	r.HTML = nil
	r.CreatedAt, r.UpdatedAt = nil, nil
	if r.Required == nil {
		no := "No"
		r.Required = &no
	}
	s.stamp(&r, true)
	s.items = append(s.items, r)
	return clone(r), nil
}

// UpdateRecordField implements ports.RecordStore
func (s *Store) UpdateRecordField(_ context.Context, id int64, column string, value any) (adapters.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return adapters.Record{}, ports.ErrNotFound
	}
	r := clone(s.items[i])
	if err := setColumn(&r, column, value); err != nil {
		return adapters.Record{}, err
	}
	if err := validate(r); err != nil {
		return adapters.Record{}, err
	}
	s.stamp(&r, false)
	s.items[i] = r
	return clone(r), nil
}

// DeleteRecord implements ports.RecordStore
func (s *Store) DeleteRecord(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true, nil
}

// SetHTML implements ports.HTMLWriter
func (s *Store) SetHTML(_ context.Context, id int64, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ports.ErrNotFound
	}
	s.items[i].HTML = &html
	return nil
}

func (s *Store) indexOf(id int64) int {
	for i, r := range s.items {
		if *r.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) stamp(r *adapters.Record, created bool) {
	now := s.now()
	if created && r.CreatedAt == nil {
		r.CreatedAt = &now
	}
	if created && r.UpdatedAt != nil {
		return
	}
	r.UpdatedAt = &now
}

func validate(r adapters.Record) error {
	if r.Category == nil || strings.TrimSpace(*r.Category) == "" {
		return fmt.Errorf("%w: category is required", ports.ErrRejected)
	}
	if r.Item == nil || strings.TrimSpace(*r.Item) == "" {
		return fmt.Errorf("%w: item is required", ports.ErrRejected)
	}
	return nil
}

func setColumn(r *adapters.Record, column string, value any) error {
	switch column {
	case "category":
		return setText(&r.Category, column, value)
	case "item":
		return setText(&r.Item, column, value)
	case "required":
		return setText(&r.Required, column, value)
	case "notes":
		return setText(&r.Notes, column, value)
	case "md_content":
		return setText(&r.MDContent, column, value)
	case "unit_cost":
		return setNumber(&r.UnitCost, column, value)
	case "quantity":
		return setNumber(&r.Quantity, column, value)
	case "sub_total":
		return setNumber(&r.SubTotal, column, value)
	}
	return fmt.Errorf("%w: unknown column %q", ports.ErrRejected, column)
}

func setText(dst **string, column string, value any) error {
	switch v := value.(type) {
	case nil:
		*dst = nil
	case string:
		*dst = &v
	default:
		return fmt.Errorf("%w: %s expects text, got %T", ports.ErrRejected, column, value)
	}
	return nil
}

func setNumber(dst *decimal.NullDecimal, column string, value any) error {
	switch v := value.(type) {
	case nil:
		*dst = decimal.NullDecimal{}
	case decimal.Decimal:
		*dst = decimal.NewNullDecimal(v)
	case decimal.NullDecimal:
		*dst = v
	default:
		return fmt.Errorf("%w: %s expects a number, got %T", ports.ErrRejected, column, value)
	}
	return nil
}

func clone(r adapters.Record) adapters.Record {
	c := r
	c.ID = clonePtr(r.ID)
	c.Category = clonePtr(r.Category)
	c.Item = clonePtr(r.Item)
	c.Required = clonePtr(r.Required)
	c.Notes = clonePtr(r.Notes)
	c.MDContent = clonePtr(r.MDContent)
	c.HTML = clonePtr(r.HTML)
	c.CreatedAt = clonePtr(r.CreatedAt)
	c.UpdatedAt = clonePtr(r.UpdatedAt)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
