// Package editor holds the application state of a single-tenant budget
// table: the canonical collection, the filter and sort controls, and the
// inline-edit state of at most one row.
//
// All transitions run under one mutex. Repository calls happen outside the
// lock and reconcile with canonical state when they complete, so two saves
// on different fields of the same row may finish in any order; each
// applies only its own field.
package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/pipeline"
)

// Repository is the subset of services.ItemService the session needs.
type Repository interface {
	ListAll(ctx context.Context) ([]core.BudgetItem, error)
	Create(ctx context.Context, item core.BudgetItem) (core.BudgetItem, error)
	UpdateField(ctx context.Context, id int64, field core.Field, value any) (core.BudgetItem, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) (core.BudgetItem, error)
}

type State int

const (
	Idle State = iota
	Editing
	Saving
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Saving:
		return "saving"
	}
	return "idle"
}

type saveKey struct {
	id    core.ItemID
	field core.Field
}

type Session struct {
	repo   Repository
	logger *log.Logger
	reload singleflight.Group

	mu       sync.Mutex
	pipe     *pipeline.Pipeline
	editing  core.ItemID
	isEdit   bool
	inflight map[saveKey]bool
	loadErr  error
	loaded   bool
}

func NewSession(repo Repository, logger *log.Logger) *Session {
	return &Session{
		repo:     repo,
		logger:   logger.WithComponent(log.ComponentEditor),
		pipe:     pipeline.New(nil),
		inflight: map[saveKey]bool{},
	}
}

// Snapshot is a consistent copy of everything needed to render the table.
type Snapshot struct {
	View       pipeline.View
	Filter     pipeline.Filter
	Sort       pipeline.Sort
	Categories []string
	EditingKey string // empty when Idle
	Saving     map[string]bool
	LoadErr    error
	Loaded     bool
}

// IsEditing reports whether the row with key is in edit mode.
func (s Snapshot) IsEditing(key string) bool { return s.EditingKey != "" && s.EditingKey == key }

// IsSaving reports whether a save of field on row key is in flight.
func (s Snapshot) IsSaving(key string, f core.Field) bool { return s.Saving[key+"/"+string(f)] }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		View:       s.pipe.ComputeView(),
		Filter:     s.pipe.Filter(),
		Sort:       s.pipe.Sort(),
		Categories: s.pipe.Categories(),
		Saving:     map[string]bool{},
		LoadErr:    s.loadErr,
		Loaded:     s.loaded,
	}
	if s.isEdit {
		snap.EditingKey = s.editing.String()
	}
	for k := range s.inflight {
		snap.Saving[k.id.String()+"/"+string(k.field)] = true
	}
	return snap
}

// State reports the edit state of row id and, when Saving, one field being
// saved.
func (s *Session) State(id core.ItemID) (State, core.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isEdit || s.editing != id {
		return Idle, ""
	}
	for k := range s.inflight {
		if k.id == id {
			return Saving, k.field
		}
	}
	return Editing, ""
}

// Item returns the canonical copy of a row.
func (s *Session) Item(id core.ItemID) (core.BudgetItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipe.Find(id)
}

// reloadTimeout bounds a shared listing once it no longer follows any one
// caller's context.
const reloadTimeout = 30 * time.Second

// Reload replaces canonical with a fresh listing. Concurrent calls share
// one request, which runs detached from the callers and applies its own
// result, so a caller that goes away neither fails the others nor clears
// the table. On a store failure canonical is left empty and the error is
// kept for the view. An unsaved row survives a successful reload.
func (s *Session) Reload(ctx context.Context) error {
	ch := s.reload.DoChan("list", func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reloadTimeout)
		defer cancel()
		items, err := s.repo.ListAll(lctx)
		s.applyListing(lctx, items, err)
		return nil, err
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) applyListing(ctx context.Context, items []core.BudgetItem, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	if err != nil {
		s.pipe.Replace(nil)
		s.loadErr = err
		s.isEdit = false
		s.logger.ErrorContext(ctx, "Failed to load budget items", log.FieldError, err)
		return
	}

	pending, hasPending := s.pipe.Find(core.PendingID())
	s.pipe.Replace(items)
	if hasPending {
		s.pipe.InsertPending(pending)
	}
	s.loadErr = nil
	if s.isEdit {
		if _, ok := s.pipe.Find(s.editing); !ok {
			s.isEdit = false
		}
	}
	s.logger.DebugContext(ctx, "Loaded budget items", log.FieldCount, s.pipe.Len())
}

// EnsureLoaded performs the initial load once.
func (s *Session) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	return s.Reload(ctx)
}

func (s *Session) SetFilter(f pipeline.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipe.SetFilter(f)
}

// ToggleSort activates a column header.
func (s *Session) ToggleSort(f core.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pipe.ToggleSort(f) {
		return &core.ValidationError{Field: string(f), Reason: "column is not sortable"}
	}
	return nil
}

// BeginEdit puts row id into edit mode. A row already being edited is
// returned to Idle first; its unsaved keystrokes are abandoned.
func (s *Session) BeginEdit(id core.ItemID) (previous core.ItemID, hadPrevious bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pipe.Find(id); !ok {
		return core.ItemID{}, false, core.ErrUnknownItem
	}
	previous, hadPrevious = s.editing, s.isEdit && s.editing != id
	s.editing, s.isEdit = id, true
	return previous, hadPrevious, nil
}

// Done ends editing of row id.
func (s *Session) Done(id core.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isEdit || s.editing != id {
		return core.ErrNotEditing
	}
	s.isEdit = false
	return nil
}

// Cancel ends editing of row id. Fields already blurred have been saved
// independently; the caller re-renders from canonical, dropping whatever
// the focused input held.
func (s *Session) Cancel(id core.ItemID) error {
	return s.Done(id)
}

// AddRow inserts the unsaved row at the top and starts editing it. When one
// already exists it is reused.
func (s *Session) AddRow() core.BudgetItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.pipe.Find(core.PendingID()); ok {
		s.editing, s.isEdit = it.ID, true
		return it
	}
	it := core.NewPendingItem()
	s.pipe.InsertPending(it)
	s.editing, s.isEdit = it.ID, true
	return it
}

// CommitResult describes the outcome of a field blur.
type CommitResult struct {
	// Item is the row as it should now be displayed: the saved value on
	// success, the last known-good value on failure.
	Item core.BudgetItem
	// Changed is false when the value equalled the last known value and
	// nothing was done.
	Changed bool
	// Persisted is true when the store accepted a change.
	Persisted bool
	// Created is true when an unsaved row was promoted; PreviousKey then
	// holds its old key.
	Created     bool
	PreviousKey string
}

// Commit handles a field losing focus with raw as its new text.
func (s *Session) Commit(ctx context.Context, id core.ItemID, f core.Field, raw string) (CommitResult, error) {
	if !f.Editable() {
		return CommitResult{}, &core.ValidationError{Field: string(f), Reason: "field is not editable"}
	}

	s.mu.Lock()
	if !s.isEdit || s.editing != id {
		s.mu.Unlock()
		return CommitResult{}, core.ErrNotEditing
	}
	current, ok := s.pipe.Find(id)
	if !ok {
		s.mu.Unlock()
		return CommitResult{}, core.ErrUnknownItem
	}
	next, err := current.WithField(f, raw)
	if err != nil {
		s.mu.Unlock()
		return CommitResult{Item: current}, err
	}
	if next.FieldText(f) == current.FieldText(f) {
		s.mu.Unlock()
		return CommitResult{Item: current}, nil
	}
	if id.IsPending() {
		return s.commitPendingLocked(ctx, current, next, f)
	}

	key := saveKey{id: id, field: f}
	if s.inflight[key] {
		s.mu.Unlock()
		return CommitResult{Item: current}, core.ErrSaveInProgress
	}
	s.inflight[key] = true
	s.mu.Unlock()

	value, _ := id.Value()
	stored, err := s.repo.UpdateField(ctx, value, f, next.FieldValue(f))

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
	if err != nil {
		s.logger.WarnContext(ctx, "Field save failed",
			log.FieldOperation, log.OpUpdate, log.FieldItemID, id.String(), log.FieldItemField, string(f), log.FieldError, err)
		known, _ := s.pipe.Find(id)
		return CommitResult{Item: known, Changed: true}, err
	}
	if !s.pipe.ApplyField(id, f, stored) {
		// Row deleted while the save was in flight.
		return CommitResult{Item: stored, Changed: true, Persisted: true}, nil
	}
	saved, _ := s.pipe.Find(id)
	return CommitResult{Item: saved, Changed: true, Persisted: true}, nil
}

// commitPendingLocked updates the unsaved row and creates it once category
// and item are both set. Called with s.mu held; returns with it released.
func (s *Session) commitPendingLocked(ctx context.Context, current, next core.BudgetItem, f core.Field) (CommitResult, error) {
	key := saveKey{id: core.PendingID(), field: core.FieldID}
	if s.inflight[key] {
		s.mu.Unlock()
		return CommitResult{Item: current}, core.ErrSaveInProgress
	}

	s.pipe.Set(next)
	if !next.ReadyToCreate() {
		s.mu.Unlock()
		return CommitResult{Item: next, Changed: true}, nil
	}

	s.inflight[key] = true
	s.mu.Unlock()

	created, err := s.repo.Create(ctx, next)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
	if err != nil {
		// Revert the blurred field so the next blur retries the create.
		if pending, ok := s.pipe.Find(core.PendingID()); ok {
			pending.CopyField(f, current)
			s.pipe.Set(pending)
			next = pending
		}
		s.logger.WarnContext(ctx, "Create failed",
			log.FieldOperation, log.OpCreate, log.FieldCategory, next.Category, log.FieldItemName, next.Item, log.FieldError, err)
		return CommitResult{Item: next, Changed: true}, err
	}

	switch {
	case s.pipe.ReplaceAt(core.PendingID(), created):
	case s.pipe.Set(created):
		// A reload already brought the new record in.
		s.pipe.Remove(core.PendingID())
	default:
		// The unsaved row was discarded meanwhile but now exists in the
		// store; show it like any other row.
		s.pipe.Replace(append([]core.BudgetItem{created}, s.pipe.Items()...))
	}
	if s.isEdit && s.editing.IsPending() {
		s.editing = created.ID
	}
	s.logger.InfoContext(ctx, "Budget item created",
		log.FieldOperation, log.OpCreate, log.FieldItemID, created.ID.String(), log.FieldCategory, created.Category, log.FieldItemName, created.Item)
	return CommitResult{Item: created, Changed: true, Persisted: true, Created: true, PreviousKey: core.PendingID().String()}, nil
}

// Delete removes row id. The unsaved row is discarded locally without
// contacting the store.
func (s *Session) Delete(ctx context.Context, id core.ItemID) error {
	if id.IsPending() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.pipe.Remove(id) {
			return core.ErrUnknownItem
		}
		if s.isEdit && s.editing == id {
			s.isEdit = false
		}
		return nil
	}

	s.mu.Lock()
	if _, ok := s.pipe.Find(id); !ok {
		s.mu.Unlock()
		return core.ErrUnknownItem
	}
	s.mu.Unlock()

	value, _ := id.Value()
	removed, err := s.repo.Remove(ctx, value)
	if err != nil {
		s.logger.WarnContext(ctx, "Delete failed", log.FieldOperation, log.OpDelete, log.FieldItemID, value, log.FieldError, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipe.Remove(id)
	if s.isEdit && s.editing == id {
		s.isEdit = false
	}
	if !removed {
		s.logger.InfoContext(ctx, "Item was already gone from the store", log.FieldItemID, value)
	}
	return nil
}

// Detail fetches the stored record for the detail view.
func (s *Session) Detail(ctx context.Context, id int64) (core.BudgetItem, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return core.BudgetItem{}, err
	}
	return it, nil
}

// SaveMarkdown stores md as the long-form content of item id.
func (s *Session) SaveMarkdown(ctx context.Context, id int64, md string) (core.BudgetItem, error) {
	stored, err := s.repo.UpdateField(ctx, id, core.FieldMDContent, md)
	if err != nil {
		return core.BudgetItem{}, fmt.Errorf("save markdown: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipe.ApplyField(core.PersistedID(id), core.FieldMDContent, stored)
	return stored, nil
}
