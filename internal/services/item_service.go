package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"budget/internal/adapters"
	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/ports"
)

// EventPublisher announces item changes to other processes.
type EventPublisher interface {
	PublishItemChanged(ctx context.Context, msg *amqp.ItemChangedMessage) error
}

// ItemService is the repository client: it runs every store call through
// the transform layer and reports failures only as core.TransportError,
// core.NotFoundError or core.ValidationError.
//
// Create is not deduplicated; retrying it after a transport failure may
// store the row twice.
type ItemService struct {
	store     ports.RecordStore
	publisher EventPublisher
}

// NewItemService wires a store and an optional publisher (nil disables
// change events).
func NewItemService(store ports.RecordStore, publisher EventPublisher) *ItemService {
	return &ItemService{
		store:     store,
		publisher: publisher,
	}
}

// ListAll returns every item ordered by id ascending.
func (s *ItemService) ListAll(ctx context.Context) ([]core.BudgetItem, error) {
	recs, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, classify("list", 0, err)
	}
	items := make([]core.BudgetItem, len(recs))
	for i, r := range recs {
		items[i] = adapters.ToApplicationModel(r)
	}
	return items, nil
}

// Get returns a single item for the detail view.
func (s *ItemService) Get(ctx context.Context, id int64) (core.BudgetItem, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return core.BudgetItem{}, classify("get", id, err)
	}
	return adapters.ToApplicationModel(rec), nil
}

// Create persists a new item and returns it with its generated id.
func (s *ItemService) Create(ctx context.Context, item core.BudgetItem) (core.BudgetItem, error) {
	rec := adapters.ToStorageModel(item)
	rec.ID = nil
	created, err := s.store.InsertRecord(ctx, rec)
	if err != nil {
		return core.BudgetItem{}, classify("create", 0, err)
	}
	out := adapters.ToApplicationModel(created)
	if id, ok := out.ID.Value(); ok {
		s.publish(ctx, id, amqp.OpUpsert, "")
	}
	return out, nil
}

// UpdateField persists a single field and returns the full stored item.
// value is the typed field value as returned by BudgetItem.FieldValue.
func (s *ItemService) UpdateField(ctx context.Context, id int64, field core.Field, value any) (core.BudgetItem, error) {
	column, ok := adapters.StorageField(field)
	if !ok || !field.Editable() {
		return core.BudgetItem{}, &core.ValidationError{Field: string(field), Reason: "field is not editable"}
	}
	rec, err := s.store.UpdateRecordField(ctx, id, column, adapters.ToStorageValue(field, value))
	if err != nil {
		return core.BudgetItem{}, classify("update", id, err)
	}
	s.publish(ctx, id, amqp.OpUpsert, string(field))
	return adapters.ToApplicationModel(rec), nil
}

// Remove deletes by id and reports whether a row was removed.
func (s *ItemService) Remove(ctx context.Context, id int64) (bool, error) {
	ok, err := s.store.DeleteRecord(ctx, id)
	if err != nil {
		return false, classify("delete", id, err)
	}
	if ok {
		s.publish(ctx, id, amqp.OpDelete, "")
	}
	return ok, nil
}

// Ping reports whether the store is reachable, for readiness checks.
func (s *ItemService) Ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return classify("ping", 0, err)
		}
	}
	return nil
}

func (s *ItemService) publish(ctx context.Context, id int64, op, field string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishItemChanged(ctx, amqp.NewItemChangedMessage(id, op, field)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish item changed message",
			"id", id, "op", op, "error", err)
		// Don't fail the request - the change is already stored
	}
}

// classify converts a store failure into the domain error taxonomy.
func classify(op string, id int64, err error) error {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return &core.NotFoundError{Op: op, ID: id}
	case errors.Is(err, ports.ErrRejected):
		return &core.ValidationError{Reason: rejectReason(err), Err: err}
	default:
		return &core.TransportError{Op: op, Err: err}
	}
}

func rejectReason(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ports.ErrRejected.Error()); i >= 0 {
		msg = strings.TrimLeft(msg[i+len(ports.ErrRejected.Error()):], ": ")
	}
	if msg == "" {
		return "rejected by the database"
	}
	return msg
}

// Close closes both storage and AMQP connections
func (s *ItemService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close item service: %w", errors.Join(errs...))
	}

	return nil
}
