// Package worker consumes item change events: it renders markdown notes
// into the html column and keeps an optional Google Sheets mirror current.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/markdown"
	"budget/internal/ports"
	"budget/internal/sheets"
)

// ItemReader is the read side of services.ItemService.
type ItemReader interface {
	Get(ctx context.Context, id int64) (core.BudgetItem, error)
	ListAll(ctx context.Context) ([]core.BudgetItem, error)
}

// ConsumeFunc delivers change events to handler until ctx is cancelled.
// amqp.Client.ConsumeItemChanges satisfies it.
type ConsumeFunc func(ctx context.Context, handler func(context.Context, *amqp.ItemChangedMessage) error) error

// RenderWorker handles item change events from AMQP.
type RenderWorker struct {
	items    ItemReader
	html     ports.HTMLWriter
	renderer *markdown.Renderer
	mirror   sheets.MirrorWriter // nil when no mirror is configured
	interval time.Duration
	logger   *log.Logger

	dirty    atomic.Bool
	rendered atomic.Int64
	mirrored atomic.Int64
}

func NewRenderWorker(items ItemReader, html ports.HTMLWriter, renderer *markdown.Renderer, mirror sheets.MirrorWriter, interval time.Duration, logger *log.Logger) *RenderWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	w := &RenderWorker{
		items:    items,
		html:     html,
		renderer: renderer,
		mirror:   mirror,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
	w.dirty.Store(true)
	return w
}

// HandleItemChanged processes a single change event. Returning an error
// requeues the message.
func (w *RenderWorker) HandleItemChanged(ctx context.Context, msg *amqp.ItemChangedMessage) error {
	w.logger.DebugContext(ctx, "Processing item change",
		log.FieldItemID, msg.ID, log.FieldOperation, msg.Op, log.FieldItemField, msg.Field)

	w.dirty.Store(true)
	if msg.Op == amqp.OpDelete {
		return nil
	}
	// Only creates and markdown edits change the rendered notes.
	if msg.Field != "" && msg.Field != string(core.FieldMDContent) {
		return nil
	}

	it, err := w.items.Get(ctx, msg.ID)
	if err != nil {
		if core.IsNotFound(err) {
			w.logger.InfoContext(ctx, "Item deleted before render, skipping", log.FieldItemID, msg.ID)
			return nil
		}
		return fmt.Errorf("get item %d: %w", msg.ID, err)
	}
	return w.render(ctx, it)
}

func (w *RenderWorker) render(ctx context.Context, it core.BudgetItem) error {
	id, ok := it.ID.Value()
	if !ok {
		return nil
	}
	html, err := w.renderer.Render(it.MDContent)
	if err != nil {
		// Bad markdown will not get better on retry.
		w.logger.WarnContext(ctx, "Markdown render failed", log.FieldItemID, id, log.FieldError, err)
		return nil
	}
	if err := w.html.SetHTML(ctx, id, string(html)); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("store html for item %d: %w", id, err)
	}
	w.rendered.Add(1)
	return nil
}

// StartupRender re-renders every item with notes, recovering from events
// missed while the worker was down.
func (w *RenderWorker) StartupRender(ctx context.Context) error {
	items, err := w.items.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list items for startup render: %w", err)
	}
	var failed int
	for _, it := range items {
		if it.MDContent == "" {
			continue
		}
		if err := w.render(ctx, it); err != nil {
			w.logger.ErrorContext(ctx, "Startup render failed", log.FieldItemID, it.ID.String(), log.FieldError, err)
			failed++
		}
	}
	w.logger.InfoContext(ctx, "Startup render completed", log.FieldCount, len(items), "errors", failed)
	return nil
}

// MirrorNow writes the whole table to the mirror.
func (w *RenderWorker) MirrorNow(ctx context.Context) error {
	if w.mirror == nil {
		return nil
	}
	items, err := w.items.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list items for mirror: %w", err)
	}
	if err := w.mirror.WriteAll(ctx, sheets.Rows(items)); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	w.mirrored.Add(1)
	return nil
}

// Run consumes events and, when a mirror is configured, refreshes it on
// every tick that follows a change. It returns when ctx is cancelled or
// the consumer fails.
func (w *RenderWorker) Run(ctx context.Context, consume ConsumeFunc) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := consume(ctx, w.HandleItemChanged)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if w.mirror != nil {
		g.Go(func() error {
			w.mirrorLoop(ctx)
			return nil
		})
	}

	return g.Wait()
}

func (w *RenderWorker) mirrorLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.mirrorIfDirty(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *RenderWorker) mirrorIfDirty(ctx context.Context) {
	if !w.dirty.Swap(false) {
		return
	}
	if err := w.MirrorNow(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.dirty.Store(true)
		w.logger.ErrorContext(ctx, "Sheets mirror failed, will retry", log.FieldError, err)
	}
}

// Stats reports how many renders and mirror writes succeeded.
func (w *RenderWorker) Stats() (rendered, mirrored int64) {
	return w.rendered.Load(), w.mirrored.Load()
}
