package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"budget/internal/adapters"
	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/markdown"
	"budget/internal/services"
	"budget/internal/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func str(s string) *string { return &s }

type recordingMirror struct {
	mu     sync.Mutex
	writes [][][]any
	err    error
	wrote  chan struct{}
}

func newRecordingMirror() *recordingMirror {
	return &recordingMirror{wrote: make(chan struct{}, 16)}
}

func (m *recordingMirror) WriteAll(_ context.Context, rows [][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.writes = append(m.writes, rows)
	m.wrote <- struct{}{}
	return nil
}

func (m *recordingMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

type fixture struct {
	store  *memory.Store
	worker *RenderWorker
	mirror *recordingMirror
}

func newFixture(t *testing.T, seed ...adapters.Record) fixture {
	t.Helper()
	store := memory.New(seed...)
	svc := services.NewItemService(store, nil)
	mirror := newRecordingMirror()
	w := NewRenderWorker(svc, store, markdown.NewRenderer(16, time.Minute), mirror, time.Hour, log.Discard())
	return fixture{store: store, worker: w, mirror: mirror}
}

func storedHTML(t *testing.T, store *memory.Store, id int64) string {
	t.Helper()
	rec, err := store.GetRecord(context.Background(), id)
	require.NoError(t, err)
	if rec.HTML == nil {
		return ""
	}
	return *rec.HTML
}

func TestHandleItemChanged_RendersMarkdown(t *testing.T) {
	f := newFixture(t, adapters.Record{Category: str("Flowers"), Item: str("Bouquet"), MDContent: str("**peonies**")})

	err := f.worker.HandleItemChanged(context.Background(), amqp.NewItemChangedMessage(1, amqp.OpUpsert, string(core.FieldMDContent)))
	require.NoError(t, err)
	assert.Contains(t, storedHTML(t, f.store, 1), "<strong>peonies</strong>")

	rendered, _ := f.worker.Stats()
	assert.Equal(t, int64(1), rendered)
}

func TestHandleItemChanged_SkipsOtherFields(t *testing.T) {
	f := newFixture(t, adapters.Record{Category: str("Flowers"), Item: str("Bouquet"), MDContent: str("*x*")})

	require.NoError(t, f.worker.HandleItemChanged(context.Background(), amqp.NewItemChangedMessage(1, amqp.OpUpsert, string(core.FieldUnitCost))))
	assert.Empty(t, storedHTML(t, f.store, 1))
}

func TestHandleItemChanged_MissingItemIsAcked(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.worker.HandleItemChanged(context.Background(), amqp.NewItemChangedMessage(42, amqp.OpUpsert, "")))
	assert.NoError(t, f.worker.HandleItemChanged(context.Background(), amqp.NewItemChangedMessage(42, amqp.OpDelete, "")))
}

type failingReader struct{ err error }

func (r failingReader) Get(context.Context, int64) (core.BudgetItem, error) {
	return core.BudgetItem{}, r.err
}
func (r failingReader) ListAll(context.Context) ([]core.BudgetItem, error) { return nil, r.err }

func TestHandleItemChanged_TransportErrorRequeues(t *testing.T) {
	w := NewRenderWorker(failingReader{err: &core.TransportError{Op: "get", Err: errors.New("dial")}},
		memory.New(), markdown.NewRenderer(4, time.Minute), nil, 0, nil)

	err := w.HandleItemChanged(context.Background(), amqp.NewItemChangedMessage(1, amqp.OpUpsert, ""))
	assert.True(t, core.IsTransport(err), "got %v", err)
}

func TestStartupRender(t *testing.T) {
	f := newFixture(t,
		adapters.Record{Category: str("Flowers"), Item: str("Bouquet"), MDContent: str("# Notes")},
		adapters.Record{Category: str("Venue"), Item: str("Hall")},
	)

	require.NoError(t, f.worker.StartupRender(context.Background()))
	assert.Contains(t, storedHTML(t, f.store, 1), "Notes</h1>")
	assert.Empty(t, storedHTML(t, f.store, 2))
}

func TestMirrorNow(t *testing.T) {
	f := newFixture(t, adapters.Record{Category: str("Flowers"), Item: str("Bouquet")})

	require.NoError(t, f.worker.MirrorNow(context.Background()))
	require.Equal(t, 1, f.mirror.count())
	assert.Len(t, f.mirror.writes[0], 2, "header plus one row")

	f.mirror.err = errors.New("quota exceeded")
	assert.Error(t, f.worker.MirrorNow(context.Background()))
}

func TestRun_ConsumesAndMirrors(t *testing.T) {
	f := newFixture(t, adapters.Record{Category: str("Flowers"), Item: str("Bouquet"), MDContent: str("_hi_")})

	ctx, cancel := context.WithCancel(context.Background())
	handled := make(chan struct{})
	consume := func(ctx context.Context, handler func(context.Context, *amqp.ItemChangedMessage) error) error {
		if err := handler(ctx, amqp.NewItemChangedMessage(1, amqp.OpUpsert, "")); err != nil {
			return err
		}
		close(handled)
		<-ctx.Done()
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx, consume) }()

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
	select {
	case <-f.mirror.wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("initial mirror was not written")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Contains(t, storedHTML(t, f.store, 1), "<em>hi</em>")
}

func TestRun_ConsumerFailureStopsWorker(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("channel closed")

	err := f.worker.Run(context.Background(), func(context.Context, func(context.Context, *amqp.ItemChangedMessage) error) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
