package editor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"budget/internal/core"
	"budget/internal/log"
)

type fakeRepo struct {
	mu     sync.Mutex
	items  []core.BudgetItem
	nextID int64
	calls  map[string]int

	listErr   error
	createErr error
	updateErr error
	removeErr error

	// When gate is set, UpdateField signals started and blocks until gate
	// is closed.
	gate    chan struct{}
	started chan core.Field

	// listGate works the same way for ListAll.
	listGate    chan struct{}
	listStarted chan struct{}
}

func newFakeRepo(items ...core.BudgetItem) *fakeRepo {
	return &fakeRepo{items: items, nextID: int64(len(items)) + 1, calls: map[string]int{}}
}

func (r *fakeRepo) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *fakeRepo) ListAll(ctx context.Context) ([]core.BudgetItem, error) {
	r.mu.Lock()
	r.calls["list"]++
	gate, started := r.listGate, r.listStarted
	r.mu.Unlock()
	if gate != nil {
		started <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]core.BudgetItem(nil), r.items...), nil
}

func (r *fakeRepo) Create(ctx context.Context, item core.BudgetItem) (core.BudgetItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["create"]++
	if r.createErr != nil {
		return core.BudgetItem{}, r.createErr
	}
	item.ID = core.PersistedID(r.nextID)
	r.nextID++
	r.items = append(r.items, item)
	return item, nil
}

func (r *fakeRepo) UpdateField(ctx context.Context, id int64, f core.Field, value any) (core.BudgetItem, error) {
	if r.gate != nil {
		r.started <- f
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["update"]++
	if r.updateErr != nil {
		return core.BudgetItem{}, r.updateErr
	}
	for i, it := range r.items {
		if v, _ := it.ID.Value(); v == id {
			next, err := it.WithField(f, textOf(value))
			if err != nil {
				return core.BudgetItem{}, err
			}
			r.items[i] = next
			return next, nil
		}
	}
	return core.BudgetItem{}, &core.NotFoundError{Op: "update", ID: id}
}

func (r *fakeRepo) Remove(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["remove"]++
	if r.removeErr != nil {
		return false, r.removeErr
	}
	for i, it := range r.items {
		if v, _ := it.ID.Value(); v == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) Get(ctx context.Context, id int64) (core.BudgetItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if v, _ := it.ID.Value(); v == id {
			return it, nil
		}
	}
	return core.BudgetItem{}, &core.NotFoundError{Op: "get", ID: id}
}

func textOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case core.Required:
		return string(x)
	case decimal.NullDecimal:
		return core.FormatAmount(x)
	}
	return ""
}

func stored(id int64, category, name, cost string) core.BudgetItem {
	it := core.BudgetItem{ID: core.PersistedID(id), Category: category, Item: name, Required: core.RequiredNo}
	if cost != "" {
		it.UnitCost = decimal.NewNullDecimal(decimal.RequireFromString(cost))
	}
	return it
}

func loaded(t *testing.T, repo *fakeRepo) *Session {
	t.Helper()
	s := NewSession(repo, log.Discard())
	require.NoError(t, s.Reload(context.Background()))
	return s
}

func TestReload(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"), stored(2, "Flowers", "Bouquet", "50"))
	s := loaded(t, repo)

	snap := s.Snapshot()
	assert.True(t, snap.Loaded)
	assert.NoError(t, snap.LoadErr)
	assert.Equal(t, 2, snap.View.Summary.TotalCount)
	assert.Equal(t, []string{"Flowers", "Venue"}, snap.Categories)
}

func TestReloadFailureEmptiesCollection(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"))
	s := loaded(t, repo)

	repo.listErr = &core.TransportError{Op: "list", Err: errors.New("dial tcp: refused")}
	err := s.Reload(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsTransport(err))

	snap := s.Snapshot()
	assert.Empty(t, snap.View.Rows)
	assert.Equal(t, err, snap.LoadErr)
}

func TestReloadOutlivesCanceledCaller(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"), stored(2, "Flowers", "Bouquet", "50"))
	s := loaded(t, repo)
	repo.mu.Lock()
	repo.listGate = make(chan struct{})
	repo.listStarted = make(chan struct{}, 2)
	repo.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- s.Reload(ctx) }()
	<-repo.listStarted

	second := make(chan error, 1)
	go func() { second <- s.Reload(context.Background()) }()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(repo.listGate)
	require.NoError(t, <-second)

	snap := s.Snapshot()
	assert.NoError(t, snap.LoadErr)
	assert.Equal(t, 2, snap.View.Summary.TotalCount)
}

func TestReloadKeepsUnsavedRow(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"))
	s := loaded(t, repo)
	s.AddRow()

	require.NoError(t, s.Reload(context.Background()))
	snap := s.Snapshot()
	require.Len(t, snap.View.Rows, 2)
	assert.Equal(t, "new", snap.View.Rows[0].Key)
	assert.Equal(t, "new", snap.EditingKey)
}

func TestDeleteUnsavedRowIsLocal(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"))
	s := loaded(t, repo)
	s.AddRow()

	require.NoError(t, s.Delete(context.Background(), core.PendingID()))
	assert.Equal(t, 0, repo.count("remove"))
	snap := s.Snapshot()
	assert.Len(t, snap.View.Rows, 1)
	assert.Empty(t, snap.EditingKey)
}

func TestDeletePersistedRow(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"), stored(2, "Flowers", "Bouquet", "50"))
	s := loaded(t, repo)

	require.NoError(t, s.Delete(context.Background(), core.PersistedID(1)))
	assert.Equal(t, 1, repo.count("remove"))
	_, ok := s.Item(core.PersistedID(1))
	assert.False(t, ok)
}

func TestDeleteRowAlreadyGoneFromStore(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"))
	s := loaded(t, repo)
	repo.items = nil

	require.NoError(t, s.Delete(context.Background(), core.PersistedID(1)))
	assert.Empty(t, s.Snapshot().View.Rows)
}

func TestDeleteFailureKeepsRow(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"))
	s := loaded(t, repo)
	repo.removeErr = &core.TransportError{Op: "delete", Err: errors.New("timeout")}

	err := s.Delete(context.Background(), core.PersistedID(1))
	assert.True(t, core.IsTransport(err))
	_, ok := s.Item(core.PersistedID(1))
	assert.True(t, ok)
}

func TestCommitRequiresEditing(t *testing.T) {
	s := loaded(t, newFakeRepo(stored(1, "Venue", "Hall", "1000")))

	_, err := s.Commit(context.Background(), core.PersistedID(1), core.FieldNotes, "x")
	assert.ErrorIs(t, err, core.ErrNotEditing)
}

func TestBeginEditSwitchesRow(t *testing.T) {
	s := loaded(t, newFakeRepo(stored(1, "Venue", "Hall", "1000"), stored(2, "Flowers", "Bouquet", "50")))

	_, had, err := s.BeginEdit(core.PersistedID(1))
	require.NoError(t, err)
	assert.False(t, had)

	prev, had, err := s.BeginEdit(core.PersistedID(2))
	require.NoError(t, err)
	assert.True(t, had)
	assert.Equal(t, core.PersistedID(1), prev)

	st, _ := s.State(core.PersistedID(1))
	assert.Equal(t, Idle, st)
	st, _ = s.State(core.PersistedID(2))
	assert.Equal(t, Editing, st)

	_, _, err = s.BeginEdit(core.PersistedID(9))
	assert.ErrorIs(t, err, core.ErrUnknownItem)
}

func TestDoneAndCancelReturnToIdle(t *testing.T) {
	s := loaded(t, newFakeRepo(stored(1, "Venue", "Hall", "1000")))

	assert.ErrorIs(t, s.Done(core.PersistedID(1)), core.ErrNotEditing)

	for _, end := range []func(core.ItemID) error{s.Done, s.Cancel} {
		_, _, err := s.BeginEdit(core.PersistedID(1))
		require.NoError(t, err)
		require.NoError(t, end(core.PersistedID(1)))

		st, _ := s.State(core.PersistedID(1))
		assert.Equal(t, Idle, st)
		assert.Empty(t, s.Snapshot().EditingKey)
	}
}

func TestCommitUnchangedValueDoesNothing(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"))
	s := loaded(t, repo)
	_, _, err := s.BeginEdit(core.PersistedID(1))
	require.NoError(t, err)

	res, err := s.Commit(context.Background(), core.PersistedID(1), core.FieldUnitCost, "1000.00")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 0, repo.count("update"))
}

func TestCommitSavesField(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"))
	s := loaded(t, repo)
	_, _, err := s.BeginEdit(core.PersistedID(1))
	require.NoError(t, err)

	res, err := s.Commit(context.Background(), core.PersistedID(1), core.FieldUnitCost, "1200")
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.Equal(t, "1200", res.Item.FieldText(core.FieldUnitCost))

	snap := s.Snapshot()
	assert.True(t, snap.View.Summary.TotalCost.Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, "1", snap.EditingKey)
}

func TestFailedUpdateKeepsLastKnownValue(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"))
	s := loaded(t, repo)
	_, _, err := s.BeginEdit(core.PersistedID(1))
	require.NoError(t, err)
	repo.updateErr = &core.TransportError{Op: "update", Err: errors.New("connection reset")}

	res, err := s.Commit(context.Background(), core.PersistedID(1), core.FieldUnitCost, "1200")
	require.Error(t, err)
	assert.Equal(t, "Could not reach the database, please retry", core.UserMessage(err))
	assert.Equal(t, "1000", res.Item.FieldText(core.FieldUnitCost))

	it, _ := s.Item(core.PersistedID(1))
	assert.Equal(t, "1000", it.FieldText(core.FieldUnitCost))
	st, _ := s.State(core.PersistedID(1))
	assert.Equal(t, Editing, st)
}

func TestInvalidAmountIsRejectedLocally(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"))
	s := loaded(t, repo)
	_, _, err := s.BeginEdit(core.PersistedID(1))
	require.NoError(t, err)

	_, err = s.Commit(context.Background(), core.PersistedID(1), core.FieldQuantity, "two")
	assert.True(t, core.IsValidation(err))
	assert.Equal(t, 0, repo.count("update"))
}

func TestCreateFlow(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"))
	s := loaded(t, repo)
	ctx := context.Background()

	pending := s.AddRow()
	assert.True(t, pending.ID.IsPending())
	assert.Equal(t, pending, s.AddRow(), "a second add reuses the unsaved row")

	res, err := s.Commit(ctx, core.PendingID(), core.FieldCategory, "Flowers")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 0, repo.count("create"))

	res, err = s.Commit(ctx, core.PendingID(), core.FieldItem, "Bouquet")
	require.NoError(t, err)
	require.True(t, res.Created)
	assert.Equal(t, "new", res.PreviousKey)
	assert.Equal(t, core.PersistedID(2), res.Item.ID)

	snap := s.Snapshot()
	assert.Equal(t, "2", snap.EditingKey)
	assert.Equal(t, "2", snap.View.Rows[0].Key, "the created row keeps the top position")
	assert.Equal(t, 2, snap.View.Summary.TotalCount)

	res, err = s.Commit(ctx, core.PersistedID(2), core.FieldUnitCost, "50")
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.Equal(t, 1, repo.count("update"))
}

func TestCreateFailureRevertsBlurredField(t *testing.T) {
	repo := newFakeRepo()
	s := loaded(t, repo)
	ctx := context.Background()
	s.AddRow()

	_, err := s.Commit(ctx, core.PendingID(), core.FieldCategory, "Flowers")
	require.NoError(t, err)

	repo.createErr = &core.ValidationError{Field: "item", Reason: "rejected by store"}
	res, err := s.Commit(ctx, core.PendingID(), core.FieldItem, "Bouquet")
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	assert.Equal(t, "", res.Item.Item)
	assert.Equal(t, "Flowers", res.Item.Category)

	repo.createErr = nil
	res, err = s.Commit(ctx, core.PendingID(), core.FieldItem, "Bouquet")
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestConcurrentSavesOnDifferentFields(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"))
	s := loaded(t, repo)
	_, _, err := s.BeginEdit(core.PersistedID(1))
	require.NoError(t, err)

	repo.gate = make(chan struct{})
	repo.started = make(chan core.Field, 2)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for f, raw := range map[core.Field]string{core.FieldUnitCost: "900", core.FieldQuantity: "3"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Commit(context.Background(), core.PersistedID(1), f, raw)
			errs <- err
		}()
	}
	<-repo.started
	<-repo.started

	snap := s.Snapshot()
	assert.True(t, snap.IsSaving("1", core.FieldUnitCost))
	assert.True(t, snap.IsSaving("1", core.FieldQuantity))
	st, _ := s.State(core.PersistedID(1))
	assert.Equal(t, Saving, st)

	_, err = s.Commit(context.Background(), core.PersistedID(1), core.FieldUnitCost, "800")
	assert.ErrorIs(t, err, core.ErrSaveInProgress)

	close(repo.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	it, _ := s.Item(core.PersistedID(1))
	assert.Equal(t, "900", it.FieldText(core.FieldUnitCost))
	assert.Equal(t, "3", it.FieldText(core.FieldQuantity))
	assert.True(t, it.Subtotal().Equal(decimal.NewFromInt(2700)))
}

func TestToggleSortRejectsUnsortableColumn(t *testing.T) {
	s := loaded(t, newFakeRepo())
	assert.Error(t, s.ToggleSort(core.FieldMDContent))
	require.NoError(t, s.ToggleSort(core.FieldSubTotal))
	assert.Equal(t, core.FieldSubTotal, s.Snapshot().Sort.Field)
}

func TestSaveMarkdown(t *testing.T) {
	repo := newFakeRepo(stored(1, "Venue", "Hall", "1000"))
	s := loaded(t, repo)

	it, err := s.SaveMarkdown(context.Background(), 1, "# Hall\n\nDeposit paid.")
	require.NoError(t, err)
	assert.Equal(t, "# Hall\n\nDeposit paid.", it.MDContent)

	got, err := s.Detail(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, it.MDContent, got.MDContent)

	_, err = s.Detail(context.Background(), 7)
	assert.True(t, core.IsNotFound(err))
}
