package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"reseller_ledger/internal/domain/ledger"
	"reseller_ledger/internal/infra/ident"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory ledger.Repository that records every write call,
// can be told to fail a given operation, and can block SaveOrder to exercise
// the in-flight commit path.
type fakeRepo struct {
	mu     sync.Mutex
	cycles []*ledger.Cycle
	orders []*ledger.Order
	calls  []string

	failOp string // operation name that should fail, e.g. "SaveOrder"

	blockSaveOrder   bool
	saveOrderStarted chan struct{}
	releaseSaveOrder chan struct{}
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		saveOrderStarted: make(chan struct{}, 16),
		releaseSaveOrder: make(chan struct{}),
	}
}

func (f *fakeRepo) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeRepo) writeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeRepo) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeRepo) fail(op string) error {
	if f.failOp == op {
		return fmt.Errorf("%s: %w: injected failure", op, ledger.ErrBackendUnavailable)
	}
	return nil
}

func (f *fakeRepo) ListCycles(ctx context.Context) ([]*ledger.Cycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListCycles"); err != nil {
		return nil, err
	}
	out := make([]*ledger.Cycle, 0, len(f.cycles))
	for _, c := range f.cycles {
		out = append(out, c.Clone())
	}
	return out, nil
}

func (f *fakeRepo) SaveCycle(ctx context.Context, c *ledger.Cycle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SaveCycle:" + c.ID)
	if err := f.fail("SaveCycle"); err != nil {
		return err
	}
	for i, existing := range f.cycles {
		if existing.ID == c.ID {
			f.cycles[i] = c.Clone()
			return nil
		}
	}
	f.cycles = append([]*ledger.Cycle{c.Clone()}, f.cycles...)
	return nil
}

func (f *fakeRepo) DeleteCycle(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteCycle:" + id)
	if err := f.fail("DeleteCycle"); err != nil {
		return err
	}
	kept := f.cycles[:0]
	for _, c := range f.cycles {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	f.cycles = kept
	keptOrders := f.orders[:0]
	for _, o := range f.orders {
		if o.PlanillaID != id {
			keptOrders = append(keptOrders, o)
		}
	}
	f.orders = keptOrders
	return nil
}

func (f *fakeRepo) ListOrders(ctx context.Context, cycleID string) ([]*ledger.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListOrders"); err != nil {
		return nil, err
	}
	out := make([]*ledger.Order, 0)
	for _, o := range f.orders {
		if o.PlanillaID == cycleID {
			out = append(out, o.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (f *fakeRepo) SaveOrder(ctx context.Context, o *ledger.Order) error {
	f.mu.Lock()
	f.record("SaveOrder:" + o.ID)
	blocked := f.blockSaveOrder
	f.mu.Unlock()

	if blocked {
		f.saveOrderStarted <- struct{}{}
		<-f.releaseSaveOrder
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SaveOrder"); err != nil {
		return err
	}
	for i, existing := range f.orders {
		if existing.ID == o.ID {
			f.orders[i] = o.Clone()
			return nil
		}
	}
	f.orders = append(f.orders, o.Clone())
	return nil
}

func (f *fakeRepo) DeleteOrder(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteOrder:" + id)
	if err := f.fail("DeleteOrder"); err != nil {
		return err
	}
	kept := f.orders[:0]
	for _, o := range f.orders {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	f.orders = kept
	return nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func seedRepo(t *testing.T) (*fakeRepo, *ident.Sequence) {
	t.Helper()
	repo := newFakeRepo()
	prov := ident.NewSequence(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	repo.cycles = []*ledger.Cycle{
		{ID: "c1", Nombre: "Ciclo 1", ComisionPorcentaje: 30, Empresa: "natura", CreatedAt: prov.Now()},
	}
	repo.orders = []*ledger.Order{
		{
			ID: "o1", PlanillaID: "c1", ClienteNombre: "Ana", CreatedAt: prov.Now(),
			Items: []ledger.Item{
				{ID: "i1", Descripcion: "Labial", Monto: 100, Pagado: true, CreatedAt: prov.Now()},
				{ID: "i2", Descripcion: "Crema", Monto: 50, Pagado: false, CreatedAt: prov.Now()},
			},
		},
	}
	return repo, prov
}

func loadSession(t *testing.T, repo *fakeRepo, prov ident.Provider) *DraftService {
	t.Helper()
	s := NewDraftService(repo, prov, testLogger())
	require.NoError(t, s.Load(context.Background(), "c1"))
	return s
}

func TestDraftService_LoadStartsClean(t *testing.T) {
	repo, prov := seedRepo(t)
	s := loadSession(t, repo, prov)

	assert.False(t, s.HasUnsavedChanges())
	require.Len(t, s.Orders(), 1)
	assert.Equal(t, "30", s.CommissionInput())

	sum := s.Summary()
	assert.Equal(t, "150", sum.TotalVendido.String())
	assert.Equal(t, "45", sum.GananciaNeta.String())
}

func TestDraftService_LoadUnknownCycle(t *testing.T) {
	repo, prov := seedRepo(t)
	s := NewDraftService(repo, prov, testLogger())
	err := s.Load(context.Background(), "nope")
	require.ErrorIs(t, err, ledger.ErrCycleNotFound)
}

func TestDraftService_MutationsNeverTouchStore(t *testing.T) {
	repo, prov := seedRepo(t)
	s := loadSession(t, repo, prov)
	repo.resetCalls()

	o, err := s.AddOrder()
	require.NoError(t, err)
	_, err = s.AddItem(o.ID)
	require.NoError(t, err)
	require.NoError(t, s.UpdateCommission("25"))
	require.NoError(t, s.DeleteOrder("o1"))

	assert.True(t, s.HasUnsavedChanges())
	assert.Empty(t, repo.writeCalls(), "draft mutations must not call the gateway")
}

func TestDraftService_DiscardRestoresBaseline(t *testing.T) {
	repo, prov := seedRepo(t)
	s := loadSession(t, repo, prov)

	before := s.Orders()
	beforeCycle := s.Cycle()

	_, err := s.AddOrder()
	require.NoError(t, err)
	name := "Carla"
	require.NoError(t, s.UpdateOrder("o1", OrderPatch{ClienteNombre: &name}))
	monto := "999"
	require.NoError(t, s.UpdateItem("o1", "i2", ItemPatch{Monto: &monto}))
	require.NoError(t, s.DeleteItem("o1", "i1"))
	require.NoError(t, s.UpdateCommission("abc"))
	require.True(t, s.HasUnsavedChanges())

	require.NoError(t, s.Discard())

	assert.False(t, s.HasUnsavedChanges())
	assert.Equal(t, before, s.Orders())
	assert.Equal(t, beforeCycle, s.Cycle())
	assert.Equal(t, "30", s.CommissionInput())
}

func TestDraftService_CommitThenReloadRoundTrip(t *testing.T) {
	repo, prov := seedRepo(t)
	s := loadSession(t, repo, prov)

	o, err := s.AddOrder()
	require.NoError(t, err)
	name := "Berta"
	require.NoError(t, s.UpdateOrder(o.ID, OrderPatch{ClienteNombre: &name}))
	it, err := s.AddItem(o.ID)
	require.NoError(t, err)
	monto := "75.5"
	paid := true
	require.NoError(t, s.UpdateItem(o.ID, it.ID, ItemPatch{Monto: &monto, Pagado: &paid}))
	require.NoError(t, s.UpdateCommission("25"))

	committed := s.Orders()
	require.NoError(t, s.Commit(context.Background()))
	assert.False(t, s.HasUnsavedChanges())

	// Idempotent reload: a fresh session sees exactly the committed state.
	s2 := loadSession(t, repo, prov)
	assert.Equal(t, committed, s2.Orders())
	assert.Equal(t, 25.0, s2.Cycle().ComisionPorcentaje)
}

func TestDraftService_CleanCommitIsNoOp(t *testing.T) {
	repo, prov := seedRepo(t)
	s := loadSession(t, repo, prov)
	repo.resetCalls()

	require.NoError(t, s.Commit(context.Background()))
	assert.Empty(t, repo.writeCalls(), "a Clean commit must make zero gateway calls")
}

func TestDraftService_CommitSkipsUnchangedCycle(t *testing.T) {
	repo, prov := seedRepo(t)
	s := loadSession(t, repo, prov)
	repo.resetCalls()

	name := "Dora"
	require.NoError(t, s.UpdateOrder("o1", OrderPatch{ClienteNombre: &name}))
	require.NoError(t, s.Commit(context.Background()))

	calls := repo.writeCalls()
	assert.Equal(t, []string{"SaveOrder:o1"}, calls, "unchanged cycle metadata must not be re-saved")
}

func TestDraftService_DeleteOnlyOrderThenCommit(t *testing.T) {
	repo, prov := seedRepo(t)
	s := loadSession(t, repo, prov)

	require.NoError(t, s.DeleteOrder("o1"))
	require.NoError(t, s.Commit(context.Background()))

	orders, err := repo.ListOrders(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, orders)

	// Session is Clean again: the follow-up commit touches nothing.
	repo.resetCalls()
	require.NoError(t, s.Commit(context.Background()))
	assert.Empty(t, repo.writeCalls())
}

func TestDraftService_PartialFailureStaysDirty(t *testing.T) {
	repo, prov := seedRepo(t)
	s := loadSession(t, repo, prov)

	o, err := s.AddOrder()
	require.NoError(t, err)
	require.NoError(t, s.DeleteOrder("o1"))

	repo.failOp = "SaveOrder"
	repo.resetCalls()

	err = s.Commit(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ledger.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), o.ID, "the error must name the failed step")
	assert.True(t, s.HasUnsavedChanges(), "a failed commit leaves the session Dirty")

	for _, call := range repo.writeCalls() {
		assert.False(t, strings.HasPrefix(call, "DeleteOrder:"),
			"no further writes may follow the first failure, got %v", repo.writeCalls())
	}

	// The backend recovered: retrying the commit completes the plan.
	repo.failOp = ""
	require.NoError(t, s.Commit(context.Background()))
	assert.False(t, s.HasUnsavedChanges())
	orders, err := repo.ListOrders(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, o.ID, orders[0].ID)
}

func TestDraftService_ReentrantCommitRejected(t *testing.T) {
	repo, prov := seedRepo(t)
	s := loadSession(t, repo, prov)

	name := "Eva"
	require.NoError(t, s.UpdateOrder("o1", OrderPatch{ClienteNombre: &name}))

	repo.blockSaveOrder = true
	done := make(chan error, 1)
	go func() { done <- s.Commit(context.Background()) }()
	<-repo.saveOrderStarted // the first commit is now mid-write

	err := s.Commit(context.Background())
	require.ErrorIs(t, err, ErrCommitInFlight)
	require.ErrorIs(t, s.Discard(), ErrCommitInFlight)

	// Local mutations stay legal while the commit is in flight and are
	// carried by the next commit, not the running one.
	other := "Fran"
	require.NoError(t, s.UpdateOrder("o1", OrderPatch{ClienteNombre: &other}))

	repo.mu.Lock()
	repo.blockSaveOrder = false
	repo.mu.Unlock()
	close(repo.releaseSaveOrder)
	require.NoError(t, <-done)

	assert.True(t, s.HasUnsavedChanges(), "mutation during commit keeps the session Dirty")

	require.NoError(t, s.Commit(context.Background()))
	assert.False(t, s.HasUnsavedChanges())
	orders, err := repo.ListOrders(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Fran", orders[0].ClienteNombre)
}

func TestDraftService_CommissionCoercion(t *testing.T) {
	repo, prov := seedRepo(t)
	s := loadSession(t, repo, prov)

	require.NoError(t, s.UpdateCommission("abc"))
	assert.Equal(t, "abc", s.CommissionInput(), "raw input stays displayable as entered")
	assert.True(t, s.Summary().GananciaNeta.IsZero(), "non-numeric commission computes as 0")

	require.NoError(t, s.UpdateCommission("30"))
	assert.Equal(t, "45", s.Summary().GananciaNeta.String())
}

func TestDraftService_RequiresLoad(t *testing.T) {
	repo, prov := seedRepo(t)
	s := NewDraftService(repo, prov, testLogger())

	_, err := s.AddOrder()
	require.ErrorIs(t, err, ErrNoDraftLoaded)
	require.ErrorIs(t, s.UpdateCommission("10"), ErrNoDraftLoaded)
	require.ErrorIs(t, s.Commit(context.Background()), ErrNoDraftLoaded)
	require.ErrorIs(t, s.Discard(), ErrNoDraftLoaded)
}

func TestDraftService_UnknownTargetsRejected(t *testing.T) {
	repo, prov := seedRepo(t)
	s := loadSession(t, repo, prov)

	name := "X"
	require.ErrorIs(t, s.UpdateOrder("ghost", OrderPatch{ClienteNombre: &name}), ErrOrderNotInDraft)
	require.ErrorIs(t, s.DeleteOrder("ghost"), ErrOrderNotInDraft)
	_, err := s.AddItem("ghost")
	require.ErrorIs(t, err, ErrOrderNotInDraft)
	require.ErrorIs(t, s.UpdateItem("o1", "ghost", ItemPatch{}), ErrItemNotInDraft)
	require.ErrorIs(t, s.DeleteItem("o1", "ghost"), ErrItemNotInDraft)
}
