// internal/app/draft_service.go
package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"reseller_ledger/internal/domain/ledger"
	"reseller_ledger/internal/infra/ident"
)

var (
	ErrNoDraftLoaded   = fmt.Errorf("no draft loaded")
	ErrCommitInFlight  = fmt.Errorf("a commit is already in flight")
	ErrOrderNotInDraft = fmt.Errorf("order not present in draft")
	ErrItemNotInDraft  = fmt.Errorf("item not present in draft")
)

// OrderPatch carries the fields of an order edit. Nil fields are untouched.
type OrderPatch struct {
	ClienteNombre *string
}

// ItemPatch carries the fields of an item edit. Nil fields are untouched.
// Monto is the raw text the user typed; it is coerced to a non-negative
// number (unparsable input becomes 0, the text itself stays in the caller's
// input field).
type ItemPatch struct {
	Descripcion *string
	Monto       *string
	Pagado      *bool
}

// DraftService is the edit session for one cycle: an in-memory working copy
// of the cycle and its orders, mutated freely without touching persistence,
// then reconciled against the backing store in a single explicit Commit.
//
// The session keeps two copies of the state: the live draft and the baseline,
// a deep snapshot taken at the last Load or successful Commit. Discard
// restores the baseline; Commit diffs against it to find deleted orders.
// One session edits one cycle; create a new one per cycle being edited.
//
// Concurrent commits from two sessions (e.g. two devices) are resolved
// last-writer-wins; no concurrency token exists.
type DraftService struct {
	repo   ledger.Repository
	ident  ident.Provider
	logger *log.Logger

	mu          sync.Mutex
	loaded      bool
	committing  bool
	dirty       bool
	gen         uint64 // bumped on every mutation; lets an in-flight commit tell whether the draft moved under it
	cycleID     string
	cycle       *ledger.Cycle
	orders      []*ledger.Order
	comisionRaw string
	baseCycle   *ledger.Cycle
	baseOrders  []*ledger.Order
}

func NewDraftService(repo ledger.Repository, identProvider ident.Provider, logger *log.Logger) *DraftService {
	return &DraftService{
		repo:   repo,
		ident:  identProvider,
		logger: logger,
	}
}

// Load fetches the cycle and its orders and resets the session to Clean.
// It may be called repeatedly; any uncommitted edits are lost, so callers
// must consult HasUnsavedChanges before navigating back into a load.
func (s *DraftService) Load(ctx context.Context, cycleID string) error {
	cycles, err := s.repo.ListCycles(ctx)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	var current *ledger.Cycle
	for _, c := range cycles {
		if c.ID == cycleID {
			current = c
			break
		}
	}
	if current == nil {
		return fmt.Errorf("load draft %s: %w", cycleID, ledger.ErrCycleNotFound)
	}

	orders, err := s.repo.ListOrders(ctx, cycleID)
	if err != nil {
		return fmt.Errorf("load draft %s: %w", cycleID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.cycleID = cycleID
	s.cycle = current.Clone()
	s.orders = ledger.CloneOrders(orders)
	s.comisionRaw = ledger.FormatCommission(current.ComisionPorcentaje)
	s.baseCycle = current.Clone()
	s.baseOrders = ledger.CloneOrders(orders)
	s.dirty = false
	s.gen++
	s.logger.Printf("INFO: Draft loaded for cycle %s with %d orders.", cycleID, len(orders))
	return nil
}

func (s *DraftService) markDirtyLocked() {
	s.dirty = true
	s.gen++
}

// AddOrder appends a blank client order at the head of the draft and returns
// a copy of it.
func (s *DraftService) AddOrder() (*ledger.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, ErrNoDraftLoaded
	}
	o := &ledger.Order{
		ID:         s.ident.NewID(),
		PlanillaID: s.cycleID,
		Items:      []ledger.Item{},
		CreatedAt:  s.ident.Now(),
	}
	s.orders = append([]*ledger.Order{o}, s.orders...)
	s.markDirtyLocked()
	return o.Clone(), nil
}

func (s *DraftService) UpdateOrder(id string, patch OrderPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoDraftLoaded
	}
	for _, o := range s.orders {
		if o.ID == id {
			if patch.ClienteNombre != nil {
				o.ClienteNombre = *patch.ClienteNombre
			}
			s.markDirtyLocked()
			return nil
		}
	}
	return fmt.Errorf("update order %s: %w", id, ErrOrderNotInDraft)
}

func (s *DraftService) DeleteOrder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoDraftLoaded
	}
	for i, o := range s.orders {
		if o.ID == id {
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			s.markDirtyLocked()
			return nil
		}
	}
	return fmt.Errorf("delete order %s: %w", id, ErrOrderNotInDraft)
}

// AddItem appends a blank line item to the given order and returns a copy.
func (s *DraftService) AddItem(orderID string) (*ledger.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, ErrNoDraftLoaded
	}
	for _, o := range s.orders {
		if o.ID == orderID {
			it := ledger.Item{
				ID:        s.ident.NewID(),
				CreatedAt: s.ident.Now(),
			}
			o.Items = append(o.Items, it)
			s.markDirtyLocked()
			return &it, nil
		}
	}
	return nil, fmt.Errorf("add item to order %s: %w", orderID, ErrOrderNotInDraft)
}

func (s *DraftService) UpdateItem(orderID, itemID string, patch ItemPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoDraftLoaded
	}
	for _, o := range s.orders {
		if o.ID != orderID {
			continue
		}
		for i := range o.Items {
			if o.Items[i].ID != itemID {
				continue
			}
			if patch.Descripcion != nil {
				o.Items[i].Descripcion = *patch.Descripcion
			}
			if patch.Monto != nil {
				o.Items[i].Monto = ledger.ParseAmount(*patch.Monto)
			}
			if patch.Pagado != nil {
				o.Items[i].Pagado = *patch.Pagado
			}
			s.markDirtyLocked()
			return nil
		}
		return fmt.Errorf("update item %s: %w", itemID, ErrItemNotInDraft)
	}
	return fmt.Errorf("update item in order %s: %w", orderID, ErrOrderNotInDraft)
}

func (s *DraftService) DeleteItem(orderID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoDraftLoaded
	}
	for _, o := range s.orders {
		if o.ID != orderID {
			continue
		}
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				o.Items = append(o.Items[:i], o.Items[i+1:]...)
				s.markDirtyLocked()
				return nil
			}
		}
		return fmt.Errorf("delete item %s: %w", itemID, ErrItemNotInDraft)
	}
	return fmt.Errorf("delete item in order %s: %w", orderID, ErrOrderNotInDraft)
}

// UpdateCommission records the raw text the user typed and applies its
// coerced value to the draft cycle. Non-numeric input means 0% for all
// profit math while the text stays displayable as entered.
func (s *DraftService) UpdateCommission(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoDraftLoaded
	}
	s.comisionRaw = raw
	s.cycle.ComisionPorcentaje = ledger.ParseCommission(raw)
	s.markDirtyLocked()
	return nil
}

// Commit persists the draft: the cycle itself when its fields changed, then
// every order in the draft (each save replaces that order's item set), then
// the orders present in the baseline but deleted from the draft. The first
// failing step aborts the sequence; the session stays Dirty and nothing
// already written is rolled back, so re-invoking Commit retries from a
// consistent draft. A Clean session commits as a no-op with zero store calls.
// Re-entrant commits are rejected; draft mutations made while a commit is in
// flight are legal and land in the next commit.
func (s *DraftService) Commit(ctx context.Context) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNoDraftLoaded
	}
	if s.committing {
		s.mu.Unlock()
		return ErrCommitInFlight
	}
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.committing = true
	gen := s.gen
	cycle := s.cycle.Clone()
	orders := ledger.CloneOrders(s.orders)
	baseCycle := s.baseCycle
	baseOrders := s.baseOrders
	s.mu.Unlock()

	err := s.writeCommit(ctx, cycle, orders, baseCycle, baseOrders)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.committing = false
	if err != nil {
		s.logger.Printf("ERROR: Commit failed for cycle %s: %v", cycle.ID, err)
		return err
	}
	// The committed snapshot becomes the new baseline. The session returns to
	// Clean only if no mutation landed while the writes were in flight.
	s.baseCycle = cycle
	s.baseOrders = orders
	if s.gen == gen {
		s.dirty = false
	}
	s.logger.Printf("INFO: Commit succeeded for cycle %s (%d orders).", cycle.ID, len(orders))
	return nil
}

func (s *DraftService) writeCommit(ctx context.Context, cycle *ledger.Cycle, orders []*ledger.Order, baseCycle *ledger.Cycle, baseOrders []*ledger.Order) error {
	if baseCycle == nil || *cycle != *baseCycle {
		if err := s.repo.SaveCycle(ctx, cycle); err != nil {
			return fmt.Errorf("commit: save cycle %s: %w", cycle.ID, err)
		}
	}

	inDraft := make(map[string]bool, len(orders))
	for _, o := range orders {
		inDraft[o.ID] = true
		if err := s.repo.SaveOrder(ctx, o); err != nil {
			return fmt.Errorf("commit: save order %s: %w", o.ID, err)
		}
	}

	for _, o := range baseOrders {
		if inDraft[o.ID] {
			continue
		}
		if err := s.repo.DeleteOrder(ctx, o.ID); err != nil {
			return fmt.Errorf("commit: delete order %s: %w", o.ID, err)
		}
	}
	return nil
}

// Discard throws away all uncommitted edits, restoring the draft from the
// baseline snapshot. Rejected while a commit is in flight.
func (s *DraftService) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoDraftLoaded
	}
	if s.committing {
		return ErrCommitInFlight
	}
	s.cycle = s.baseCycle.Clone()
	s.orders = ledger.CloneOrders(s.baseOrders)
	s.comisionRaw = ledger.FormatCommission(s.cycle.ComisionPorcentaje)
	s.dirty = false
	s.gen++
	return nil
}

// HasUnsavedChanges reports whether the draft differs from the baseline.
// Callers must consult this before destructive navigation; the session
// itself never prompts.
func (s *DraftService) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Cycle returns a copy of the draft cycle.
func (s *DraftService) Cycle() *ledger.Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle.Clone()
}

// Orders returns a deep copy of the draft orders in display order.
func (s *DraftService) Orders() []*ledger.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.CloneOrders(s.orders)
}

// CommissionInput returns the commission text exactly as last entered.
func (s *DraftService) CommissionInput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comisionRaw
}

// Summary recomputes the cycle's financial summary from the current draft.
func (s *DraftService) Summary() ledger.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.Summarize(s.cycle, s.orders)
}
