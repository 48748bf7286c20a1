// internal/infra/database/local_ledger_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"reseller_ledger/internal/domain/ledger"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Bucket keys match the legacy local-storage layout so existing data files
// remain readable.
const (
	bucketCycles = "gm_planillas"
	bucketOrders = "gm_pedidos"
)

// LocalLedgerRepository is the offline fallback: a single sqlite table of
// JSON payloads keyed by bucket, one bucket per entity family. Items travel
// embedded inside each order's JSON form; there is no separate item bucket
// and no store-level cascade, so cycle deletion filters orders explicitly.
// Once opened, the store never reports ErrBackendUnavailable.
type LocalLedgerRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewLocalLedgerRepository opens (creating if needed) the local store at path.
func NewLocalLedgerRepository(path string) (*LocalLedgerRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &LocalLedgerRepository{db: db}, nil
}

// Close releases the underlying database handle.
func (r *LocalLedgerRepository) Close() error {
	return r.db.Close()
}

func (r *LocalLedgerRepository) readBucket(ctx context.Context, bucket string, out any) error {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, bucket).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil // empty store, leave out at its zero value
	}
	if err != nil {
		return fmt.Errorf("read bucket %s: %w", bucket, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode bucket %s: %w: %v", bucket, ledger.ErrMalformedRecord, err)
	}
	return nil
}

func (r *LocalLedgerRepository) writeBucket(ctx context.Context, bucket string, in any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode bucket %s: %w", bucket, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO state (bucket, payload) VALUES (?, ?)
          ON CONFLICT (bucket) DO UPDATE SET payload = excluded.payload`, bucket, payload)
	if err != nil {
		return fmt.Errorf("write bucket %s: %w", bucket, err)
	}
	return nil
}

func (r *LocalLedgerRepository) loadCycles(ctx context.Context) ([]*ledger.Cycle, error) {
	cycles := make([]*ledger.Cycle, 0)
	if err := r.readBucket(ctx, bucketCycles, &cycles); err != nil {
		return nil, err
	}
	return cycles, nil
}

func (r *LocalLedgerRepository) loadOrders(ctx context.Context) ([]*ledger.Order, error) {
	orders := make([]*ledger.Order, 0)
	if err := r.readBucket(ctx, bucketOrders, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *LocalLedgerRepository) ListCycles(ctx context.Context) ([]*ledger.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadCycles(ctx)
}

// SaveCycle upserts in place; a brand-new cycle is unshifted to the head so
// the listing stays newest-first without re-sorting.
func (r *LocalLedgerRepository) SaveCycle(ctx context.Context, c *ledger.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cycles, err := r.loadCycles(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range cycles {
		if existing.ID == c.ID {
			cycles[i] = c.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		cycles = append([]*ledger.Cycle{c.Clone()}, cycles...)
	}
	return r.writeBucket(ctx, bucketCycles, cycles)
}

func (r *LocalLedgerRepository) DeleteCycle(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cycles, err := r.loadCycles(ctx)
	if err != nil {
		return err
	}
	kept := cycles[:0]
	for _, c := range cycles {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if err := r.writeBucket(ctx, bucketCycles, kept); err != nil {
		return err
	}

	// The store has no cascade of its own: orders (with their embedded items)
	// must be filtered out here to honor the gateway contract.
	orders, err := r.loadOrders(ctx)
	if err != nil {
		return err
	}
	keptOrders := orders[:0]
	for _, o := range orders {
		if o.PlanillaID != id {
			keptOrders = append(keptOrders, o)
		}
	}
	return r.writeBucket(ctx, bucketOrders, keptOrders)
}

func (r *LocalLedgerRepository) ListOrders(ctx context.Context, cycleID string) ([]*ledger.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.loadOrders(ctx)
	if err != nil {
		return nil, err
	}
	orders := make([]*ledger.Order, 0)
	for _, o := range all {
		if o.PlanillaID == cycleID {
			orders = append(orders, o.Clone())
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt > orders[j].CreatedAt
	})
	for _, o := range orders {
		items := o.Items
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].CreatedAt < items[j].CreatedAt
		})
		if o.Items == nil {
			o.Items = []ledger.Item{}
		}
	}
	return orders, nil
}

// SaveOrder stores the order with its current item set embedded, which makes
// the "replace items wholesale" policy automatic on this backend.
func (r *LocalLedgerRepository) SaveOrder(ctx context.Context, o *ledger.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.loadOrders(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range all {
		if existing.ID == o.ID {
			all[i] = o.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, o.Clone())
	}
	return r.writeBucket(ctx, bucketOrders, all)
}

func (r *LocalLedgerRepository) DeleteOrder(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.loadOrders(ctx)
	if err != nil {
		return err
	}
	kept := all[:0]
	for _, o := range all {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	return r.writeBucket(ctx, bucketOrders, kept)
}
