// internal/domain/ledger/repository.go
package ledger

import (
	"context"
	"errors"
)

// Error taxonomy shared by both backends. Implementations wrap their driver
// errors into these sentinels; no driver-specific error shape crosses the
// repository boundary.
var (
	// ErrBackendUnavailable marks transient network/service failures. The
	// caller may retry the whole operation (e.g. re-invoke a commit).
	ErrBackendUnavailable = errors.New("ledger backend unavailable")
	// ErrMalformedRecord marks a persistent schema mismatch, such as a column
	// the remote store was never migrated to have. Not retryable; the wrapped
	// message names the missing capability.
	ErrMalformedRecord = errors.New("malformed ledger record")

	ErrCycleNotFound = errors.New("ledger cycle not found")
	ErrOrderNotFound = errors.New("order not found")
)

// Repository defines the persistence gateway over cycles and their orders.
// Two interchangeable implementations exist: a remote Postgres store and a
// local key-value fallback. Both honor the same contract:
//
//   - deleting a cycle always removes its orders and their items, even if the
//     underlying store has no cascade of its own;
//   - saving an order replaces its item set wholesale (no stale or duplicate
//     items survive a re-save);
//   - ListCycles returns newest creation first, ListOrders returns orders
//     newest-first with each order's items oldest-first.
type Repository interface {
	ListCycles(ctx context.Context) ([]*Cycle, error)
	// SaveCycle upserts by ID. An existing cycle has its fields replaced
	// wholesale; a new one enters at the head of the listing order.
	SaveCycle(ctx context.Context, cycle *Cycle) error
	DeleteCycle(ctx context.Context, id string) error

	ListOrders(ctx context.Context, cycleID string) ([]*Order, error)
	SaveOrder(ctx context.Context, order *Order) error
	DeleteOrder(ctx context.Context, id string) error
}
