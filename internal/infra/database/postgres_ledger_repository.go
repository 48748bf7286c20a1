// internal/infra/database/postgres_ledger_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reseller_ledger/internal/domain/ledger"

	"github.com/lib/pq" // For pq.Array and driver registration
)

// PostgresLedgerRepository is the remote backend: cycles, orders and items
// live in three normalized tables (see schema.sql). Items are a separate
// table joined in memory by pedido_id; callers only ever see Order.Items.
type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

// pgUndefinedColumn is the Postgres error code for a column that does not
// exist, i.e. a schema that was never migrated to carry it.
const pgUndefinedColumn = "42703"

// wrapPGError maps driver errors into the repository's error taxonomy. An
// undefined column becomes ErrMalformedRecord with the server message kept,
// so the caller can tell the user which migration is missing. Everything
// else is treated as the backend being unreachable or failing transiently.
func wrapPGError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUndefinedColumn {
		return fmt.Errorf("%s: %w: %s", op, ledger.ErrMalformedRecord, pqErr.Message)
	}
	return fmt.Errorf("%s: %w: %v", op, ledger.ErrBackendUnavailable, err)
}

func (r *PostgresLedgerRepository) ListCycles(ctx context.Context) ([]*ledger.Cycle, error) {
	query := `SELECT id, nombre, comision_porcentaje, COALESCE(empresa, ''), created_at
               FROM planillas ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapPGError("list cycles", err)
	}
	defer rows.Close()

	cycles := make([]*ledger.Cycle, 0)
	for rows.Next() {
		c := &ledger.Cycle{}
		if err := rows.Scan(&c.ID, &c.Nombre, &c.ComisionPorcentaje, &c.Empresa, &c.CreatedAt); err != nil {
			return nil, wrapPGError("scan cycle", err)
		}
		cycles = append(cycles, c)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapPGError("iterate cycles", err)
	}
	return cycles, nil
}

func (r *PostgresLedgerRepository) SaveCycle(ctx context.Context, c *ledger.Cycle) error {
	query := `INSERT INTO planillas (id, nombre, comision_porcentaje, empresa, created_at)
               VALUES ($1, $2, $3, NULLIF($4, ''), $5)
               ON CONFLICT (id) DO UPDATE
               SET nombre = EXCLUDED.nombre,
                   comision_porcentaje = EXCLUDED.comision_porcentaje,
                   empresa = EXCLUDED.empresa,
                   created_at = EXCLUDED.created_at`

	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Nombre, c.ComisionPorcentaje, c.Empresa, c.CreatedAt); err != nil {
		return wrapPGError("save cycle", err)
	}
	return nil
}

// DeleteCycle removes the cycle and everything it owns. The schema carries no
// ON DELETE CASCADE, so the children are deleted explicitly, inside one
// transaction, mirroring the local backend's behavior.
func (r *PostgresLedgerRepository) DeleteCycle(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapPGError("delete cycle: begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM productos WHERE pedido_id IN (SELECT id FROM pedidos WHERE planilla_id = $1)`, id); err != nil {
		return wrapPGError("delete cycle: items", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pedidos WHERE planilla_id = $1`, id); err != nil {
		return wrapPGError("delete cycle: orders", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM planillas WHERE id = $1`, id); err != nil {
		return wrapPGError("delete cycle", err)
	}
	if err := tx.Commit(); err != nil {
		return wrapPGError("delete cycle: commit", err)
	}
	return nil
}

func (r *PostgresLedgerRepository) ListOrders(ctx context.Context, cycleID string) ([]*ledger.Order, error) {
	query := `SELECT id, planilla_id, cliente_nombre, created_at
               FROM pedidos WHERE planilla_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, cycleID)
	if err != nil {
		return nil, wrapPGError("list orders", err)
	}
	defer rows.Close()

	orders := make([]*ledger.Order, 0)
	byID := make(map[string]*ledger.Order)
	ids := make([]string, 0)
	for rows.Next() {
		o := &ledger.Order{Items: []ledger.Item{}}
		if err := rows.Scan(&o.ID, &o.PlanillaID, &o.ClienteNombre, &o.CreatedAt); err != nil {
			return nil, wrapPGError("scan order", err)
		}
		orders = append(orders, o)
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapPGError("iterate orders", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	itemQuery := `SELECT id, pedido_id, descripcion, monto, pagado, created_at
                   FROM productos WHERE pedido_id = ANY($1) ORDER BY created_at ASC`

	itemRows, err := r.db.QueryContext(ctx, itemQuery, pq.Array(ids))
	if err != nil {
		return nil, wrapPGError("list items", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it ledger.Item
		var pedidoID string
		if err := itemRows.Scan(&it.ID, &pedidoID, &it.Descripcion, &it.Monto, &it.Pagado, &it.CreatedAt); err != nil {
			return nil, wrapPGError("scan item", err)
		}
		if o, ok := byID[pedidoID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	if err = itemRows.Err(); err != nil {
		return nil, wrapPGError("iterate items", err)
	}
	return orders, nil
}

// SaveOrder upserts the order's scalar fields, then replaces its stored item
// set wholesale: delete everything under the pedido_id, re-insert the current
// list. Reconciling partial item diffs is deliberately avoided; both backends
// converge on "exact item set replacement".
func (r *PostgresLedgerRepository) SaveOrder(ctx context.Context, o *ledger.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapPGError("save order: begin", err)
	}
	defer tx.Rollback()

	upsert := `INSERT INTO pedidos (id, planilla_id, cliente_nombre, created_at)
                VALUES ($1, $2, $3, $4)
                ON CONFLICT (id) DO UPDATE
                SET planilla_id = EXCLUDED.planilla_id,
                    cliente_nombre = EXCLUDED.cliente_nombre,
                    created_at = EXCLUDED.created_at`
	if _, err := tx.ExecContext(ctx, upsert, o.ID, o.PlanillaID, o.ClienteNombre, o.CreatedAt); err != nil {
		return wrapPGError("save order", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM productos WHERE pedido_id = $1`, o.ID); err != nil {
		return wrapPGError("save order: clear items", err)
	}

	if len(o.Items) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO productos (id, pedido_id, descripcion, monto, pagado, created_at)
              VALUES ($1, $2, $3, $4, $5, $6)`)
		if err != nil {
			return wrapPGError("save order: prepare items", err)
		}
		defer stmt.Close()
		for _, it := range o.Items {
			if _, err := stmt.ExecContext(ctx, it.ID, o.ID, it.Descripcion, it.Monto, it.Pagado, it.CreatedAt); err != nil {
				return wrapPGError("save order: insert item", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapPGError("save order: commit", err)
	}
	return nil
}

func (r *PostgresLedgerRepository) DeleteOrder(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapPGError("delete order: begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM productos WHERE pedido_id = $1`, id); err != nil {
		return wrapPGError("delete order: items", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pedidos WHERE id = $1`, id); err != nil {
		return wrapPGError("delete order", err)
	}
	if err := tx.Commit(); err != nil {
		return wrapPGError("delete order: commit", err)
	}
	return nil
}
