// internal/app/stats_service.go
package app

import (
	"context"
	"fmt"
	"log"

	"reseller_ledger/internal/domain/ledger"
)

// EmpresaStats is the cross-cycle profit view for one company partition
// (or for every cycle when no partition is given).
type EmpresaStats struct {
	// Rows are ordered oldest cycle first, the order they are charted in.
	Rows   []ledger.CycleBreakdown
	Totals ledger.CrossCycleTotals
}

// StatsService derives cross-cycle summaries on demand. It holds no state of
// its own; every call recomputes from the store.
type StatsService struct {
	repo   ledger.Repository
	logger *log.Logger
}

func NewStatsService(repo ledger.Repository, logger *log.Logger) *StatsService {
	return &StatsService{repo: repo, logger: logger}
}

// Stats computes per-cycle totals and accumulated profit. An empty empresa
// includes all cycles; an empty store yields zero totals.
func (s *StatsService) Stats(ctx context.Context, empresa string) (*EmpresaStats, error) {
	all, err := s.repo.ListCycles(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	cycles := make([]*ledger.Cycle, 0, len(all))
	for _, c := range all {
		if empresa == "" || c.Empresa == empresa {
			cycles = append(cycles, c)
		}
	}

	ordersByCycle := make(map[string][]*ledger.Order, len(cycles))
	for _, c := range cycles {
		orders, err := s.repo.ListOrders(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("stats: orders for cycle %s: %w", c.ID, err)
		}
		ordersByCycle[c.ID] = orders
	}

	rows, totals := ledger.CrossCycleSummary(cycles, ordersByCycle)

	// ListCycles is newest-first; charts read oldest-first.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	s.logger.Printf("INFO: Stats computed for empresa %q over %d cycles.", empresa, totals.Ciclos)
	return &EmpresaStats{Rows: rows, Totals: totals}, nil
}
