// internal/domain/ledger/summary.go
package ledger

import "github.com/shopspring/decimal"

// Summary is the derived financial view of one cycle. It is recomputed from
// the live hierarchy on every query and never persisted.
type Summary struct {
	TotalVendido       decimal.Decimal
	GananciaNeta       decimal.Decimal
	TotalPagado        decimal.Decimal
	TotalPendiente     decimal.Decimal
	ClientesPendientes int
}

// CycleBreakdown is one row of a cross-cycle summary.
type CycleBreakdown struct {
	Cycle        *Cycle
	TotalVendido decimal.Decimal
	Ganancia     decimal.Decimal
}

// CrossCycleTotals accumulates profit across cycles, with a per-empresa split.
type CrossCycleTotals struct {
	Ganancia   decimal.Decimal
	Ciclos     int
	PorEmpresa map[string]decimal.Decimal
}

// All arithmetic below runs in decimal space so that
// OrderPaid + OrderPending == ItemTotal holds exactly and the commission
// multiply carries no float drift. Amounts enter via decimal.NewFromFloat.

// ItemTotal sums the amounts of every item on the order.
func ItemTotal(o *Order) decimal.Decimal {
	total := decimal.Zero
	if o == nil {
		return total
	}
	for _, it := range o.Items {
		total = total.Add(decimal.NewFromFloat(it.Monto))
	}
	return total
}

// OrderPaid sums the amounts of items flagged as paid.
func OrderPaid(o *Order) decimal.Decimal {
	paid := decimal.Zero
	if o == nil {
		return paid
	}
	for _, it := range o.Items {
		if it.Pagado {
			paid = paid.Add(decimal.NewFromFloat(it.Monto))
		}
	}
	return paid
}

// OrderPending is the unpaid remainder of the order.
func OrderPending(o *Order) decimal.Decimal {
	return ItemTotal(o).Sub(OrderPaid(o))
}

// CycleTotal sums ItemTotal over all orders.
func CycleTotal(orders []*Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(ItemTotal(o))
	}
	return total
}

// CyclePaid sums OrderPaid over all orders.
func CyclePaid(orders []*Order) decimal.Decimal {
	paid := decimal.Zero
	for _, o := range orders {
		paid = paid.Add(OrderPaid(o))
	}
	return paid
}

// CyclePending sums OrderPending over all orders.
func CyclePending(orders []*Order) decimal.Decimal {
	pending := decimal.Zero
	for _, o := range orders {
		pending = pending.Add(OrderPending(o))
	}
	return pending
}

// CycleProfit is total * commission / 100. A nil cycle or a commission that
// was coerced to zero yields zero profit.
func CycleProfit(c *Cycle, orders []*Order) decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	pct := decimal.NewFromFloat(c.ComisionPorcentaje)
	return CycleTotal(orders).Mul(pct).Div(decimal.NewFromInt(100))
}

// Summarize derives the full per-cycle summary. A client counts as pending
// while its order still has an unpaid remainder.
func Summarize(c *Cycle, orders []*Order) Summary {
	s := Summary{
		TotalVendido:   CycleTotal(orders),
		TotalPagado:    CyclePaid(orders),
		TotalPendiente: CyclePending(orders),
		GananciaNeta:   CycleProfit(c, orders),
	}
	for _, o := range orders {
		if OrderPending(o).IsPositive() {
			s.ClientesPendientes++
		}
	}
	return s
}

// CrossCycleSummary computes per-cycle breakdown rows plus grand totals.
// ordersByCycle maps cycle ID to that cycle's orders; cycles without an entry
// contribute zero. An empty cycle set returns zero totals, not an error.
func CrossCycleSummary(cycles []*Cycle, ordersByCycle map[string][]*Order) ([]CycleBreakdown, CrossCycleTotals) {
	rows := make([]CycleBreakdown, 0, len(cycles))
	totals := CrossCycleTotals{
		Ganancia:   decimal.Zero,
		PorEmpresa: make(map[string]decimal.Decimal),
	}
	for _, c := range cycles {
		orders := ordersByCycle[c.ID]
		row := CycleBreakdown{
			Cycle:        c,
			TotalVendido: CycleTotal(orders),
			Ganancia:     CycleProfit(c, orders),
		}
		rows = append(rows, row)
		totals.Ganancia = totals.Ganancia.Add(row.Ganancia)
		totals.Ciclos++
		prev, ok := totals.PorEmpresa[c.Empresa]
		if !ok {
			prev = decimal.Zero
		}
		totals.PorEmpresa[c.Empresa] = prev.Add(row.Ganancia)
	}
	return rows, totals
}
