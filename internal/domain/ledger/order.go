// internal/domain/ledger/order.go
package ledger

// Order is a client's record inside a cycle. Its items are exclusively owned:
// deleting the order deletes them, and saving the order replaces the whole
// item set. On the remote backend items live in a separate 'productos' table
// keyed by pedido_id; on the local backend they are embedded in the order's
// stored JSON form. Callers above the persistence layer only ever see Items.
type Order struct {
	ID            string `json:"id"`
	PlanillaID    string `json:"planilla_id"` // owning cycle, required
	ClienteNombre string `json:"cliente_nombre"`
	Items         []Item `json:"productos"`
	CreatedAt     string `json:"created_at"`
}

// Item is a single sellable line with an amount and paid status.
type Item struct {
	ID          string  `json:"id"`
	Descripcion string  `json:"descripcion"`
	Monto       float64 `json:"monto"`
	Pagado      bool    `json:"pagado"`
	CreatedAt   string  `json:"created_at"`
}

// Clone returns an independent copy of the order, items included.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	out := *o
	if o.Items != nil {
		out.Items = make([]Item, len(o.Items))
		copy(out.Items, o.Items)
	}
	return &out
}

// CloneOrders deep-copies a slice of orders. The result shares no backing
// storage with the input, so one side can be mutated freely.
func CloneOrders(orders []*Order) []*Order {
	if orders == nil {
		return nil
	}
	out := make([]*Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
