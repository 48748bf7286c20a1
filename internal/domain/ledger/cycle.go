// internal/domain/ledger/cycle.go
package ledger

// Cycle represents one time-boxed sales period ("planilla"): it owns a set of
// client orders and carries the commission percentage used to derive profit.
// Corresponds to the 'planillas' table on the remote backend and the
// 'gm_planillas' bucket on the local one.
type Cycle struct {
	ID                 string  `json:"id"`
	Nombre             string  `json:"nombre"`
	ComisionPorcentaje float64 `json:"comision_porcentaje"`
	Empresa            string  `json:"empresa,omitempty"` // optional company/catalog partition
	CreatedAt          string  `json:"created_at"`        // ISO-8601, fixed width, sortable as text
}

// Clone returns an independent copy of the cycle.
func (c *Cycle) Clone() *Cycle {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}
