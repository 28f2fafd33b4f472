package etl

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format.
// Every source emits Records; the engine feeds them to a river session.

// Record is a single row flowing through the pipeline. Columns is the header
// shared by every record of one read, in source order. A nil value is NULL.
type Record struct {
	Columns []string  `json:"columns"`
	Values  []*string `json:"values"`
}
