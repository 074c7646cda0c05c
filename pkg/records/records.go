// Package records defines the row representation shared between the parser,
// the ingestion loader, and storage backends. A Record is a column-name keyed
// map whose values are either nil (SQL NULL) or already-typed Go values.
package records

// Record is a single logical row. Keys are canonical column names; values are
// nil, string, int64, float64, bool, or time.Time depending on how far the
// row has travelled through the pipeline.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Columns returns the record's keys in unspecified order.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	return cols
}
