package models

// Provenance tags a counter value with where it came from: real observed
// data, or the "no data" sentinel for keys the store has never seen.
// An observed zero and an unseen key are different things and must stay
// distinguishable all the way to the output.
type Provenance string

const (
	Observed Provenance = "data"
	NoData   Provenance = "NaD"
)

// Count is one counter value paired with its provenance tag.
type Count struct {
	Value float64
	Tag   Provenance
}

// Counts is the flattened "counts" namespace exchanged between the
// inference applier and the derived-column engine. Keys are composed
// counter names like "trial_host" or "label_region".
type Counts map[string]Count

// Cell is a single (column, value) assignment inside a row.
type Cell struct {
	Column string
	Value  string
}

// Row is an immutable ordered set of cells with an explicit identifier.
// The identifier doubles as the default ordering key during training.
type Row struct {
	ID    string
	Cells []Cell
}

// Get returns the value of the named column and whether it is present.
// The first matching cell wins.
func (r Row) Get(column string) (string, bool) {
	for _, c := range r.Cells {
		if c.Column == column {
			return c.Value, true
		}
	}
	return "", false
}

// Has reports whether the row carries the named column.
func (r Row) Has(column string) bool {
	_, ok := r.Get(column)
	return ok
}

// Feature is one named integer feature emitted for a training row.
type Feature struct {
	Name  string
	Value int64
}

// FeatureRow is the per-input-row output of a training pass: the causal
// pre-update counters for every (counter, selected column) pair, in a
// deterministic order.
type FeatureRow struct {
	ID      string
	Columns []Feature
}

// Get returns the named feature value and whether it exists.
func (f FeatureRow) Get(name string) (int64, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c.Value, true
		}
	}
	return 0, false
}

// DerivedColumn is one evaluated (name, value) pair produced by the
// derived-column expression engine.
type DerivedColumn struct {
	Name  string
	Value float64
}

// Record is the loosely-typed envelope passed through registered
// functions. Conventional namespaces: "keys" (map[string]string, inference
// input) and "counts" (Counts, inference output / derived input).
type Record map[string]interface{}
