package statstable

import (
	"github.com/pivolan/stats_tables/domain/models"
)

// Applier answers inference-time lookups over one frozen store. It is
// pure and stateless; any number of goroutines may share one Applier.
type Applier struct {
	store *Store
}

// NewApplier wraps a finalized store for read-only application.
func NewApplier(store *Store) *Applier {
	return &Applier{store: store}
}

// Apply looks up every input key that names a trained column and returns
// the flattened counts namespace: for each such column, the trials
// counter plus one counter per outcome. A known (column, value) pair is
// tagged Observed with its real counts; an unseen value yields all-zero
// counters tagged NoData, uniformly across the whole bundle. Input keys
// with no corresponding trained column are ignored.
func (a *Applier) Apply(keys map[string]string) models.Counts {
	counts := models.Counts{}
	for _, column := range a.store.Columns() {
		value, ok := keys[column]
		if !ok {
			continue
		}
		a.store.counts(column, value, counts)
	}
	return counts
}

// AppliedCount is one output counter in rendering order.
type AppliedCount struct {
	Name string
	models.Count
}

// ApplyOrdered is Apply with a deterministic column order (store column
// order, trials before outcomes), for rendering and wire output.
func (a *Applier) ApplyOrdered(keys map[string]string) []AppliedCount {
	var out []AppliedCount
	for _, column := range a.store.Columns() {
		value, ok := keys[column]
		if !ok {
			continue
		}
		counts := models.Counts{}
		a.store.counts(column, value, counts)
		for _, counter := range a.store.CounterNames() {
			name := FeatureName(counter, column)
			out = append(out, AppliedCount{Name: name, Count: counts[name]})
		}
	}
	return out
}
