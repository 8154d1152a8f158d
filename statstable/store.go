package statstable

import (
	"fmt"
	"sort"

	"github.com/pivolan/stats_tables/domain/models"
)

// TrialCounter is the name of the implicit per-key trials counter. It is
// reserved and may not be used as an outcome name.
const TrialCounter = "trial"

// Bundle holds the counters accumulated for one (column, value) key:
// the trials counter plus one counter per configured outcome, in the
// store's outcome order. Trials is always >= every outcome counter.
type Bundle struct {
	Trials   int64
	Outcomes []int64
}

func newBundle(n int) *Bundle {
	return &Bundle{Outcomes: make([]int64, n)}
}

func (b *Bundle) clone() Bundle {
	out := Bundle{Trials: b.Trials, Outcomes: make([]int64, len(b.Outcomes))}
	copy(out.Outcomes, b.Outcomes)
	return out
}

// Store is the counter store: a mapping from (column, value) keys to
// counter bundles, partitioned by column name. A store is created empty,
// mutated by exactly one training pass, and frozen once persisted or
// loaded. Frozen stores are safe for unlimited concurrent reads.
type Store struct {
	outcomes []string
	columns  map[string]map[string]*Bundle
	frozen   bool
}

// New creates an empty store for the given ordered outcome set.
func New(outcomes []string) *Store {
	names := make([]string, len(outcomes))
	copy(names, outcomes)
	return &Store{
		outcomes: names,
		columns:  map[string]map[string]*Bundle{},
	}
}

// Outcomes returns the configured outcome names in counter order.
func (s *Store) Outcomes() []string {
	out := make([]string, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// CounterNames returns the trials counter name followed by the outcome
// names. This is the naming source for feature and derived columns.
func (s *Store) CounterNames() []string {
	return append([]string{TrialCounter}, s.outcomes...)
}

// Frozen reports whether the store has been persisted or loaded and is
// therefore read-only until Reopen is called.
func (s *Store) Frozen() bool {
	return s.frozen
}

// Reopen lifts the frozen state so a new training pass can keep
// accumulating into a previously persisted store.
func (s *Store) Reopen() {
	s.frozen = false
}

// Increment records one observation of value under column: the trials
// counter is bumped once, and every outcome whose hit flag is true is
// bumped once. The bundle is created on first sight. hits must be
// parallel to the outcome order.
func (s *Store) Increment(column, value string, hits []bool) error {
	if s.frozen {
		return fmt.Errorf("stats table is frozen, call Reopen before accumulating")
	}
	if len(hits) != len(s.outcomes) {
		return fmt.Errorf("got %d outcome hits, store has %d outcomes", len(hits), len(s.outcomes))
	}
	values, ok := s.columns[column]
	if !ok {
		values = map[string]*Bundle{}
		s.columns[column] = values
	}
	bundle, ok := values[value]
	if !ok {
		bundle = newBundle(len(s.outcomes))
		values[value] = bundle
	}
	bundle.Trials++
	for i, hit := range hits {
		if hit {
			bundle.Outcomes[i]++
		}
	}
	return nil
}

// Lookup returns a copy of the bundle for (column, value). The second
// return is false when the key was never observed; that is not the same
// thing as an all-zero bundle.
func (s *Store) Lookup(column, value string) (Bundle, bool) {
	values, ok := s.columns[column]
	if !ok {
		return Bundle{Outcomes: make([]int64, len(s.outcomes))}, false
	}
	bundle, ok := values[value]
	if !ok {
		return Bundle{Outcomes: make([]int64, len(s.outcomes))}, false
	}
	return bundle.clone(), true
}

// Columns returns the sorted list of column names with at least one
// observed value.
func (s *Store) Columns() []string {
	out := make([]string, 0, len(s.columns))
	for name := range s.columns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Values returns the sorted observed values for a column.
func (s *Store) Values(column string) []string {
	values, ok := s.columns[column]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(values))
	for v := range values {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Counts flattens one column's bundle for value into the shared counts
// namespace form used by inference output, tagging every counter with
// the given provenance.
func (s *Store) counts(column, value string, into models.Counts) {
	bundle, found := s.Lookup(column, value)
	tag := models.Observed
	if !found {
		tag = models.NoData
	}
	col := SanitizeName(column)
	into[TrialCounter+"_"+col] = models.Count{Value: float64(bundle.Trials), Tag: tag}
	for i, outcome := range s.outcomes {
		into[SanitizeName(outcome)+"_"+col] = models.Count{Value: float64(bundle.Outcomes[i]), Tag: tag}
	}
}
