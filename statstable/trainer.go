package statstable

import (
	"fmt"
	"sort"

	"github.com/pivolan/go_utils"
	"github.com/pivolan/stats_tables/domain/models"
	"github.com/pivolan/stats_tables/predicate"
)

// OrderByRowID is the ordering-key expression selecting the row
// identifier instead of a column.
const OrderByRowID = "_rowid"

// Outcome is one named boolean condition driving a counter.
type Outcome struct {
	Name       string
	Expression string
}

// TrainerConfig is the validated configuration of one training pass.
type TrainerConfig struct {
	// ExcludeColumns lists outcome-bearing columns to keep out of the
	// selected feature columns ("all columns except ...").
	ExcludeColumns []string
	Outcomes       []Outcome
	// OrderBy is the ascending ordering key: OrderByRowID or a column
	// name. Rows missing the ordering column sort first.
	OrderBy string
	// StoreFile, when set, is where the final store is persisted.
	StoreFile string
	// FunctionName is the name the resulting inference function is
	// registered under by the caller.
	FunctionName string
}

// RowSource supplies the training rows. Ordering is the trainer's
// responsibility, not the source's.
type RowSource interface {
	Rows() ([]models.Row, error)
}

// FeatureSink receives one output feature row per input row, in
// processing order.
type FeatureSink interface {
	Write(row models.FeatureRow) error
}

// Trainer runs one single-pass, order-dependent accumulation over a row
// stream. For every row it first captures the pre-update counters (the
// causal snapshot: exactly what inference would have answered before
// this row existed), then evaluates outcomes and increments. This
// snapshot-before-update ordering is the whole point of the component;
// it is what keeps the emitted training features leakage-free.
type Trainer struct {
	cfg   TrainerConfig
	preds []predicate.Predicate
}

// NewTrainer validates the configuration and compiles every outcome
// predicate. All configuration errors surface here, before any row is
// read.
func NewTrainer(cfg TrainerConfig) (*Trainer, error) {
	if len(cfg.Outcomes) == 0 {
		return nil, fmt.Errorf("training needs at least one outcome")
	}
	if cfg.OrderBy == "" {
		return nil, fmt.Errorf("training needs an ordering key, use %q for the row id", OrderByRowID)
	}
	seen := map[string]bool{}
	preds := make([]predicate.Predicate, 0, len(cfg.Outcomes))
	for _, outcome := range cfg.Outcomes {
		name := SanitizeName(outcome.Name)
		if name == "" {
			return nil, fmt.Errorf("outcome name %q sanitizes to nothing", outcome.Name)
		}
		if name == TrialCounter {
			return nil, fmt.Errorf("outcome name %q is reserved", TrialCounter)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate outcome name %q", name)
		}
		seen[name] = true
		pred, err := predicate.Compile(outcome.Expression)
		if err != nil {
			return nil, fmt.Errorf("outcome %s: %w", outcome.Name, err)
		}
		preds = append(preds, pred)
	}
	return &Trainer{cfg: cfg, preds: preds}, nil
}

// Run consumes the source, writes one feature row per input row to sink
// (nil sink discards), and returns the final frozen store. The store is
// persisted to cfg.StoreFile when configured.
func (t *Trainer) Run(src RowSource, sink FeatureSink) (*Store, error) {
	rows, err := src.Rows()
	if err != nil {
		return nil, fmt.Errorf("read training rows: %w", err)
	}
	t.sortRows(rows)

	selected := t.selectColumns(rows)
	outcomes := make([]string, len(t.cfg.Outcomes))
	for i, o := range t.cfg.Outcomes {
		outcomes[i] = o.Name
	}
	store := New(outcomes)

	for _, row := range rows {
		feature, err := t.processRow(store, row, selected)
		if err != nil {
			return nil, err
		}
		if sink != nil {
			if err := sink.Write(feature); err != nil {
				return nil, fmt.Errorf("write feature row %s: %w", row.ID, err)
			}
		}
	}

	if t.cfg.StoreFile != "" {
		if err := store.Save(t.cfg.StoreFile); err != nil {
			return nil, err
		}
	} else {
		store.frozen = true
	}
	return store, nil
}

func (t *Trainer) processRow(store *Store, row models.Row, selected []string) (models.FeatureRow, error) {
	feature := models.FeatureRow{ID: row.ID}

	// Snapshot first: counts from strictly-earlier rows only, never the
	// row's own contribution.
	for _, column := range selected {
		value, ok := row.Get(column)
		if !ok {
			continue
		}
		bundle, _ := store.Lookup(column, value)
		feature.Columns = append(feature.Columns, models.Feature{
			Name:  FeatureName(TrialCounter, column),
			Value: bundle.Trials,
		})
		for i, outcome := range store.outcomes {
			feature.Columns = append(feature.Columns, models.Feature{
				Name:  FeatureName(outcome, column),
				Value: bundle.Outcomes[i],
			})
		}
	}

	hits := make([]bool, len(t.preds))
	for i, pred := range t.preds {
		hit, err := pred.Eval(row)
		if err != nil {
			return feature, fmt.Errorf("evaluate outcome %s on row %s: %w", t.cfg.Outcomes[i].Name, row.ID, err)
		}
		hits[i] = hit
	}

	for _, column := range selected {
		value, ok := row.Get(column)
		if !ok {
			continue
		}
		if err := store.Increment(column, value, hits); err != nil {
			return feature, err
		}
	}
	return feature, nil
}

// sortRows orders the stream ascending by the configured key. The sort
// is stable so tie order is deterministic across runs over the same
// input.
func (t *Trainer) sortRows(rows []models.Row) {
	if t.cfg.OrderBy == OrderByRowID {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].ID < rows[j].ID
		})
		return
	}
	key := func(r models.Row) (string, bool) { return r.Get(t.cfg.OrderBy) }
	sort.SliceStable(rows, func(i, j int) bool {
		a, aok := key(rows[i])
		b, bok := key(rows[j])
		if aok != bok {
			return !aok // rows missing the ordering column sort first
		}
		return a < b
	})
}

// selectColumns is the explicit discovery pass: the concrete, immutable,
// sorted set of selected column names, computed before counting starts.
func (t *Trainer) selectColumns(rows []models.Row) []string {
	seen := map[string]bool{}
	for _, row := range rows {
		for _, cell := range row.Cells {
			if go_utils.InArray(cell.Column, t.cfg.ExcludeColumns) {
				continue
			}
			seen[cell.Column] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for name := range seen {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns
}
