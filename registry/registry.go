// Package registry holds named, applyable functions produced by training
// and derived-column jobs, so downstream callers can compose them by
// name: the output record of an inference function feeds straight into a
// derived function.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pivolan/stats_tables/domain/models"
	"github.com/pivolan/stats_tables/formula"
	"github.com/pivolan/stats_tables/statstable"
)

// Function is one registered, side-effect-free record transformer.
type Function interface {
	Name() string
	Apply(in models.Record) (models.Record, error)
}

// Registry is a concurrency-safe name -> Function mapping.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

func New() *Registry {
	return &Registry{functions: map[string]Function{}}
}

// Register adds a function. Duplicate names are a configuration error.
func (r *Registry) Register(fn Function) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.functions[fn.Name()]; ok {
		return fmt.Errorf("function %q is already registered", fn.Name())
	}
	r.functions[fn.Name()] = fn
	return nil
}

// Lookup returns the named function.
func (r *Registry) Lookup(name string) (Function, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[name]
	if !ok {
		return nil, fmt.Errorf("no function registered under %q", name)
	}
	return fn, nil
}

// Names lists registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InferenceFunction wraps a stats-table applier: input record carries a
// "keys" namespace (column -> value), output carries the "counts"
// namespace with per-counter provenance tags.
type InferenceFunction struct {
	name    string
	applier *statstable.Applier
}

func NewInferenceFunction(name string, store *statstable.Store) *InferenceFunction {
	return &InferenceFunction{name: name, applier: statstable.NewApplier(store)}
}

func (f *InferenceFunction) Name() string { return f.name }

func (f *InferenceFunction) Apply(in models.Record) (models.Record, error) {
	keys, err := inputKeys(in)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", f.name, err)
	}
	return models.Record{"counts": f.applier.Apply(keys)}, nil
}

func inputKeys(in models.Record) (map[string]string, error) {
	raw, ok := in["keys"]
	if !ok {
		return nil, fmt.Errorf("input record has no \"keys\" namespace")
	}
	switch keys := raw.(type) {
	case map[string]string:
		return keys, nil
	case map[string]interface{}:
		out := make(map[string]string, len(keys))
		for k, v := range keys {
			out[k] = fmt.Sprint(v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("\"keys\" namespace is not a column->value mapping")
}

// DerivedFunction wraps a compiled derived-column template: input record
// carries a "counts" namespace, output is the flattened derived columns.
type DerivedFunction struct {
	name     string
	template *formula.Template
}

// NewDerivedFunction compiles the expression against the counter names
// of the given store.
func NewDerivedFunction(name, expression string, store *statstable.Store) (*DerivedFunction, error) {
	counters := make([]string, 0, len(store.CounterNames()))
	for _, c := range store.CounterNames() {
		counters = append(counters, statstable.SanitizeName(c))
	}
	template, err := formula.Compile(expression, counters)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", name, err)
	}
	return &DerivedFunction{name: name, template: template}, nil
}

func (f *DerivedFunction) Name() string { return f.name }

func (f *DerivedFunction) Apply(in models.Record) (models.Record, error) {
	counts, err := inputCounts(in)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", f.name, err)
	}
	columns, err := f.template.Apply(counts)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", f.name, err)
	}
	out := models.Record{}
	for _, col := range columns {
		out[col.Name] = col.Value
	}
	return out, nil
}

func inputCounts(in models.Record) (models.Counts, error) {
	raw, ok := in["counts"]
	if !ok {
		return nil, fmt.Errorf("input record has no \"counts\" namespace")
	}
	switch counts := raw.(type) {
	case models.Counts:
		return counts, nil
	case map[string]float64:
		out := models.Counts{}
		for k, v := range counts {
			out[k] = models.Count{Value: v, Tag: models.Observed}
		}
		return out, nil
	case map[string]interface{}:
		out := models.Counts{}
		for k, v := range counts {
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("count %q is not numeric", k)
			}
			out[k] = models.Count{Value: f, Tag: models.Observed}
		}
		return out, nil
	}
	return nil, fmt.Errorf("\"counts\" namespace is not a counter mapping")
}
