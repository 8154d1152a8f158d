// Package formula implements the derived-column expression engine: a
// templated formula list is compiled once, and on every call one concrete
// column per declaration and per discovered key-family suffix is
// evaluated from a flattened counts namespace.
//
// Example expression, with counters trial/label:
//
//	counts.label/counts.trial as ctr_$tbl,
//	ln(counts.trial+1) as smooth_$tbl
//
// Applied to counts {label_host, trial_host, label_region, trial_region}
// this discovers the suffixes host and region and emits ctr_host,
// ctr_region, smooth_host, smooth_region.
package formula

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pivolan/stats_tables/domain/models"
)

var functions = map[string]func(float64) float64{
	"ln":   math.Log,
	"log":  math.Log,
	"exp":  math.Exp,
	"sqrt": math.Sqrt,
	"abs":  math.Abs,
}

type declaration struct {
	name nameTemplate
	expr node
}

// Template is a compiled set of (formula, output-name) declarations.
// Immutable after Compile; suffix specialization happens per call and
// never mutates the compiled tree.
type Template struct {
	decls   []declaration
	aliases []string // sorted, for deterministic suffix discovery
}

// Compile parses the declaration list `expr as name, ...`. counters is
// the set of counter aliases formulas may reference (trials counter plus
// outcome names, as reported by the stats table). Every output name must
// contain the $tbl placeholder. All template errors surface here.
func Compile(expression string, counters []string) (*Template, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("empty derived-column expression")
	}
	aliasSet := map[string]bool{}
	for _, c := range counters {
		aliasSet[c] = true
	}

	tokens, err := tokenize(expression)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, aliases: aliasSet}

	t := &Template{}
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		as := p.next()
		if as.kind != tokIdent || as.text != "as" {
			return nil, fmt.Errorf("expected 'as <name>' after formula, got %q", as.text)
		}
		nameTok := p.next()
		if nameTok.kind != tokIdent {
			return nil, fmt.Errorf("expected output name after 'as', got %q", nameTok.text)
		}
		name, err := parseNameTemplate(nameTok.text)
		if err != nil {
			return nil, err
		}
		t.decls = append(t.decls, declaration{name: name, expr: expr})

		if p.peek().kind == tokEOF {
			break
		}
		if !p.isOp(",") {
			return nil, fmt.Errorf("expected ',' or end of expression, got %q", p.peek().text)
		}
		p.next()
	}

	t.aliases = make([]string, 0, len(aliasSet))
	for a := range aliasSet {
		t.aliases = append(t.aliases, a)
	}
	sort.Strings(t.aliases)
	return t, nil
}

// binding resolves counter aliases for one suffix during evaluation. A
// counter that is absent from the input, or present but tagged with the
// no-data sentinel, resolves as missing rather than as zero.
type binding struct {
	suffix string
	counts models.Counts
}

func (b *binding) resolve(alias string) (float64, bool) {
	count, ok := b.counts[alias+"_"+b.suffix]
	if !ok || count.Tag == models.NoData {
		return 0, false
	}
	return count.Value, true
}

// Suffixes discovers the distinct key-family suffixes present in the
// counts namespace: a key `label_host` contributes `host` when `label`
// is a known alias. Discovery runs fresh on every call, so the output
// schema follows the input rather than being pinned at first use.
func (t *Template) Suffixes(counts models.Counts) []string {
	seen := map[string]bool{}
	for key := range counts {
		for _, alias := range t.aliases {
			if strings.HasPrefix(key, alias+"_") {
				seen[key[len(alias)+1:]] = true
			}
		}
	}
	suffixes := make([]string, 0, len(seen))
	for s := range seen {
		suffixes = append(suffixes, s)
	}
	sort.Strings(suffixes)
	return suffixes
}

// Apply evaluates every declaration once per discovered suffix and
// returns the flattened derived columns in (declaration, suffix) order.
// A declaration whose formula reads a missing counter (absent key or
// no-data sentinel) produces no column for that suffix; declarations
// built purely from literals always emit.
func (t *Template) Apply(counts models.Counts) ([]models.DerivedColumn, error) {
	suffixes := t.Suffixes(counts)
	var out []models.DerivedColumn
	for _, decl := range t.decls {
		for _, suffix := range suffixes {
			b := &binding{suffix: suffix, counts: counts}
			value, missing, err := decl.expr.eval(b)
			if err != nil {
				return nil, fmt.Errorf("evaluate %s: %w", decl.name.instantiate(suffix), err)
			}
			// Only counter references can be missing, so declarations
			// built purely from literals always pass through here.
			if missing {
				continue
			}
			out = append(out, models.DerivedColumn{
				Name:  decl.name.instantiate(suffix),
				Value: value,
			})
		}
	}
	return out, nil
}

// Names returns the instantiated output names for a suffix set, in
// declaration order. Used for sink headers and inspection.
func (t *Template) Names(suffixes []string) []string {
	var names []string
	for _, decl := range t.decls {
		for _, suffix := range suffixes {
			names = append(names, decl.name.instantiate(suffix))
		}
	}
	return names
}
