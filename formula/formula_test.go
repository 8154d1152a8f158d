package formula

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivolan/stats_tables/domain/models"
)

// The counter aliases a click-through stats table exposes.
var clickCounters = []string{"trial", "label", "not_label"}

func observed(values map[string]float64) models.Counts {
	counts := models.Counts{}
	for name, value := range values {
		counts[name] = models.Count{Value: value, Tag: models.Observed}
	}
	return counts
}

func columnValue(t *testing.T, columns []models.DerivedColumn, name string) float64 {
	t.Helper()
	for _, col := range columns {
		if col.Name == name {
			return col.Value
		}
	}
	t.Fatalf("column %s not in result", name)
	return 0
}

func hasColumn(columns []models.DerivedColumn, name string) bool {
	for _, col := range columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

const clickExpression = `
	counts.label as lbl_hoho_$tbl,
	counts.label as lbl_$tbl,
	counts.label/counts.trial as ctr_$tbl,
	1 as pwet_$tbl,
	ln(counts.trial+1) as hoho_$tbl`

func TestApplyExpandsEverySuffix(t *testing.T) {
	template, err := Compile(clickExpression, clickCounters)
	require.NoError(t, err)

	columns, err := template.Apply(observed(map[string]float64{
		"label_host":   5,
		"trial_host":   500,
		"label_region": 0,
		"trial_region": 250,
	}))
	require.NoError(t, err)

	assert.InDelta(t, 0.01, columnValue(t, columns, "ctr_host"), 1e-3)
	assert.InDelta(t, 0, columnValue(t, columns, "ctr_region"), 1e-3)
	assert.InDelta(t, 1, columnValue(t, columns, "pwet_host"), 1e-3)
	assert.InDelta(t, 1, columnValue(t, columns, "pwet_region"), 1e-3)
	assert.InDelta(t, math.Log(501), columnValue(t, columns, "hoho_host"), 1e-3)
	assert.InDelta(t, math.Log(251), columnValue(t, columns, "hoho_region"), 1e-3)
	assert.InDelta(t, 5, columnValue(t, columns, "lbl_host"), 1e-3)
	assert.InDelta(t, 5, columnValue(t, columns, "lbl_hoho_host"), 1e-3)

	// 5 declarations x 2 suffixes.
	assert.Len(t, columns, 10)
}

func TestSuffixDiscovery(t *testing.T) {
	template, err := Compile("counts.label as x_$tbl", clickCounters)
	require.NoError(t, err)

	suffixes := template.Suffixes(observed(map[string]float64{
		"label_host":       1,
		"trial_host":       2,
		"not_label_region": 3,
		"unrelated":        4,
	}))
	assert.Equal(t, []string{"host", "region"}, suffixes)

	// Discovery is per call: a different input yields a different schema.
	suffixes = template.Suffixes(observed(map[string]float64{"trial_lang_fr": 1}))
	assert.Equal(t, []string{"lang_fr"}, suffixes)
}

func TestMissingCountersPropagate(t *testing.T) {
	template, err := Compile(
		"counts.label/counts.trial as ctr_$tbl, 2*3 as const_$tbl",
		clickCounters,
	)
	require.NoError(t, err)

	// region's trial counter is absent entirely.
	counts := observed(map[string]float64{
		"label_host":   1,
		"trial_host":   4,
		"label_region": 1,
	})
	columns, err := template.Apply(counts)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, columnValue(t, columns, "ctr_host"), 1e-9)
	assert.False(t, hasColumn(columns, "ctr_region"), "missing counter must not evaluate as zero")
	// Literal-only declarations always emit, for every suffix.
	assert.InDelta(t, 6, columnValue(t, columns, "const_region"), 1e-9)
	assert.InDelta(t, 6, columnValue(t, columns, "const_host"), 1e-9)
}

func TestNoDataSentinelPropagatesAsMissing(t *testing.T) {
	template, err := Compile("counts.label/counts.trial as ctr_$tbl", clickCounters)
	require.NoError(t, err)

	counts := observed(map[string]float64{"label_host": 1, "trial_host": 4})
	counts["label_region"] = models.Count{Value: 0, Tag: models.NoData}
	counts["trial_region"] = models.Count{Value: 0, Tag: models.NoData}

	columns, err := template.Apply(counts)
	require.NoError(t, err)
	assert.True(t, hasColumn(columns, "ctr_host"))
	assert.False(t, hasColumn(columns, "ctr_region"), "sentinel counters are missing, not zero")
}

func TestDivisionFollowsIEEE(t *testing.T) {
	template, err := Compile("counts.label/counts.trial as ctr_$tbl", clickCounters)
	require.NoError(t, err)

	columns, err := template.Apply(observed(map[string]float64{
		"label_host": 1,
		"trial_host": 0,
	}))
	require.NoError(t, err)
	assert.True(t, math.IsInf(columnValue(t, columns, "ctr_host"), 1))

	columns, err = template.Apply(observed(map[string]float64{
		"label_host": 0,
		"trial_host": 0,
	}))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(columnValue(t, columns, "ctr_host")))
}

func TestArithmetic(t *testing.T) {
	counts := observed(map[string]float64{"trial_x": 8, "label_x": 2})
	cases := []struct {
		expr string
		want float64
	}{
		{"counts.trial+counts.label as v_$tbl", 10},
		{"counts.trial-counts.label as v_$tbl", 6},
		{"counts.trial*counts.label as v_$tbl", 16},
		{"counts.trial/counts.label as v_$tbl", 4},
		{"-counts.label as v_$tbl", -2},
		{"counts.trial+counts.label*2 as v_$tbl", 12},  // precedence
		{"(counts.trial+counts.label)*2 as v_$tbl", 20}, // grouping
		{"ln(exp(1)) as v_$tbl", 1},
		{"sqrt(counts.trial+1) as v_$tbl", 3},
		{"abs(counts.label-counts.trial) as v_$tbl", 6},
		{"0.5*counts.trial as v_$tbl", 4},
	}
	for _, tc := range cases {
		template, err := Compile(tc.expr, clickCounters)
		require.NoError(t, err, tc.expr)
		columns, err := template.Apply(counts)
		require.NoError(t, err, tc.expr)
		assert.InDelta(t, tc.want, columnValue(t, columns, "v_x"), 1e-9, tc.expr)
	}
}

func TestPlaceholderSubstitutionIsStructural(t *testing.T) {
	// The placeholder may sit anywhere in the name, including the
	// middle, and only real placeholder positions are replaced.
	template, err := Compile("counts.trial as pre_$tbl_post", clickCounters)
	require.NoError(t, err)

	columns, err := template.Apply(observed(map[string]float64{"trial_host": 7}))
	require.NoError(t, err)
	require.Len(t, columns, 1)
	assert.Equal(t, "pre_host_post", columns[0].Name)
	assert.InDelta(t, 7, columns[0].Value, 1e-9)
}

func TestEmptyCountsYieldNoColumns(t *testing.T) {
	template, err := Compile("1 as pwet_$tbl", clickCounters)
	require.NoError(t, err)
	columns, err := template.Apply(models.Counts{})
	require.NoError(t, err)
	assert.Empty(t, columns)
}

func TestCompileErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"counts.label as ctr", // no placeholder in the output name
		"counts.nope as x_$tbl",
		"label as x_$tbl", // missing counts namespace
		"counts.label x_$tbl",
		"counts.label as",
		"counts.label as 5",
		"counts.label/ as x_$tbl",
		"(counts.label as x_$tbl",
		"counts.label as x_$tbl,",
		"ln(counts.label as x_$tbl",
		"counts.label as x_$tbl extra_$tbl",
		"1e as x_$tbl",
	} {
		_, err := Compile(expr, clickCounters)
		assert.Error(t, err, "expression %q should not compile", expr)
	}
}
