package statstable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivolan/stats_tables/domain/models"
)

func trainedClickStore(t *testing.T) *Store {
	t.Helper()
	store, err := clickTrainer(t, "").Run(clickRows(), nil)
	require.NoError(t, err)
	return store
}

func TestApplierKnownAndUnseenKeys(t *testing.T) {
	applier := NewApplier(trainedClickStore(t))

	counts := applier.Apply(map[string]string{
		"host":   "poire.com",
		"prout":  "existe pas", // not a trained column: ignored, no error
		"region": "verdun",
	})

	// poire.com was observed once, by a row with no CLICK.
	assert.Equal(t, models.Count{Value: 1, Tag: models.Observed}, counts["trial_host"])
	assert.Equal(t, models.Count{Value: 0, Tag: models.Observed}, counts["label_host"])
	assert.Equal(t, models.Count{Value: 1, Tag: models.Observed}, counts["not_label_host"])

	// verdun was never observed: zeros with the sentinel, uniformly.
	assert.Equal(t, models.Count{Value: 0, Tag: models.NoData}, counts["trial_region"])
	assert.Equal(t, models.Count{Value: 0, Tag: models.NoData}, counts["label_region"])
	assert.Equal(t, models.Count{Value: 0, Tag: models.NoData}, counts["not_label_region"])

	assert.Len(t, counts, 6)
}

func TestApplierOrderedOutput(t *testing.T) {
	applier := NewApplier(trainedClickStore(t))

	ordered := applier.ApplyOrdered(map[string]string{
		"host":   "poire.com",
		"region": "verdun",
	})
	names := make([]string, 0, len(ordered))
	for _, count := range ordered {
		names = append(names, count.Name)
	}
	assert.Equal(t, []string{
		"trial_host", "label_host", "not_label_host",
		"trial_region", "label_region", "not_label_region",
	}, names)
}

func TestApplierObservedZeroKeepsDataTag(t *testing.T) {
	applier := NewApplier(trainedClickStore(t))

	counts := applier.Apply(map[string]string{"region": "on"})
	// Two observations, neither clicked: label is a real zero.
	assert.Equal(t, models.Count{Value: 2, Tag: models.Observed}, counts["trial_region"])
	assert.Equal(t, models.Count{Value: 0, Tag: models.Observed}, counts["label_region"])
}

func TestApplierIgnoresUntrainedColumnsOnly(t *testing.T) {
	applier := NewApplier(trainedClickStore(t))
	counts := applier.Apply(map[string]string{"prout": "x"})
	assert.Empty(t, counts)
}

func TestApplierConcurrentReads(t *testing.T) {
	applier := NewApplier(trainedClickStore(t))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				counts := applier.Apply(map[string]string{"host": "pataté.com"})
				assert.Equal(t, float64(2), counts["trial_host"].Value)
			}
		}()
	}
	wg.Wait()
}
