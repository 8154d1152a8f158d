package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivolan/stats_tables/statstable"
)

func TestLoadJobConfig(t *testing.T) {
	path := writeTempFile(t, "train.json", `{
		"trainingData": "clicks.csv",
		"excluding": ["CLICK"],
		"outcomes": [{"name": "label", "expression": "CLICK IS NOT NULL"}],
		"statsTableFile": "clicks.st",
		"functionName": "mySt"
	}`)
	cfg := TrainJobConfig{}
	require.NoError(t, loadJobConfig(path, &cfg))
	assert.Equal(t, "clicks.csv", cfg.TrainingData)
	assert.Equal(t, []string{"CLICK"}, cfg.Excluding)
	require.Len(t, cfg.Outcomes, 1)
	assert.Equal(t, "label", cfg.Outcomes[0].Name)
}

func TestLoadJobConfigRejectsUnknownFields(t *testing.T) {
	path := writeTempFile(t, "train.json", `{"trainingData": "x.csv", "runOnCreation": true}`)
	cfg := TrainJobConfig{}
	err := loadJobConfig(path, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runOnCreation")
}

func TestRunTrainEndToEnd(t *testing.T) {
	dir := t.TempDir()
	trainingData := filepath.Join(dir, "clicks.csv")
	require.NoError(t, os.WriteFile(trainingData, []byte(clicksCSV), 0644))
	outputData := filepath.Join(dir, "features.csv")
	storeFile := filepath.Join(dir, "clicks.st")

	jobConfig := writeTempFile(t, "train.json", `{
		"trainingData": "`+trainingData+`",
		"outputData": "`+outputData+`",
		"excluding": ["CLICK"],
		"orderBy": "_rowid",
		"outcomes": [
			{"name": "label", "expression": "CLICK IS NOT NULL"},
			{"name": "not_label", "expression": "CLICK IS NULL"}
		],
		"statsTableFile": "`+storeFile+`",
		"functionName": "mySt"
	}`)
	require.NoError(t, runTrain(jobConfig))

	store, err := statstable.Load(storeFile)
	require.NoError(t, err)
	bundle, found := store.Lookup("host", "pataté.com")
	assert.True(t, found)
	assert.Equal(t, int64(2), bundle.Trials)
	assert.Equal(t, []int64{1, 1}, bundle.Outcomes)

	features, err := os.ReadFile(outputData)
	require.NoError(t, err)
	assert.Equal(t,
		"row,label_host,label_region,not_label_host,not_label_region,trial_host,trial_region\n"+
			"row_000001,0,0,0,0,0,0\n"+
			"row_000002,0,0,0,0,0,0\n"+
			"row_000003,1,0,0,1,1,1\n",
		string(features))
}

func TestRunTrainMissingTrainingData(t *testing.T) {
	jobConfig := writeTempFile(t, "train.json", `{"outcomes": [{"name": "label", "expression": "CLICK IS NOT NULL"}]}`)
	assert.Error(t, runTrain(jobConfig))
}

func TestOpenRowSourceDispatch(t *testing.T) {
	source, err := openRowSource("clicks.csv", "")
	require.NoError(t, err)
	_, ok := source.(*csvRowSource)
	assert.True(t, ok)
}

func TestOpenFeatureSinkDispatch(t *testing.T) {
	sink, name, err := openFeatureSink("")
	require.NoError(t, err)
	assert.Nil(t, sink)
	assert.Empty(t, name)

	sink, name, err = openFeatureSink("features.csv")
	require.NoError(t, err)
	assert.Equal(t, "features.csv", name)
	_, ok := sink.(*csvFeatureSink)
	assert.True(t, ok)
}

func TestRunDeriveEndToEnd(t *testing.T) {
	dir := t.TempDir()
	storeFile := filepath.Join(dir, "clicks.st")
	require.NoError(t, clickStore(t).Save(storeFile))

	jobConfig := writeTempFile(t, "derive.json", `{
		"expression": "counts.label/counts.trial as ctr_$tbl",
		"statsTableFile": "`+storeFile+`",
		"functionName": "getDerived"
	}`)
	require.NoError(t, runDerive(jobConfig, []string{"label_host=5", "trial_host=500"}))

	assert.Error(t, runDerive(jobConfig, []string{"label_host"}), "malformed pair")
	assert.Error(t, runDerive(jobConfig, []string{"label_host=abc"}), "non-numeric count")
}

func TestRunApply(t *testing.T) {
	dir := t.TempDir()
	storeFile := filepath.Join(dir, "clicks.st")
	require.NoError(t, clickStore(t).Save(storeFile))

	require.NoError(t, runApply(storeFile, []string{"host=poire.com"}))
	assert.Error(t, runApply(storeFile, []string{"host"}), "malformed pair")
	assert.Error(t, runApply(filepath.Join(dir, "nope.st"), nil))
}
