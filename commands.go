package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	uuid "github.com/satori/go.uuid"

	"github.com/pivolan/stats_tables/config"
	"github.com/pivolan/stats_tables/domain/models"
	"github.com/pivolan/stats_tables/registry"
	"github.com/pivolan/stats_tables/statstable"
)

// tablePrefix marks a data identifier as a ClickHouse table instead of a
// local CSV path, e.g. "table:default.clicks".
const tablePrefix = "table:"

// OutcomeSpec is one (name, boolean expression) pair in a training job.
type OutcomeSpec struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// TrainJobConfig mirrors the training job surface: where rows come from,
// where features go, which columns are outcome-bearing, how rows are
// ordered, where the stats table lands and under what name the inference
// function is registered.
type TrainJobConfig struct {
	TrainingData   string        `json:"trainingData"`
	OutputData     string        `json:"outputData"`
	IDColumn       string        `json:"idColumn"`
	Excluding      []string      `json:"excluding"`
	Outcomes       []OutcomeSpec `json:"outcomes"`
	OrderBy        string        `json:"orderBy"`
	StatsTableFile string        `json:"statsTableFile"`
	FunctionName   string        `json:"functionName"`
}

// DeriveJobConfig mirrors the derived-columns generator job surface.
type DeriveJobConfig struct {
	Expression     string `json:"expression"`
	StatsTableFile string `json:"statsTableFile"`
	FunctionName   string `json:"functionName"`
}

// loadJobConfig decodes a JSON job file strictly: unknown fields are a
// configuration error, not a silent no-op.
func loadJobConfig(path string, into interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open job config %s: %w", path, err)
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("parse job config %s: %w", path, err)
	}
	return nil
}

type closableSink interface {
	statstable.FeatureSink
	Close() error
}

func runTrain(configPath string) error {
	cfg := TrainJobConfig{}
	if err := loadJobConfig(configPath, &cfg); err != nil {
		return err
	}
	if cfg.TrainingData == "" {
		return fmt.Errorf("job config %s: trainingData is required", configPath)
	}
	if cfg.OrderBy == "" {
		cfg.OrderBy = statstable.OrderByRowID
	}

	outcomes := make([]statstable.Outcome, 0, len(cfg.Outcomes))
	for _, o := range cfg.Outcomes {
		outcomes = append(outcomes, statstable.Outcome{Name: o.Name, Expression: o.Expression})
	}
	trainer, err := statstable.NewTrainer(statstable.TrainerConfig{
		ExcludeColumns: cfg.Excluding,
		Outcomes:       outcomes,
		OrderBy:        cfg.OrderBy,
		StoreFile:      cfg.StatsTableFile,
		FunctionName:   cfg.FunctionName,
	})
	if err != nil {
		return err
	}

	source, err := openRowSource(cfg.TrainingData, cfg.IDColumn)
	if err != nil {
		return err
	}
	sink, sinkName, err := openFeatureSink(cfg.OutputData)
	if err != nil {
		return err
	}

	store, err := trainer.Run(source, sink)
	if err != nil {
		return err
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			return err
		}
		log.Printf("feature dataset written to %s", sinkName)
	}
	if cfg.StatsTableFile != "" {
		log.Printf("stats table saved to %s", cfg.StatsTableFile)
	}

	if cfg.FunctionName != "" {
		reg := registry.New()
		if err := reg.Register(registry.NewInferenceFunction(cfg.FunctionName, store)); err != nil {
			return err
		}
		log.Printf("inference function registered as %s", cfg.FunctionName)
	}

	fmt.Println(GenerateStoreTables(store))
	return nil
}

func openRowSource(id, idColumn string) (statstable.RowSource, error) {
	if strings.HasPrefix(id, tablePrefix) {
		db, err := openClickhouse(config.GetConfig().DbDsn)
		if err != nil {
			return nil, err
		}
		return &sqlRowSource{db: db, table: strings.TrimPrefix(id, tablePrefix), idColumn: idColumn}, nil
	}
	return &csvRowSource{path: id, idColumn: idColumn}, nil
}

func openFeatureSink(id string) (closableSink, string, error) {
	if id == "" {
		return nil, "", nil
	}
	if strings.HasPrefix(id, tablePrefix) {
		table := strings.TrimPrefix(id, tablePrefix)
		if table == "" {
			uid := uuid.NewV4()
			table = "features_" + strings.Split(uid.String(), "-")[0]
		}
		db, err := openClickhouse(config.GetConfig().DbDsn)
		if err != nil {
			return nil, "", err
		}
		return &sqlFeatureSink{db: db, table: table}, tablePrefix + table, nil
	}
	return &csvFeatureSink{path: id}, id, nil
}

func runApply(storePath string, pairs []string) error {
	store, err := statstable.Load(storePath)
	if err != nil {
		return err
	}
	keys := map[string]string{}
	for _, pair := range pairs {
		column, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("expected column=value, got %q", pair)
		}
		keys[column] = value
	}
	applier := statstable.NewApplier(store)
	fmt.Println(GenerateCountsTable(applier.ApplyOrdered(keys)))
	return nil
}

func runDerive(configPath string, pairs []string) error {
	cfg := DeriveJobConfig{}
	if err := loadJobConfig(configPath, &cfg); err != nil {
		return err
	}
	if cfg.StatsTableFile == "" {
		return fmt.Errorf("job config %s: statsTableFile is required to resolve counter names", configPath)
	}
	store, err := statstable.Load(cfg.StatsTableFile)
	if err != nil {
		return err
	}
	name := cfg.FunctionName
	if name == "" {
		name = "derived_" + strings.Split(uuid.NewV4().String(), "-")[0]
	}
	fn, err := registry.NewDerivedFunction(name, cfg.Expression, store)
	if err != nil {
		return err
	}
	reg := registry.New()
	if err := reg.Register(fn); err != nil {
		return err
	}
	log.Printf("derived function registered as %s", name)

	counts := models.Counts{}
	for _, pair := range pairs {
		counter, text, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("expected counter=number, got %q", pair)
		}
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return fmt.Errorf("counter %s: %w", counter, err)
		}
		counts[counter] = models.Count{Value: value, Tag: models.Observed}
	}

	out, err := fn.Apply(models.Record{"counts": counts})
	if err != nil {
		return err
	}
	names := make([]string, 0, len(out))
	values := map[string]float64{}
	for name, value := range out {
		names = append(names, name)
		values[name] = value.(float64)
	}
	sort.Strings(names)
	fmt.Println(GenerateDerivedTable(names, values))
	return nil
}

func runInspect(storePath string) error {
	store, err := statstable.Load(storePath)
	if err != nil {
		return err
	}
	fmt.Println(GenerateStoreTables(store))
	return nil
}

func runPlot(storePath, column, outPath string) error {
	store, err := statstable.Load(storePath)
	if err != nil {
		return err
	}
	png, err := DrawColumnCounts(store, column)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, png, 0644); err != nil {
		return fmt.Errorf("write chart %s: %w", outPath, err)
	}
	log.Printf("chart written to %s", outPath)
	return nil
}
