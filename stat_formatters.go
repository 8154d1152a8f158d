package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pivolan/stats_tables/statstable"
)

// GenerateStoreTables renders one table per column of a stats table:
// observed values down the side, trials and outcome counters across.
func GenerateStoreTables(store *statstable.Store) string {
	blocks := make([]string, 0, len(store.Columns()))
	for _, column := range store.Columns() {
		t := table.NewWriter()
		t.SetTitle(column)

		header := table.Row{"Value"}
		for _, counter := range store.CounterNames() {
			header = append(header, counter)
		}
		t.AppendHeader(header)

		for _, value := range store.Values(column) {
			bundle, _ := store.Lookup(column, value)
			row := table.Row{value, bundle.Trials}
			for _, count := range bundle.Outcomes {
				row = append(row, count)
			}
			t.AppendRows([]table.Row{row})
		}

		t.SetStyle(table.StyleDefault)
		blocks = append(blocks, t.Render())
	}
	return strings.Join(blocks, "\n")
}

// GenerateCountsTable renders an inference result: one row per counter
// with its value and provenance tag.
func GenerateCountsTable(counts []statstable.AppliedCount) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Counter", "Count", "Tag"})
	for _, count := range counts {
		t.AppendRows([]table.Row{{count.Name, int64(count.Value), string(count.Tag)}})
	}
	t.SetStyle(table.StyleDefault)
	return t.Render()
}

// GenerateDerivedTable renders derived columns as name/value pairs.
func GenerateDerivedTable(names []string, values map[string]float64) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Column", "Value"})
	for _, name := range names {
		if value, ok := values[name]; ok {
			t.AppendRows([]table.Row{{name, fmt.Sprintf("%.6g", value)}})
		}
	}
	t.SetStyle(table.StyleDefault)
	return t.Render()
}
