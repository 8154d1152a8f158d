package main

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/pivolan/stats_tables/statstable"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const plotTopValues = 30

// DrawColumnCounts renders a PNG bar chart for one column of a finalized
// stats table: the most frequent values by trials, with the first
// outcome's observed rate in the label.
func DrawColumnCounts(store *statstable.Store, column string) ([]byte, error) {
	values := store.Values(column)
	if len(values) == 0 {
		return nil, fmt.Errorf("column %q has no observed values", column)
	}

	// Most frequent first, ties by value for a stable chart.
	sort.SliceStable(values, func(i, j int) bool {
		a, _ := store.Lookup(column, values[i])
		b, _ := store.Lookup(column, values[j])
		if a.Trials != b.Trials {
			return a.Trials > b.Trials
		}
		return values[i] < values[j]
	})
	if len(values) > plotTopValues {
		values = values[:plotTopValues]
	}

	outcomes := store.Outcomes()
	var bars []chart.Value
	for _, value := range values {
		bundle, _ := store.Lookup(column, value)
		label := value
		if len(outcomes) > 0 && bundle.Trials > 0 {
			rate := float64(bundle.Outcomes[0]) / float64(bundle.Trials)
			label = fmt.Sprintf("%s (%s %.2f)", value, outcomes[0], rate)
		}
		bars = append(bars, chart.Value{Value: float64(bundle.Trials), Label: label})
	}

	graph := chart.BarChart{
		Title: fmt.Sprintf("Trials by value: %s", column),
		Background: chart.Style{
			FillColor:   drawing.ColorWhite,
			StrokeColor: drawing.ColorBlue,
		},
		Height:   1024,
		Width:    2028,
		BarWidth: 30,
		Bars:     bars,
		YAxis: chart.YAxis{
			Name: "Trials",
		},
	}
	graph.Background.StrokeWidth = 1
	graph.Background.StrokeColor = drawing.ColorFromHex("efefef")

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("error rendering counts chart: %v", err)
	}
	return buffer.Bytes(), nil
}
