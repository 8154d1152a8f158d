package main

import (
	"fmt"
	"log"
	"os"
)

const usage = `usage:
  stats_tables train <job.json>                 run a training pass
  stats_tables apply <file.st> col=value ...    apply the inference lookup
  stats_tables derive <job.json> ctr=num ...    evaluate derived columns
  stats_tables inspect <file.st>                print the stats table
  stats_tables plot <file.st> <column> <out.png>

train job config (JSON):
  {"trainingData": "clicks.csv", "outputData": "features.csv",
   "excluding": ["CLICK"], "orderBy": "_rowid",
   "outcomes": [{"name": "label", "expression": "CLICK IS NOT NULL"}],
   "statsTableFile": "clicks.st", "functionName": "mySt"}

derive job config (JSON):
  {"expression": "counts.label/counts.trial as ctr_$tbl",
   "statsTableFile": "clicks.st", "functionName": "getDerived"}

trainingData/outputData may be "table:<name>" to use ClickHouse (DB_DSN).`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}

	var err error
	switch command := os.Args[1]; command {
	case "train":
		if len(os.Args) != 3 {
			err = fmt.Errorf("train takes exactly one job config")
		} else {
			err = runTrain(os.Args[2])
		}
	case "apply":
		if len(os.Args) < 3 {
			err = fmt.Errorf("apply needs a stats table file")
		} else {
			err = runApply(os.Args[2], os.Args[3:])
		}
	case "derive":
		if len(os.Args) < 3 {
			err = fmt.Errorf("derive needs a job config")
		} else {
			err = runDerive(os.Args[2], os.Args[3:])
		}
	case "inspect":
		if len(os.Args) != 3 {
			err = fmt.Errorf("inspect takes exactly one stats table file")
		} else {
			err = runInspect(os.Args[2])
		}
	case "plot":
		if len(os.Args) != 5 {
			err = fmt.Errorf("plot takes a stats table file, a column and an output path")
		} else {
			err = runPlot(os.Args[2], os.Args[3], os.Args[4])
		}
	default:
		fmt.Println(usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalln(err)
	}
}
