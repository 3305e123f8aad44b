// Command resolve runs the resolution core offline: it reads a structured
// request from a JSON file and resolves every combination against the store
// and model, without any LLM involvement. Useful for batch runs and for
// checking store/model health from the shell.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"demand_forecasting/pkg/core/combination"
	"demand_forecasting/pkg/core/compose"
	"demand_forecasting/pkg/core/forecast"
	"demand_forecasting/pkg/core/pipeline"
	"demand_forecasting/pkg/core/prediction"

	"github.com/joho/godotenv"
)

type request struct {
	Products  []string           `json:"products"`
	Customers []string           `json:"customers"`
	Period    combination.Period `json:"period"`
}

func main() {
	godotenv.Load()

	requestPath := flag.String("request", "", "path to a JSON request file")
	storePath := flag.String("store", "data/predictions.csv", "path to the predictions CSV")
	modelPath := flag.String("model", "data/model.json", "path to the model artifact")
	timeout := flag.Duration("timeout", 10*time.Second, "per-combination generation timeout")
	asJSON := flag.Bool("json", false, "emit the full outcome as JSON")
	flag.Parse()

	if *requestPath == "" {
		fmt.Println("usage: resolve -request request.json [-store predictions.csv] [-model model.json]")
		os.Exit(2)
	}

	data, err := os.ReadFile(*requestPath)
	if err != nil {
		fmt.Printf("[FATAL] cannot read request: %v\n", err)
		os.Exit(1)
	}
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		fmt.Printf("[FATAL] malformed request: %v\n", err)
		os.Exit(1)
	}

	store := prediction.NewCSVStore(*storePath)
	model := forecast.LoadModel(*modelPath)
	engine := prediction.NewEngine(store, model)
	engine.SetTimeout(*timeout)

	orch := pipeline.New(nil, store, engine, nil, nil)

	outcome, err := orch.RunForecast(context.Background(), req.Products, req.Customers, req.Period)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(outcome)
	} else {
		fmt.Println()
		fmt.Println(compose.PlainSummary(outcome.Results))
		fmt.Printf("\nresolved %d combination(s): %d from store, %d generated, %d failed\n",
			outcome.Counts.Total, outcome.Counts.FromStore, outcome.Counts.Generated, outcome.Counts.Failed)
	}

	if outcome.Counts.Failed > 0 {
		os.Exit(1)
	}
}
