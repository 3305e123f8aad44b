package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"demand_forecasting/pkg/api/assistant"
	forecastapi "demand_forecasting/pkg/api/forecast"
	"demand_forecasting/pkg/core/agent"
	"demand_forecasting/pkg/core/compose"
	"demand_forecasting/pkg/core/forecast"
	"demand_forecasting/pkg/core/intent"
	"demand_forecasting/pkg/core/pipeline"
	"demand_forecasting/pkg/core/prediction"
	dbstore "demand_forecasting/pkg/core/store"
	"demand_forecasting/pkg/core/trends"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

func main() {
	// Load environment variables
	godotenv.Load()

	fmt.Println("============================================================")
	fmt.Println("DEMAND FORECASTING ASSISTANT")
	fmt.Println("============================================================")

	// Agent/provider configuration
	var agentCfg agent.Config
	configData, err := os.ReadFile(envOr("MODELS_CONFIG", "config/models.yaml"))
	if err != nil {
		fmt.Printf("[WARNING] no models config: %v, defaulting to openai\n", err)
		agentCfg.ActiveProvider = "openai"
	} else if err := yaml.Unmarshal(configData, &agentCfg); err != nil {
		fmt.Printf("[WARNING] bad models config: %v, defaulting to openai\n", err)
		agentCfg.ActiveProvider = "openai"
	}
	agentMgr := agent.NewManager(agentCfg)

	// Resolution core. DATABASE_URL selects the Postgres backend; the CSV
	// file remains the default.
	var store prediction.Store
	if os.Getenv("DATABASE_URL") != "" {
		ctx := context.Background()
		if err := dbstore.InitDB(ctx); err != nil {
			fmt.Printf("[FATAL] database init failed: %v\n", err)
			os.Exit(1)
		}
		repo, err := dbstore.NewPredictionRepo(ctx)
		if err != nil {
			fmt.Printf("[FATAL] %v\n", err)
			os.Exit(1)
		}
		store = repo
	} else {
		store = prediction.NewCSVStore(envOr("PREDICTIONS_CSV", "data/predictions.csv"))
	}
	model := forecast.LoadModel(envOr("MODEL_PATH", "data/model.json"))
	engine := prediction.NewEngine(store, model)
	engine.SetTimeout(10 * time.Second)

	// Collaborators
	parser := intent.NewParser(agentMgr)
	composer := compose.NewComposer(agentMgr)

	var analyzer *trends.Analyzer
	if envOr("ENABLE_TRENDS", "true") == "true" {
		analyzer = trends.NewAnalyzer(context.Background())
	}

	orch := pipeline.New(parser, store, engine, analyzer, composer)

	// Routes
	assistantHandler := assistant.NewHandler(orch)
	http.HandleFunc("/api/chat", assistantHandler.HandleChat)

	forecastHandler := forecastapi.NewHandler(orch, store, model)
	http.HandleFunc("/api/forecast", forecastHandler.HandleForecast)
	http.HandleFunc("/api/health", forecastHandler.HandleHealth)

	addr := ":" + envOr("PORT", "8080")
	fmt.Printf("API server starting on %s...\n", addr)
	fmt.Println("  - POST /api/chat      (free-form assistant)")
	fmt.Println("  - POST /api/forecast  (structured resolution)")
	fmt.Println("  - GET  /api/health")

	if err := http.ListenAndServe(addr, nil); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
