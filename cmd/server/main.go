package main

import (
	"context"
	"flag"
	"log"

	"nutriledger/internal/agent"
	"nutriledger/internal/config"
	"nutriledger/internal/ledger"
	"nutriledger/internal/server"
	"nutriledger/internal/storage"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize the per-user record store and the ledger on top of it
	store := storage.New(cfg.Storage.DataDir)
	ledgerService := ledger.New(store, cfg.Storage.HistoryMaxDays)

	// Initialize the LLM collaborators
	completer := agent.NewCompleter(cfg.LLM)
	if err := completer.Load(context.Background()); err != nil {
		log.Fatal("Failed to load model:", err)
	}
	agents := agent.New(completer)

	// Initialize and start server
	srv := server.New(store, ledgerService, agents, cfg.Server.Debug)
	if err := srv.Start(cfg.Server.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
