// Copyright 2026 Chatwork Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/application"
	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/logger"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/persistence"
)

const (
	appName    = "chatwork-gateway"
	appVersion = "0.1.0"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   appName,
		Short: "Chatwork gateway: chat platform front door for the agent backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search <chat-id> <query>",
		Short: "Search a chat's conversation history",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(args[0], strings.Join(args[1:], " "))
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", appName, appVersion)
		},
	}

	root.AddCommand(serveCmd, searchCmd, versionCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting gateway",
		zap.String("name", appName),
		zap.String("version", appVersion),
	)

	app, err := application.NewApp(cfg, log, appVersion)
	if err != nil {
		log.Fatal("Failed to assemble gateway", zap.Error(err))
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatal("Failed to start gateway", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	app.Stop(shutdownCtx)
	return nil
}

// runSearch queries the store directly, no transports.
func runSearch(chatID, query string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := persistence.NewDBConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	store := persistence.NewGormConversationStore(db, cfg.Search)

	results, err := store.Search(context.Background(), chatID, query,
		cfg.Search.MaxAgeDays, cfg.Search.MaxResults)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	printResults(results)
	return nil
}

func printResults(results []repository.SearchResult) {
	for _, r := range results {
		fmt.Printf("[%s] %-12s score=%.2f (rel=%.2f rec=%.2f)\n  %s\n",
			r.Message.Timestamp().Format("2006-01-02 15:04"),
			r.Message.Sender().DisplayName(),
			r.Score, r.Relevance, r.Recency,
			r.Message.Body(),
		)
	}
}
