package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/proposal-assistant/internal/bot"
	"github.com/xaenox/proposal-assistant/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (/api/chat, /api/upload)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ledger, err := openLedger(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer ledger.Close()

		client := newOpenAIClient(cfg)
		p, err := buildPipeline(cfg, client, logger)
		if err != nil {
			return err
		}

		var ing server.Ingestor
		if i := buildIngestor(cfg, client, ledger, logger); i != nil {
			ing = i
		}

		logger.Info("Starting proposal assistant API",
			zap.String("port", cfg.Server.Port),
			zap.Bool("retrieval", cfg.Retrieval.Enabled()))
		return server.New(cfg, p, ing, ledger, logger).Run(ctx)
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireTelegram(); err != nil {
			return err
		}
		ctx := cmd.Context()

		ledger, err := openLedger(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer ledger.Close()

		client := newOpenAIClient(cfg)
		p, err := buildPipeline(cfg, client, logger)
		if err != nil {
			return err
		}

		var ing bot.Ingestor
		if i := buildIngestor(cfg, client, ledger, logger); i != nil {
			ing = i
		}

		b, err := bot.New(cfg.Telegram.Token, p, ing, ledger, bot.Options{
			MaxFileBytes: cfg.Ingestion.MaxFileBytes,
		}, logger)
		if err != nil {
			return err
		}

		logger.Info("Starting Telegram bot")
		return b.Start(ctx)
	},
}
