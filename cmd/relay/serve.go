package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/netocloud/slack-relay/internal/biz"
	"github.com/netocloud/slack-relay/internal/biz/domain"
	"github.com/netocloud/slack-relay/internal/biz/usecase"
	"github.com/netocloud/slack-relay/internal/conf"
	"github.com/netocloud/slack-relay/internal/data"
	"github.com/netocloud/slack-relay/internal/metrics"
	"github.com/netocloud/slack-relay/internal/server"
	"github.com/netocloud/slack-relay/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *conf.Config, logger *slog.Logger) error {
	metrics.Register()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Initialize clients
	var slackAPI data.SlackAPI
	if cfg.Slack.BotToken != "" {
		slackAPI = data.NewSlackClient(cfg.Slack.BotToken, cfg.Slack.APIURL)
	}
	openaiClient := data.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)

	wh, err := data.NewWarehouse(cfg.ToWarehouseConfig(), logger)
	if err != nil {
		return fmt.Errorf("warehouse: %w", err)
	}
	// Connect eagerly so /health reflects reality; a failure is retried on first use
	if _, err := wh.Handle(ctx); err != nil {
		logger.Warn("warehouse unavailable at startup", slog.Any("error", err))
	}

	// Initialize repository layer
	repos := data.NewRepositories(slackAPI, openaiClient, cfg.ToModelParams(), wh, loc, logger)
	defer repos.Close()

	if repos.Message != nil {
		if id, err := repos.Message.BotUserID(ctx); err != nil {
			logger.Warn("bot user id lookup failed, channel mentions are ignored until it succeeds", slog.Any("error", err))
		} else {
			logger.Info("bot identity resolved", slog.String("bot_user_id", id))
		}
	}

	// Initialize usecase layer
	dispatcher := usecase.NewCompletionDispatcher(repos.Completion, cfg.ToDispatcherConfig(), logger)
	defer dispatcher.Stop()

	uc := &biz.Usecases{
		Verifier:    usecase.NewSignatureVerifier(cfg.Slack.SigningSecret),
		Dedup:       usecase.NewDeduplicator(cfg.ToDedupConfig()),
		Filter:      usecase.NewFilterUsecase(),
		Context:     usecase.NewContextBuilderUsecase(repos.Turn, cfg.ToPromptConfig(), logger),
		Dispatcher:  dispatcher,
		Reaction:    usecase.NewReactionUsecase(repos.Message, domain.DefaultReactionNames, 10*time.Second, logger),
		Persistence: usecase.NewPersistenceUsecase(repos.Turn, usecase.PersistenceConfig{Location: loc}, logger),
	}
	uc.Relay = usecase.NewRelayUsecase(uc.Context, uc.Dispatcher, uc.Reaction, uc.Persistence, repos.Message, logger)

	// Initialize service layer
	events := service.NewEventService(uc.Verifier, uc.Dedup, uc.Filter, uc.Relay, repos.Message, logger)
	sweeper := service.NewDedupSweeper(uc.Dedup, time.Minute, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := server.NewServer(events, server.Dependencies{
		Warehouse:  repos.Turn,
		Completion: repos.Completion,
		Messaging:  repos.Message,
	}, cfg.Server.Port, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", slog.Any("error", err))
		return err
	}
	return <-errCh
}
