package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/reportsync/internal/api"
	"github.com/reportsync/internal/chat"
	"github.com/reportsync/internal/config"
	"github.com/reportsync/internal/intake"
	"github.com/reportsync/internal/logging"
	"github.com/reportsync/internal/reconcile"
	"github.com/reportsync/internal/store"
	"github.com/reportsync/internal/tracker"
	"github.com/reportsync/internal/workflow"
)

// ServeCommand returns the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the bot, the reconciliation poller, and the ops API",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	trackerClient := tracker.NewGitHubClient(cfg.Tracker.BaseURL, cfg.Tracker.Token)

	session, err := chat.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	discord := chat.NewDiscord(session, cfg.Discord.GuildID)

	wfConfig := workflow.Config{
		Owner:   cfg.Tracker.Owner,
		Repos:   cfg.Tracker.Repos,
		GuildID: cfg.Discord.GuildID,
	}
	issues := workflow.NewIssueWorkflow(st, trackerClient, discord, wfConfig)
	comments := workflow.NewCommentWorkflow(st, trackerClient, discord, wfConfig)
	router := workflow.NewRouter(issues, comments)
	reportIntake := intake.New(discord, cfg.ReportChannels())

	discord.OnMessage(reportIntake.HandleMessage)
	discord.OnInteraction(router.HandleInteraction)

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	defer session.Close()

	if err := discord.RegisterCommands(); err != nil {
		return err
	}

	reconciler := reconcile.New(st, trackerClient, discord)
	riverClient, err := reconcile.NewClient(pool, reconciler, cfg.PollInterval())
	if err != nil {
		return err
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reconciliation queue: %w", err)
	}

	apiServer := api.NewServer(cfg.API.Port, st)
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error().Err(err).Msg("API server stopped")
		}
	}()

	log.Info().
		Int("port", cfg.API.Port).
		Dur("poll_interval", cfg.PollInterval()).
		Strs("repos", cfg.Tracker.Repos).
		Msg("ReportSync running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := riverClient.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to stop reconciliation queue cleanly")
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to stop API server cleanly")
	}

	return nil
}
