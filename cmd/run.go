package cmd

import (
	"context"
	"fmt"
	"time"

	"powerball/bot"
	"powerball/chart"
	"powerball/config"
	"powerball/database"
	"powerball/scheduler"
	"powerball/server"

	log "github.com/sirupsen/logrus"
)

// Run starts the HTTP API, the scheduler and the optional notifier, then
// blocks until ctx is cancelled
func Run(ctx context.Context, cfg *config.Config, migrate bool) error {
	log.Infof("Starting powerball sync service in %s mode...", cfg.Environment)

	if migrate {
		log.Info("Applying database migrations...")
		if err := database.MigrateUp(cfg.GetDatabaseURL()); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var discordBot *bot.Bot
	if cfg.DiscordToken != "" {
		log.Info("Initializing Discord bot...")
		discordBot, err = bot.New(bot.Config{
			Token:     cfg.DiscordToken,
			ChannelID: cfg.DiscordChannelID,
			GuildID:   cfg.DiscordGuildID,
		}, a.query, a.bus)
		if err != nil {
			return fmt.Errorf("failed to initialize Discord bot: %w", err)
		}
		log.Info("Discord bot initialized successfully")
	}

	sched, err := scheduler.New(a.sync, scheduler.Config{
		Spec:          cfg.UpdateCron,
		Location:      cfg.Location(),
		SyncOnStartup: cfg.SyncOnStartup,
	})
	if err != nil {
		return err
	}
	stopScheduler := sched.Start(ctx)

	srv := server.New(cfg.HTTPAddr, server.Deps{
		Query:   a.query,
		Sync:    a.sync,
		Scraper: a.source,
		Chart:   chart.NewFrequencyChartGenerator(),
	})
	stopServer := srv.Start()

	<-ctx.Done()
	log.Info("Shutting down...")

	stopServer()
	stopScheduler()

	if discordBot != nil {
		if err := discordBot.Close(); err != nil {
			log.Errorf("Error closing Discord bot: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		a.bus.Wait()
		close(done)
	}()

	select {
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded")
	case <-done:
		log.Info("Shutdown completed")
	}
	return nil
}
