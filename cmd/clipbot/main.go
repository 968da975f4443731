package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"clipbot/internal/bot"
	"clipbot/internal/broadcast"
	"clipbot/internal/config"
	"clipbot/internal/fetch"
	"clipbot/internal/logging"
	"clipbot/internal/ratelimit"
	"clipbot/internal/store"
	"clipbot/internal/transport/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	// Missing .env is fine; production sets real environment variables.
	_ = godotenv.Load()

	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	tuning, err := config.LoadTuning(env.TuningPath)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	log, closeLog, err := logging.New(logging.Config{Level: env.LogLevel, Console: true, File: env.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(env.DBPath, log.With().Str("component", "store").Logger())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	tg, err := telegram.New(telegram.Config{Token: env.Token, Channel: env.Channel}, log.With().Str("component", "telegram").Logger())
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	limiter := ratelimit.New(tuning.Cooldown.Std())

	executor := fetch.New(
		fetch.Config{
			Workers:        tuning.Fetch.Workers,
			QueueSize:      tuning.Fetch.QueueSize,
			ScratchDir:     env.ScratchDir,
			PurgeThreshold: tuning.Fetch.PurgeThreshold,
		},
		fetchPolicy(tuning),
		&fetch.YTDLP{Log: log.With().Str("component", "ytdlp").Logger()},
		log.With().Str("component", "fetch").Logger(),
	)
	if err := executor.Start(ctx); err != nil {
		return fmt.Errorf("start fetch executor: %w", err)
	}
	defer executor.Stop()

	engine := broadcast.New(broadcast.Config{
		Workers:    tuning.Broadcast.Workers,
		RatePerSec: tuning.Broadcast.RatePerSec,
	}, tg, log.With().Str("component", "broadcast").Logger())

	d := bot.New(bot.Config{
		AdminID:     env.AdminID,
		ListenAddr:  env.ListenAddr,
		WebhookBase: env.WebhookBase,
	}, tg, tg, st, limiter, executor, engine, log.With().Str("component", "bot").Logger())
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}

	// Janitor for artifacts leaked by relays that died before cleanup.
	janitor := cron.New()
	sweepAge := tuning.Fetch.SweepMaxAge.Std()
	if _, err := janitor.AddFunc(fmt.Sprintf("@every %s", tuning.Fetch.SweepEvery.Std()), func() {
		if n := executor.SweepStale(sweepAge); n > 0 {
			log.Info().Int("removed", n).Msg("stale artifacts swept")
		}
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	janitor.Start()
	defer janitor.Stop()

	// Hot reload covers pacing and policy knobs. Pool sizes and the listen
	// address stay fixed until restart.
	if err := config.Watch(ctx, env.TuningPath, log.With().Str("component", "config").Logger(), func(t config.Tuning) {
		limiter.SetCooldown(t.Cooldown.Std())
		executor.SetPolicy(fetchPolicy(t))
		engine.Apply(broadcast.Config{Workers: t.Broadcast.Workers, RatePerSec: t.Broadcast.RatePerSec})
	}); err != nil {
		return fmt.Errorf("watch tuning: %w", err)
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info().Msg("clipbot up")

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := d.Stop(stopCtx); err != nil {
		log.Warn().Err(err).Msg("dispatcher shutdown incomplete")
	}
	log.Info().Msg("clipbot stopped")
	return nil
}

func fetchPolicy(t config.Tuning) fetch.Policy {
	return fetch.Policy{
		MaxHeight:      t.Fetch.MaxHeight,
		MaxDuration:    t.Fetch.MaxDuration.Std(),
		RetryMax:       t.Fetch.RetryMax,
		AttemptTimeout: t.Fetch.AttemptTimeout.Std(),
		LargeFileBytes: t.Fetch.LargeFileMB << 20,
	}
}
