package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"clockroles/config"
	"clockroles/database"
	"clockroles/gateway"
	"clockroles/handlers"
	"clockroles/scheduler"
	"clockroles/stats"

	"github.com/bwmarrin/discordgo"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the level is not known yet
		newLogger("info").Fatal("load config", zap.Error(err))
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	discord, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		logger.Fatal("create discord session", zap.Error(err))
	}
	discord.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	// The presence needs the database to count roles and the database
	// notifies the presence on change, so the counter is set afterwards.
	presence := stats.NewPresence(discord, nil, logger)

	db, err := database.New(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, presence.NotifyUpdate, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	presence.SetCounter(db)

	clk := clockwork.NewRealClock()
	roles := gateway.New(discord, cfg.CallTimeout)
	handler := handlers.NewHandler(db, roles, clk, logger)

	discord.AddHandler(handlers.Ready(presence.NotifyUpdate, logger))
	discord.AddHandler(handlers.MessageCreate(handler, cfg.CommandTimeout, logger))

	if err := discord.Open(); err != nil {
		logger.Fatal("open discord connection", zap.Error(err))
	}
	defer discord.Close()

	sched := scheduler.New(db, roles, clk, scheduler.Options{
		Interval:    cfg.SyncInterval,
		CallTimeout: cfg.CallTimeout,
		Concurrency: cfg.SyncWorkers,
	}, logger)
	sched.Start(ctx)
	defer sched.Stop()

	logger.Info("bot is now running, press CTRL-C to exit")
	<-ctx.Done()
	logger.Info("shutting down")
}

func newLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, _ := config.Build()
	return logger
}
