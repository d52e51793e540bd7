package main

import (
	"log"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/i474232898/wearable-weather-sync/internal/config"
)

// Globals are bound into every command's Run method.
type Globals struct {
	Config *config.AppConfig
	Log    *zap.SugaredLogger
}

var CLI struct {
	Watch   WatchCmd   `cmd:"" default:"1" help:"Run the watch face: receive weather over the data layer and render it."`
	Publish PublishCmd `cmd:"" help:"Act as the producer device and publish a weather update."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("weather-face"),
		kong.Description("Weather watch face with cross-device state sync."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	err = ctx.Run(&Globals{Config: cfg, Log: logger})
	ctx.FatalIfErrorf(err)
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
