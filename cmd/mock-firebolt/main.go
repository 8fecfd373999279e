// Command mock-firebolt runs the mock Firebolt event server: a websocket
// endpoint Firebolt apps connect to for mocked method responses and
// subscribed events.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Resolve MF_* and NATS_URL settings from a .env file when present.
	_ "github.com/joho/godotenv/autoload"

	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"

	mockfirebolt "github.com/Nandana-NNR/mock-firebolt"
	"github.com/Nandana-NNR/mock-firebolt/config"
	"github.com/Nandana-NNR/mock-firebolt/interactions"
	"github.com/Nandana-NNR/mock-firebolt/pkg/slogx"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelInfo}),
	))
}

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	verbose := flag.Bool("verbose", false, "dump the resolved configuration at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load configuration", slogx.Error(err))
		os.Exit(1)
	}

	fmt.Println(color.CyanString("mock-firebolt"), "serving websocket clients on", color.GreenString(cfg.Addr()))
	if *verbose {
		pp.Println(cfg)
	}

	srv, err := mockfirebolt.New(mockfirebolt.WithConfig(cfg))
	if err != nil {
		slog.Error("assemble server", slogx.Error(err))
		os.Exit(1)
	}

	if cfg.NATS.URL != "" {
		nc, err := interactions.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to NATS", slogx.Error(err))
			os.Exit(1)
		}
		defer nc.Drain() //nolint:errcheck
		srv.Interactions().AddSink(interactions.NewNATSSink(nc, cfg.NATS.Subject))
		slog.Info("forwarding interaction log to NATS", slog.String("subject", cfg.NATS.Subject))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("server failed", slogx.Error(err))
		os.Exit(1)
	}
}
