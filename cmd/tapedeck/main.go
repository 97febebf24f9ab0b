package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/tapedeck"
	"github.com/viant/tapedeck/internal/logging"
	model "github.com/viant/tapedeck/model/session"
)

const usage = `usage: tapedeck <command> [flags]

commands:
  record <url>   record url as session 0 and serve the control surface until interrupted
  serve          serve the control surface only
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	flags := flag.NewFlagSet(command, flag.ExitOnError)
	configURL := flags.String("config", "", "Config file location (any afs URL)")
	addr := flags.String("addr", "", "Override server address")
	id := flags.Uint("id", 0, "Session id used by record")
	_ = flags.Parse(os.Args[2:])

	var target string
	switch command {
	case "record":
		if flags.NArg() != 1 {
			log.Fatalf("record expects exactly one url, got %v", flags.Args())
		}
		target = flags.Arg(0)
	case "serve":
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(*configURL, *addr, uint32(*id), target); err != nil {
		log.Fatalf("tapedeck: %v", err)
	}
}

func run(configURL, addr string, id uint32, target string) error {
	cfg := tapedeck.DefaultConfig()
	if configURL != "" {
		var err error
		if cfg, err = tapedeck.LoadConfig(context.Background(), url.Normalize(configURL, file.Scheme)); err != nil {
			return err
		}
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	srv, err := tapedeck.New(cfg, tapedeck.WithLogger(logger))
	if err != nil {
		return err
	}

	// sessions outlive the signal context so that they are stopped with a drain
	if err = srv.Start(context.Background()); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if target != "" {
		if err = srv.Record(ctx, id, target); err != nil {
			_ = srv.Shutdown(context.Background())
			return err
		}
		logger.Info("recording", "session_id", id, "url", target, "location", srv.SessionConfig(id, target).Sink.FilePath)
	}
	serveErr := srv.Serve(ctx)
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Session.DrainTimeout+time.Minute)
	defer cancel()
	if target != "" {
		if err = srv.Stop(shutdownCtx, id); err != nil && !errors.Is(err, model.ErrNotFound) {
			logger.Error("failed to stop recording", "session_id", id, "error", err)
		}
	}
	if err = srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return serveErr
}
