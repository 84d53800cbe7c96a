package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatelly/internal/commands"
	"chatelly/internal/config"
	"chatelly/internal/http"
	"chatelly/internal/session"
	"chatelly/internal/storage"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("chatelly", flag.ContinueOnError)
	widgetKey := flags.String("widget-key", "", "Widget to attach to (overrides WIDGET_KEY)")
	export := flags.String("export", "", "Session ID to export from the archive as an HTML transcript")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*export != "", *widgetKey)
	if err != nil {
		return err
	}

	if *export != "" {
		return commands.ExportTranscript(stdout, *export, cfg)
	}

	bbStorage, err := storage.NewBboltStorage(cfg.ArchiveDB)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	store := session.NewStore(cfg.Session(), session.WithArchive(bbStorage))
	defer store.Disconnect()

	if err := store.Connect(ctx, cfg.WidgetKey); err != nil {
		return err
	}

	consoleServer := http.NewConsoleServer(store, bbStorage, cfg.ConsoleAddr)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := consoleServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down console...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := consoleServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Console shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
