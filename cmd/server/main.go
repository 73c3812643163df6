package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TypeTerrors/rsum/conf"
	"github.com/TypeTerrors/rsum/internal/scan"
	"github.com/TypeTerrors/rsum/internal/servers"
	"github.com/TypeTerrors/rsum/internal/store"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Parse command-line flags and initialize configurations
	cfg := parseFlags()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.LogLevel, err)
	}
	log.SetLevel(level)
	log.SetReportTimestamp(true)

	// Set up signal catching for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("rsum server failed: %v", err)
	}
	log.Info("Application shut down gracefully.")
}

func parseFlags() conf.Config {
	cfg := conf.Default()

	flag.StringVar(&cfg.SyncFolder, "sync-folder", "", "Folder whose files are hashed (required)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "BadgerDB directory")
	flag.StringVar(&cfg.Port, "port", cfg.Port, "Port number for the gRPC server")
	flag.IntVar(&cfg.BlockSize, "block-size", cfg.BlockSize, "zsync block size in bytes")
	flag.Int64Var(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "Piece size in bytes for chunked hashes")
	flag.BoolVar(&cfg.ZsyncHashes, "zsync-hashes", cfg.ZsyncHashes, "Compute per-block zsync hashes")
	flag.BoolVar(&cfg.ChunkedHashes, "chunked-hashes", cfg.ChunkedHashes, "Compute per-piece chunked hashes")
	flag.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "Rescan interval")
	flag.BoolVar(&cfg.Announce, "mdns", cfg.Announce, "Announce the service over mDNS")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	// Output the configurations
	fmt.Printf("Sync Folder  : %s\n", cfg.SyncFolder)
	fmt.Printf("Block Size   : %d bytes\n", cfg.BlockSize)
	fmt.Printf("Chunk Size   : %d bytes\n", cfg.ChunkSize)
	fmt.Printf("Sync Interval: %v\n", cfg.SyncInterval)
	fmt.Printf("Port Number  : %s\n", cfg.Port)

	return cfg
}

func run(ctx context.Context, cfg conf.Config) error {
	// Initialize BadgerDB
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Load(); err != nil {
		return fmt.Errorf("failed to load stored hashes: %w", err)
	}

	scanner := scan.NewScanner(cfg, db)

	// Pre-scan so the service starts with current hashes
	start := time.Now()
	if err := scanner.ScanFolder(ctx); err != nil {
		return fmt.Errorf("failed to perform pre-scan: %w", err)
	}
	log.Infof("Pre-scan finished in %v, %d files", time.Since(start).Round(time.Millisecond), len(db.List()))

	listener, err := servers.Listen(cfg.Port)
	if err != nil {
		return err
	}
	grpcServer := servers.NewGrpc(db, listener)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scanner.Run(ctx) })
	g.Go(func() error { return scan.NewWatcher(scanner).Run(ctx) })
	g.Go(grpcServer.Serve)
	g.Go(func() error {
		<-ctx.Done()
		grpcServer.Stop()
		return nil
	})
	if cfg.Announce {
		g.Go(func() error {
			// mDNS failures are logged, not fatal
			if err := servers.Announce(ctx, cfg.Port); err != nil {
				log.Errorf("mDNS announcement disabled: %v", err)
			}
			return nil
		})
	}

	return g.Wait()
}
