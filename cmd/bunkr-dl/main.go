package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/handiism/bunkr-downloader/internal/config"
	"github.com/handiism/bunkr-downloader/internal/download"
	"github.com/handiism/bunkr-downloader/internal/hoststatus"
	"github.com/handiism/bunkr-downloader/internal/ledger"
	"github.com/handiism/bunkr-downloader/internal/model"
	"github.com/handiism/bunkr-downloader/internal/resolve"
	"github.com/handiism/bunkr-downloader/internal/stats"
)

func main() {
	// Command line flags
	var (
		manifestFlag = flag.String("manifest", "", "Path to the album manifest (JSON)")
		outputFlag   = flag.String("output", "", "Download directory (overrides config)")
		configFlag   = flag.String("config", "", "Path to config file")
		workersFlag  = flag.Int("workers", 0, "Concurrent downloads (overrides config)")
		retriesFlag  = flag.Int("retries", 0, "Attempts per file (overrides config)")
		verboseFlag  = flag.Bool("verbose", false, "Show verbose output")
		dryRunFlag   = flag.Bool("dry-run", false, "Parse the manifest without downloading")
	)

	flag.Parse()

	manifest := *manifestFlag
	if manifest == "" && flag.NArg() > 0 {
		manifest = flag.Arg(0)
	}
	if manifest == "" {
		fmt.Println("Bunkr Downloader - bulk-download album files")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  bunkr-dl -manifest <path> [options]")
		fmt.Println("  bunkr-dl <path> [options]")
		fmt.Println()
		fmt.Println("For interactive mode, use: bunkr-tui")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load config
	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// Apply flags
	if *outputFlag != "" {
		settings.DownloadRoot = *outputFlag
	}
	if *workersFlag > 0 {
		settings.MaxWorkers = *workersFlag
	}
	if *retriesFlag > 0 {
		settings.MaxRetries = *retriesFlag
	}

	level := zerolog.WarnLevel
	if *verboseFlag {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, finishing current chunks...")
		cancel()
	}()

	fmt.Println("Bunkr Downloader")
	fmt.Println("----------------------------------------")

	album, err := resolve.Load(manifest, settings.DownloadRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading manifest: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Album: %s (%d files)\n", album.Name, len(album.Items))

	if *dryRunFlag {
		for _, item := range album.Items {
			fmt.Printf("  %d. %s\n", item.Ordinal, item.Filename)
		}
		fmt.Println("\n[Dry run - not downloading]")
		return
	}

	var seed map[string]bool
	if settings.StatusURL != "" {
		seed, err = hoststatus.FetchSeed(ctx, settings.StatusURL)
		if err != nil {
			logger.Warn().Err(err).Msg("status endpoint unreachable, assuming all hosts up")
			seed = nil
		}
	}
	tracker := hoststatus.NewTracker(seed)
	if n := tracker.OfflineCount(); n > 0 {
		fmt.Printf("! %d host(s) reported down, their files will be deferred\n", n)
	}

	recorder := stats.NewRecorder(logger)
	led := ledger.New(settings.LedgerPath(album.ID), logger)

	scheduler := download.NewScheduler(settings, tracker, led, recorder, func(event download.Event) {
		if event.Level == download.LevelVerbose && !*verboseFlag {
			return
		}
		prefix := "  "
		switch event.Level {
		case download.LevelError:
			prefix = "x "
		case download.LevelWarning:
			prefix = "! "
		case download.LevelSuccess:
			prefix = "+ "
		case download.LevelInfo:
			prefix = "> "
		}
		fmt.Println(prefix + event.Message)
	}, logger)

	fmt.Println()
	summary, err := scheduler.Run(ctx, album)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if ctx.Err() != nil {
		fmt.Println("\nDownload cancelled. Unfinished files will resume next run.")
		os.Exit(130)
	}

	printSummary(summary)
	if summary.Totals[model.ResultFailed] > 0 {
		os.Exit(1)
	}
}

func printSummary(summary *stats.Summary) {
	fmt.Println()
	fmt.Println("----------------------------------------")
	fmt.Printf("Complete! %d downloaded, %d skipped, %d failed (%.2f MB in %s)\n",
		summary.Totals[model.ResultCompleted],
		summary.Totals[model.ResultSkipped],
		summary.Totals[model.ResultFailed],
		float64(summary.BytesReceived)/1024/1024,
		summary.Elapsed.Round(time.Second))

	for reason, n := range summary.Counts[model.ResultSkipped] {
		fmt.Printf("  skipped (%s): %d\n", reason, n)
	}
	for reason, n := range summary.Counts[model.ResultFailed] {
		fmt.Printf("  failed (%s): %d\n", reason, n)
	}
	if summary.Deferred > 0 {
		fmt.Printf("  deferred to next run: %d\n", summary.Deferred)
	}
}
