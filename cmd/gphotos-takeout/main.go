// Command gphotos-takeout extracts per-item metadata from shared Google
// Photos albums into resumable JSON records, one file per album.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/blakeNaccarato/google-photos-takeout-model/internal/app"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/session"
)

var (
	overwriteFlag   = flag.Bool("overwrite", false, "re-extract every item instead of resuming where the last run stopped")
	concurrencyFlag = flag.Int("concurrency", 1, "number of tabs albums are processed on concurrently")
	headlessFlag    = flag.Bool("headless", false, "start chrome browser in headless mode (must have already authenticated with -profile)")
	outDirFlag      = flag.String("outdir", "", "where to write the album records. defaults to $HOME/gphotos-takeout.")
	profileFlag     = flag.String("profile", "", "user-provided profile dir, reused across runs so auth survives")
	execPathFlag    = flag.String("execpath", "", "path to Chrome/Chromium binary to use")
	verboseFlag     = flag.Bool("v", false, "be verbose")
	jsonLogFlag     = flag.Bool("json", false, "output logs in JSON format")
	logLevelFlag    = flag.String("loglevel", "", "log level: debug, info, warn, error, fatal, panic")
)

func main() {
	zerolog.TimestampFieldName = "dt"
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.999Z07:00"
	flag.Parse()
	if *verboseFlag && *logLevelFlag == "" {
		*logLevelFlag = "debug"
	}
	level, err := zerolog.ParseLevel(*logLevelFlag)
	if err != nil {
		log.Fatal().Err(err).Msgf("-loglevel argument not valid")
	}
	zerolog.SetGlobalLevel(level)
	if !*jsonLogFlag {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly})
	}
	if *headlessFlag && *profileFlag == "" {
		log.Fatal().Msg("-headless only allowed if -profile dir is set")
	}
	if flag.NArg() == 0 {
		log.Fatal().Msg("no album URLs given")
	}

	// Set XDG_CONFIG_HOME and XDG_CACHE_HOME to a temp dir to solve issue in newer versions of Chromium
	if os.Getenv("XDG_CONFIG_HOME") == "" {
		if err := os.Setenv("XDG_CONFIG_HOME", filepath.Join(os.TempDir(), ".chromium")); err != nil {
			log.Fatal().Msgf("err %v", err)
		}
	}
	if os.Getenv("XDG_CACHE_HOME") == "" {
		if err := os.Setenv("XDG_CACHE_HOME", filepath.Join(os.TempDir(), ".chromium")); err != nil {
			log.Fatal().Msgf("err %v", err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	outDir := *outDirFlag
	if outDir == "" {
		outDir = filepath.Join(os.Getenv("HOME"), "gphotos-takeout")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := session.Config{
		Email:      os.Getenv("GPHOTOS_EMAIL"),
		Password:   os.Getenv("GPHOTOS_PASSWORD"),
		ProfileDir: *profileFlag,
		StateFile:  filepath.Join(outDir, "storage-state.json"),
		ExecPath:   *execPathFlag,
	}
	opts := app.Options{
		Overwrite:   *overwriteFlag,
		Concurrency: *concurrencyFlag,
		Headless:    *headlessFlag,
	}

	coord, err := app.NewCoordinator(ctx, cfg, opts, outDir, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("could not start")
	}

	if err := coord.Run(ctx, flag.Args()); err != nil {
		coord.Close()
		log.Fatal().Err(err).Msg("batch failed")
	}
	coord.Close()
	log.Info().Msgf("processed %d albums", flag.NArg())
}
