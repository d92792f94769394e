package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"

	"ledgerflow/db"
	"ledgerflow/engine"
	"ledgerflow/ingest"
	"ledgerflow/ledger"
	"ledgerflow/report"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := newLogger()

	if len(os.Args) < 2 {
		log.Error().Msg("missing command line argument: the transactions file")
		return 1
	}
	path := os.Args[1]
	f, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("open transactions file")
		return 2
	}
	defer f.Close()

	ctx := context.Background()

	var store ledger.Store = ledger.NewMemoryStore()
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pool, err := db.NewPool(ctx, dsn)
		if err != nil {
			log.Error().Err(err).Msg("bootstrap database pool")
			return 2
		}
		defer pool.Close()

		pg := ledger.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error().Err(err).Msg("ensure ledger schema")
			return 2
		}
		store = pg
		log.Info().Msg("using postgres record store")
	}

	hub := engine.NewHub(store, log, nil)
	rdr := ingest.NewReader(f, log)
	for {
		act, err := rdr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Error().Err(err).Msg("read transactions")
			return 2
		}
		if err := hub.Submit(ctx, act); err != nil {
			log.Error().Err(err).Msg("submit action")
			return 2
		}
	}
	if n := rdr.Dropped(); n > 0 {
		log.Info().Int("rows", n).Msg("dropped malformed input rows")
	}

	snaps, err := hub.Summarize(ctx)
	if err != nil {
		log.Error().Err(err).Msg("summarize accounts")
		return 3
	}
	if err := report.WriteSummary(os.Stdout, snaps); err != nil {
		log.Error().Err(err).Msg("write summary")
		return 3
	}
	return 0
}

// newLogger writes to stderr so the summary on stdout stays clean.
// LOG_LEVEL selects verbosity; the default surfaces only warnings.
func newLogger() zerolog.Logger {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}
	return log.Level(lvl)
}
