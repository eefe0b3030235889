package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/tckz/go-visitor-counter/internal/bootstrap"
	"github.com/tckz/go-visitor-counter/internal/config"
	"github.com/tckz/go-visitor-counter/internal/counter"
	"github.com/tckz/go-visitor-counter/internal/log"
	"go.uber.org/zap"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	cfg      *config.Config
	optID    = flag.String("id", counter.DocumentID, "document id")
	optCount = flag.Int64("count", -1, "value to store")
)

func init() {
	godotenv.Load()

	cfg = config.Register(flag.CommandLine)
	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(cfg.LogLevel), log.WithApp(myName))).Sugar()
}

// Overwrites the counter document, e.g. to seed or reset it.
func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	if *optCount < 0 {
		logger.Fatalf("*** --count must be specified and non-negative.")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("*** %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("*** OpenStore: %v", err)
	}
	defer store.Close()

	doc := counter.Document{ID: *optID, Count: *optCount}
	if err := store.Upsert(ctx, doc); err != nil {
		logger.Errorf("Upsert: %v", err)
		return
	}
	logger.Infof("id=%s count=%d stored", doc.ID, doc.Count)
}
