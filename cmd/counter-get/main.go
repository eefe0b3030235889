package main

import (
	"context"
	"encoding/json"
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
	cfg   *config.Config
	optID = flag.String("id", counter.DocumentID, "document id")
)

func init() {
	godotenv.Load()

	cfg = config.Register(flag.CommandLine)
	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(cfg.LogLevel), log.WithApp(myName))).Sugar()
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

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

	lk, err := store.Get(ctx, *optID)
	if err != nil {
		logger.Errorf("Get: %v", err)
		return
	}
	if !lk.Found {
		logger.Infof("id=%s not found", *optID)
		return
	}

	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(lk.Doc); err != nil {
		logger.Errorf("Encode: %v", err)
	}
}
