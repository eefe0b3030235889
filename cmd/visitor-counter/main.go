package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/tckz/go-visitor-counter/internal/bootstrap"
	"github.com/tckz/go-visitor-counter/internal/config"
	"github.com/tckz/go-visitor-counter/internal/counter"
	"github.com/tckz/go-visitor-counter/internal/log"
	"github.com/tckz/go-visitor-counter/internal/notify"
	"github.com/tckz/go-visitor-counter/internal/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
	cfg     *config.Config
)

func init() {
	godotenv.Load()

	var err error
	cfg, err = config.Load(myName, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "*** %s: %v\n", myName, err)
		os.Exit(2)
	}

	logger = log.Must(log.NewLogger(log.WithLogLevel(cfg.LogLevel), log.WithApp(myName))).Sugar()
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		logger.Fatalf("*** run: %v", err)
	}
}

func run(ctx context.Context) error {
	var opts []counter.Option
	if cfg.Topic != "" {
		pjID := cfg.ProjectID
		if pjID == "" {
			pjID = pubsub.DetectProjectID
		}
		cl, err := pubsub.NewClient(ctx, pjID)
		if err != nil {
			// notifications are optional; the counter still serves
			logger.Errorf("pubsub.NewClient: %v", err)
		} else {
			defer cl.Close()
			n := notify.NewPubSubNotifier(cl, cfg.Topic, logger)
			defer n.Close()
			opts = append(opts, counter.WithNotifier(n))
			logger.Infof("publishing increments to topic %s", cfg.Topic)
		}
	}

	svc, closeStore := bootstrap.NewService(ctx, cfg, logger, opts...)
	defer closeStore()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.NewMux(svc, logger, cfg.AllowedOrigins()...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Infof("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		logger.Infof("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	return eg.Wait()
}
