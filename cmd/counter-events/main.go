package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/patrickmn/go-cache"
	"github.com/tckz/go-visitor-counter/internal/log"
	"github.com/tckz/go-visitor-counter/internal/notify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Prints increment events published by visitor-counter as JSON lines.

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optWorkers      = flag.Uint64("workers", 4, "Number of workers")
	optLogLevel     = flag.String("log-level", "info", "info|warn|error")
	optSubscription = flag.String("subscription", "", "subscription name")
)

func init() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel), log.WithApp(myName))).Sugar()
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	if *optSubscription == "" {
		logger.Fatalf("*** --subscription must be specified.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pjID := os.Getenv("PROJECT_ID")

	cl, err := pubsub.NewClient(ctx, pjID)
	if err != nil {
		logger.Fatalf("*** pubsub.NewClient: %v", err)
	}
	defer cl.Close()

	// redelivered messages are acked but not printed twice
	seen := cache.New(10*time.Minute, 10*time.Minute)
	var mu sync.Mutex
	enc := json.NewEncoder(os.Stdout)

	eg, ctx := errgroup.WithContext(ctx)
	for i := uint64(0); i < *optWorkers; i++ {
		eg.Go(func() error {
			subs := cl.Subscription(*optSubscription)
			return subs.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
				defer msg.Ack()
				if err := seen.Add(msg.ID, struct{}{}, 0); err != nil {
					logger.Infof("msgID=%s already printed", msg.ID)
					return
				}
				e, err := notify.DecodeEvent(msg.Data)
				if err != nil {
					logger.Errorf("msgID=%s: %v", msg.ID, err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				enc.Encode(map[string]interface{}{
					"id":      msg.ID,
					"count":   e.Count,
					"created": e.Created,
					"time":    time.Unix(e.Timestamp, 0).UTC(),
				})
			})
		})
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT)

	s := <-sig
	logger.Infof("Received signal: %v", s)
	cancel()

	logger.Infof("Waiting goroutines exit")
	if err := eg.Wait(); err != nil {
		logger.Errorf("Wait: %v", err)
	}
}
