package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/tckz/go-visitor-counter/internal/log"
	vh "github.com/tckz/vegetahelper"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
)

// Hits the counter endpoint concurrently and checks that every response
// carried a distinct count, i.e. no increment was lost.

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optRate = &vh.RateFlag{
		Rate: &vegeta.Rate{
			Freq: 30,
			Per:  1 * time.Second,
		}}
	optDuration = flag.Duration("duration", 10*time.Second, "Duration of the test [0 = forever]")
	optOutput   = flag.String("output", "", "/path/to/results.bin or 'stdout', empty to skip")
	optWorkers  = flag.Uint64("workers", vegeta.DefaultWorkers, "Number of workers")
	optLogLevel = flag.String("log-level", "info", "info|warn|error")
	optURL      = flag.String("url", "http://localhost:8080/api/get_visitor_count", "counter endpoint")
)

func init() {
	godotenv.Load()

	flag.Var(optRate, "rate", "Number of requests per time unit")
	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel), log.WithApp(myName))).Sugar()
}

type nopWriteCloser struct {
	io.Writer
}

func (c nopWriteCloser) Close() error {
	return nil
}

func openResultFile(out string) (io.WriteCloser, error) {
	switch out {
	case "":
		return &nopWriteCloser{io.Discard}, nil
	case "stdout":
		return &nopWriteCloser{os.Stdout}, nil
	default:
		return os.Create(out)
	}
}

type countResponse struct {
	Count int64 `json:"count"`
}

type tally struct {
	mu     sync.Mutex
	counts []int64
}

func (t *tally) add(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = append(t.counts, n)
}

func hit(ctx context.Context, cl *http.Client, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := cl.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("status=%d, body=%s", resp.StatusCode, b)
	}
	var cr countResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return 0, fmt.Errorf("Decode: %w", err)
	}
	return cr.Count, nil
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl := &http.Client{Timeout: 10 * time.Second}
	t := &tally{}
	atk := vh.NewAttacker(func(ctx context.Context) (result *vh.HitResult, retErr error) {
		n, err := hit(ctx, cl, *optURL)
		if err != nil {
			return nil, err
		}
		t.add(n)
		return result, nil
	}, vh.WithWorkers(*optWorkers))
	res := atk.Attack(ctx, *optRate.Rate, *optDuration, "counter")

	out, err := openResultFile(*optOutput)
	if err != nil {
		logger.Fatal(err)
	}
	defer out.Close()
	enc := vegeta.NewEncoder(out)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT)

	var metrics vegeta.Metrics
loop:
	for {
		select {
		case s := <-sig:
			logger.Infof("Received signal: %s", s)
			cancel()
			// keep loop until 'res' is closed.
		case r, ok := <-res:
			if !ok {
				break loop
			}
			metrics.Add(r)
			if err := enc.Encode(r); err != nil {
				logger.Errorf("*** Encode: %v", err)
				break loop
			}
		}
	}
	metrics.Close()

	report(t.counts, &metrics)
}

func report(counts []int64, m *vegeta.Metrics) {
	logger.Infof("requests=%s, success=%.2f%%, p99=%s",
		humanize.Comma(int64(m.Requests)), m.Success*100, m.Latencies.P99)
	if len(counts) == 0 {
		logger.Warnf("no successful responses")
		return
	}

	dups := lo.FindDuplicates(counts)
	low, high := lo.Min(counts), lo.Max(counts)
	logger.Infof("counts=%s, min=%d, max=%d", humanize.Comma(int64(len(counts))), low, high)
	if len(dups) > 0 {
		logger.Errorf("*** %d counts were returned more than once, increments were lost: %v", len(dups), dups)
		return
	}
	if span := high - low + 1; span != int64(len(counts)) {
		// other clients may have incremented concurrently
		logger.Warnf("span=%d differs from successful responses=%d", span, len(counts))
	}
	logger.Infof("no lost updates")
}
