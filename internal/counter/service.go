package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxAttempts = 16

	DefaultBackoffInitial = 10 * time.Millisecond
	DefaultBackoffMax     = 320 * time.Millisecond
)

// Notifier receives every successful increment. It must not block the caller
// for long; failures are the notifier's business.
type Notifier interface {
	Notify(ctx context.Context, r Result)
}

type options struct {
	timeout     time.Duration
	maxAttempts int
	backoff     gax.Backoff
	notifier    Notifier
	logger      *zap.SugaredLogger
}

type Option func(o *options)

// WithTimeout bounds every single store call.
func WithTimeout(d time.Duration) Option {
	return Option(func(o *options) {
		o.timeout = d
	})
}

// WithMaxAttempts caps optimistic retries.
func WithMaxAttempts(n int) Option {
	return Option(func(o *options) {
		o.maxAttempts = n
	})
}

// WithBackoff sets the retry period between conflicting attempts. The pause
// is drawn at random below a period that starts at initial and doubles up to
// maxPeriod.
func WithBackoff(initial, maxPeriod time.Duration) Option {
	return Option(func(o *options) {
		o.backoff = gax.Backoff{Initial: initial, Max: maxPeriod, Multiplier: 2}
	})
}

func WithNotifier(n Notifier) Option {
	return Option(func(o *options) {
		o.notifier = n
	})
}

func WithLogger(l *zap.SugaredLogger) Option {
	return Option(func(o *options) {
		o.logger = l
	})
}

type Service struct {
	store   Store
	cause   error
	options options
}

func NewService(store Store, opts ...Option) *Service {
	o := options{
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		backoff: gax.Backoff{
			Initial:    DefaultBackoffInitial,
			Max:        DefaultBackoffMax,
			Multiplier: 2,
		},
		logger: zap.NewNop().Sugar(),
	}
	for _, e := range opts {
		e(&o)
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}
	return &Service{store: store, options: o}
}

// Unavailable returns a Service that fails every call with ErrStoreUnavailable
// without touching any store. cause is the initialization failure.
func Unavailable(cause error) *Service {
	return &Service{
		cause: cause,
		options: options{
			logger: zap.NewNop().Sugar(),
		},
	}
}

func (s *Service) Available() bool {
	return s.store != nil
}

// IncrementAndGetCount increments the counter document and returns the value
// after the increment. The first call against an empty store creates the
// document with count 1.
func (s *Service) IncrementAndGetCount(ctx context.Context) (Result, error) {
	if s.store == nil {
		if s.cause != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, s.cause)
		}
		return Result{}, ErrStoreUnavailable
	}

	r, err := s.increment(ctx)
	if err != nil {
		return Result{}, err
	}
	if s.options.notifier != nil {
		s.options.notifier.Notify(ctx, r)
	}
	return r, nil
}

func (s *Service) increment(ctx context.Context) (Result, error) {
	if inc, ok := s.store.(Incrementer); ok {
		var r Result
		err := s.call(ctx, func(ctx context.Context) (err error) {
			r, err = inc.Increment(ctx, DocumentID)
			return err
		})
		return r, classify("Increment", err)
	}

	bo := s.options.backoff
	var lastErr error
	for attempt := 1; attempt <= s.options.maxAttempts; attempt++ {
		r, err := s.tryOnce(ctx)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrAlreadyExists) {
			return Result{}, err
		}
		lastErr = err
		if attempt == s.options.maxAttempts {
			break
		}
		pause := bo.Pause()
		s.options.logger.Debugf("attempt=%d lost race, retry in %s: %v", attempt, pause, err)
		if err := gax.Sleep(ctx, pause); err != nil {
			return Result{}, classify("backoff", err)
		}
	}
	return Result{}, fmt.Errorf("%w: gave up after %d attempts: %w", ErrStoreError, s.options.maxAttempts, lastErr)
}

// tryOnce runs one read-modify-write round. Conflicts are returned unwrapped so
// the caller can retry.
func (s *Service) tryOnce(ctx context.Context) (Result, error) {
	var lk Lookup
	err := s.call(ctx, func(ctx context.Context) (err error) {
		lk, err = s.store.Get(ctx, DocumentID)
		return err
	})
	if err != nil {
		return Result{}, classify("Get", err)
	}

	if !lk.Found {
		doc := Document{ID: DocumentID, Count: 1}
		err := s.call(ctx, func(ctx context.Context) error {
			return s.store.Create(ctx, doc)
		})
		if errors.Is(err, ErrAlreadyExists) {
			return Result{}, err
		}
		if err != nil {
			return Result{}, classify("Create", err)
		}
		return Result{Count: 1, Created: true}, nil
	}

	next := Document{ID: DocumentID, Count: lk.Doc.Count + 1}
	err = s.call(ctx, func(ctx context.Context) error {
		return s.store.Swap(ctx, lk, next)
	})
	if errors.Is(err, ErrConflict) {
		return Result{}, err
	}
	if err != nil {
		return Result{}, classify("Swap", err)
	}
	return Result{Count: next.Count}, nil
}

func (s *Service) call(ctx context.Context, f func(ctx context.Context) error) error {
	if s.options.timeout <= 0 {
		return f(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, s.options.timeout)
	defer cancel()
	return f(ctx)
}
