package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goodtune/sitefocus/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrNotLoaded is returned when the model is requested before it loaded
var ErrNotLoaded = errors.New("model not loaded")

// Config controls where the model comes from and how hard to try
type Config struct {
	Source      string
	MaxAttempts int
	RetryDelay  time.Duration
	HTTPTimeout time.Duration
}

// Loader fetches the decision tree once per process
type Loader struct {
	config Config
	client *http.Client
	logger zerolog.Logger

	once sync.Once
	done chan struct{}
	tree atomic.Pointer[Tree]
	err  error
}

// NewLoader creates a loader. A zero MaxAttempts falls back to 5 and a
// negative RetryDelay to 2s; a zero RetryDelay retries immediately.
func NewLoader(config Config, logger zerolog.Logger) *Loader {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 2 * time.Second
	}
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = 10 * time.Second
	}

	return &Loader{
		config: config,
		client: &http.Client{Timeout: config.HTTPTimeout},
		logger: logger.With().Str("component", "model").Logger(),
		done:   make(chan struct{}),
	}
}

// Start loads the model in the background
func (l *Loader) Start(ctx context.Context) {
	go func() {
		_ = l.Load(ctx)
	}()
}

// Load fetches the model, retrying on failure. Only the first call does any
// work; later calls wait for it and return its result.
func (l *Loader) Load(ctx context.Context) error {
	l.once.Do(func() {
		defer close(l.done)
		l.err = l.load(ctx)
	})
	<-l.done
	return l.err
}

func (l *Loader) load(ctx context.Context) error {
	attempt := 0
	operation := func() error {
		attempt++
		metrics.ModelLoadAttempts.Inc()

		tree, err := l.fetch(ctx)
		if err != nil {
			return err
		}
		l.tree.Store(tree)
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(l.config.RetryDelay), uint64(l.config.MaxAttempts-1)),
		ctx,
	)

	notify := func(err error, wait time.Duration) {
		l.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", l.config.MaxAttempts).
			Dur("retry_in", wait).
			Msg("Model load failed, retrying")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		l.logger.Error().
			Err(err).
			Str("source", l.config.Source).
			Int("attempts", attempt).
			Msg("Model unavailable, recommendations disabled")
		return fmt.Errorf("failed to load model after %d attempts: %w", attempt, err)
	}

	metrics.ModelLoaded.Set(1)
	l.logger.Info().
		Str("source", l.config.Source).
		Int("nodes", len(l.tree.Load().ChildrenLeft)).
		Msg("Model loaded")
	return nil
}

func (l *Loader) fetch(ctx context.Context) (*Tree, error) {
	var (
		data []byte
		err  error
	)

	if strings.HasPrefix(l.config.Source, "http://") || strings.HasPrefix(l.config.Source, "https://") {
		data, err = l.fetchHTTP(ctx)
	} else {
		data, err = os.ReadFile(l.config.Source)
	}
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

func (l *Loader) fetchHTTP(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.config.Source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch model: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Model returns the loaded tree, if any
func (l *Loader) Model() (*Tree, bool) {
	tree := l.tree.Load()
	return tree, tree != nil
}

// Loaded reports whether the model is available. Once true it stays true.
func (l *Loader) Loaded() bool {
	return l.tree.Load() != nil
}

// Done is closed when loading has finished, successfully or not
func (l *Loader) Done() <-chan struct{} {
	return l.done
}
