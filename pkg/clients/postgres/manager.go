package postgres

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	smerr "github.com/scholarmesh/scholarmesh-core/pkg/errors"
)

// Retry defaults for initial connection establishment.
const (
	// DefaultMaxRetries is the number of additional connection attempts
	// made after the initial attempt fails.
	DefaultMaxRetries = 5

	// DefaultRetryDelay is the fixed pause between connection attempts.
	DefaultRetryDelay = 5 * time.Second
)

// dialFunc establishes a connected [*Client] from a [Config]. The production
// implementation is [NewClient]; tests substitute a fake to exercise the
// retry loop without a database.
type dialFunc func(ctx context.Context, cfg Config) (*Client, error)

// Manager owns the process-wide database connection. A database that is
// still starting alongside the service should not crash-loop it, so
// [Manager.ConnectWithRetry] retries a bounded number of times with a fixed
// delay before reporting failure.
//
// At most one live connection is tracked at a time. A successful attempt
// publishes the new [*Client] atomically, replacing any previous handle;
// a failed attempt never disturbs the current one. Once connected, pgxpool
// takes over connection-level recovery and the manager does not retry again.
//
// A Manager is safe for concurrent use. [Manager.Pool] may be called from
// any goroutine.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	dial  dialFunc
	sleep func(ctx context.Context, d time.Duration) error

	client atomic.Pointer[Client]
}

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithLogger sets the logger used for per-attempt warnings. Defaults to
// [slog.Default].
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a connection manager for the given configuration.
// The configuration is not validated until a connection attempt runs.
func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:    cfg,
		logger: slog.Default(),
		dial: func(ctx context.Context, cfg Config) (*Client, error) {
			return NewClient(ctx, cfg)
		},
		sleep: sleepWithContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect makes a single connection attempt. On success the new [*Client]
// is published atomically as the active handle; on failure the previous
// handle, if any, is left untouched.
//
// Most services should call [Manager.ConnectWithRetry] at startup instead.
func (m *Manager) Connect(ctx context.Context) error {
	client, err := m.dial(ctx, m.cfg)
	if err != nil {
		return err
	}
	if prev := m.client.Swap(client); prev != nil {
		prev.Close()
	}
	return nil
}

// ConnectWithRetry establishes the database connection, retrying on failure.
//
// It makes the initial attempt plus up to maxRetries retries, pausing delay
// between attempts, so maxRetries=5 yields exactly 6 attempts against a
// dependency that never recovers. The delay is fixed rather than
// exponential: startup races against a co-scheduled database measured in
// seconds, and a predictable worst-case wait (maxRetries * delay) is easier
// to align with orchestrator probe timeouts. Negative maxRetries is treated
// as zero.
//
// When every attempt fails, the first attempt's error is returned wrapped
// with [smerr.CodeUnavailableDependency]. The first error describes the
// steady-state problem (bad address, refused connection); later attempts
// usually repeat it. Configuration errors short-circuit the loop: a config
// that failed validation will not become valid by waiting.
//
// ConnectWithRetry returns promptly with the context's error if ctx is
// canceled while sleeping between attempts.
func (m *Manager) ConnectWithRetry(ctx context.Context, maxRetries int, delay time.Duration) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var firstErr error

	attempts := maxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		err := m.Connect(ctx)
		if err == nil {
			if attempt > 1 {
				m.logger.Info("postgres: connected after retry",
					"attempt", attempt,
				)
			}
			return nil
		}

		if firstErr == nil {
			firstErr = err
		}

		// A config rejected by validation cannot succeed on retry.
		if smerr.IsValidation(err) {
			return err
		}

		if attempt < attempts {
			m.logger.Warn("postgres: connection attempt failed, retrying",
				"attempt", attempt,
				"max_attempts", attempts,
				"retry_delay", delay,
				"error", err,
			)
			if sleepErr := m.sleep(ctx, delay); sleepErr != nil {
				return smerr.Wrap(sleepErr, smerr.CodeUnavailableDependency,
					"postgres: connection canceled during retry wait")
			}
		}
	}

	m.logger.Error("postgres: all connection attempts failed",
		"attempts", attempts,
		"error", firstErr,
	)
	return smerr.Wrap(firstErr, smerr.CodeUnavailableDependency,
		"postgres: failed to connect to database after retries")
}

// Client returns the active [*Client], or nil if no connection has been
// established yet.
func (m *Manager) Client() *Client {
	return m.client.Load()
}

// Pool returns the active connection pool, or a [smerr.CodeUnavailable]
// error if no connection has been established.
func (m *Manager) Pool() (Pool, error) {
	c := m.client.Load()
	if c == nil {
		return nil, smerr.New(smerr.CodeUnavailable,
			"postgres: no active database connection")
	}
	return c.Pool(), nil
}

// Close closes the active client if one was established. Safe to call when
// no connection ever succeeded.
func (m *Manager) Close() {
	if c := m.client.Swap(nil); c != nil {
		c.Close()
	}
}

// sleepWithContext pauses for d or until ctx is done, whichever comes
// first, returning the context's error on early wakeup.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
