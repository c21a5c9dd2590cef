package pgromcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kvanryn/pgromcp/internal/errprompt"
	"github.com/kvanryn/pgromcp/internal/sanitize"
	"github.com/kvanryn/pgromcp/internal/timeout"
)

// Engine is the read-only query engine behind the Query, ListTables, and
// DescribeTable tools. It owns the connection pool explicitly — one Engine
// per process is the expected shape, created at startup and closed on
// shutdown. All exported methods are safe for concurrent use.
type Engine struct {
	config     Config
	pool       *pgxpool.Pool
	semaphore  chan struct{}
	sanitizer  *sanitize.Sanitizer
	errPrompts *errprompt.Matcher
	timeoutMgr *timeout.Manager
	logger     zerolog.Logger
}

// New creates a new Engine. connString is the PostgreSQL connection string
// (must include credentials); the Engine treats it as opaque.
// Panics on invalid config. Returns an error only for runtime failures
// (connection string parsing, pool construction). The pool object is built
// here, but physical connections are established lazily on first acquire.
func New(ctx context.Context, connString string, config Config, logger zerolog.Logger) (*Engine, error) {
	if connString == "" {
		panic("pgromcp: connString must be non-empty")
	}

	config = config.withDefaults()

	if config.Pool.MaxConns < 0 || config.Pool.MinConns < 0 {
		panic("pgromcp: pool sizes must not be negative")
	}
	if config.Pool.MinConns > config.Pool.MaxConns {
		panic("pgromcp: pool.min_conns must be <= pool.max_conns")
	}
	if config.Pool.AcquireTimeoutSeconds < 0 {
		panic("pgromcp: pool.acquire_timeout_seconds must not be negative")
	}
	if config.Query.DefaultTimeoutSeconds < 0 ||
		config.Query.ListTablesTimeoutSeconds < 0 ||
		config.Query.DescribeTableTimeoutSeconds < 0 {
		panic("pgromcp: query timeouts must not be negative")
	}
	if config.Query.MaxSQLLength < 0 || config.Query.MaxResultLength < 0 {
		panic("pgromcp: query.max_sql_length and query.max_result_length must not be negative")
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, connectionErr("failed to parse connection string", err)
	}

	poolConfig.MaxConns = int32(config.Pool.MaxConns)
	poolConfig.MinConns = int32(config.Pool.MinConns)
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	if config.Pool.MaxConnLifetime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnLifetime)
		if err != nil {
			panic(fmt.Sprintf("pgromcp: invalid pool.max_conn_lifetime %q: %v", config.Pool.MaxConnLifetime, err))
		}
		poolConfig.MaxConnLifetime = d
	}
	if config.Pool.MaxConnIdleTime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnIdleTime)
		if err != nil {
			panic(fmt.Sprintf("pgromcp: invalid pool.max_conn_idle_time %q: %v", config.Pool.MaxConnIdleTime, err))
		}
		poolConfig.MaxConnIdleTime = d
	}
	if config.Pool.HealthCheckPeriod != "" {
		d, err := time.ParseDuration(config.Pool.HealthCheckPeriod)
		if err != nil {
			panic(fmt.Sprintf("pgromcp: invalid pool.health_check_period %q: %v", config.Pool.HealthCheckPeriod, err))
		}
		poolConfig.HealthCheckPeriod = d
	}

	// Every pooled connection defaults to read-only transactions at the
	// session level; Query additionally opens each transaction READ ONLY.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
			return fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
		}
		if config.Timezone != "" {
			escaped := strings.ReplaceAll(config.Timezone, "'", "''")
			if _, err := conn.Exec(ctx, fmt.Sprintf("SET timezone = '%s'", escaped)); err != nil {
				return fmt.Errorf("failed to SET timezone: %w", err)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, connectionErr("failed to create connection pool", err)
	}

	san, err := sanitize.NewSanitizer(mapSanitizationRules(config.Sanitization))
	if err != nil {
		pool.Close()
		return nil, err
	}
	matcher, err := errprompt.NewMatcher(append(errprompt.DefaultRules(), mapErrorPromptRules(config.ErrorPrompts)...))
	if err != nil {
		pool.Close()
		return nil, err
	}
	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	tmgr, err := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Engine{
		config:     config,
		pool:       pool,
		semaphore:  make(chan struct{}, config.Pool.MaxConns),
		sanitizer:  san,
		errPrompts: matcher,
		timeoutMgr: tmgr,
		logger:     logger,
	}, nil
}

// Ping checks out one connection and returns it, proving the pool can reach
// the database. Used by the health probe.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.pool.Ping(ctx); err != nil {
		return connectionErr("database ping failed", err)
	}
	return nil
}

// Close closes the connection pool. The context is currently unused;
// pgxpool.Pool.Close does not take one.
func (e *Engine) Close(ctx context.Context) {
	e.pool.Close()
}

// acquireSlot reserves one of the MaxConns engine slots. The wait is bounded
// by the pool acquire timeout and by context cancellation, so callers never
// block indefinitely. The returned release func must be called exactly once.
func (e *Engine) acquireSlot(ctx context.Context, op string) (func(), *Error) {
	acquireTimeout := time.Duration(e.config.Pool.AcquireTimeoutSeconds) * time.Second
	timer := time.NewTimer(acquireTimeout)
	defer timer.Stop()

	select {
	case e.semaphore <- struct{}{}:
		return func() { <-e.semaphore }, nil
	case <-timer.C:
		return nil, poolExhaustedErr(
			fmt.Sprintf("%s: all %d connection slots are in use, no slot freed within %ds", op, cap(e.semaphore), e.config.Pool.AcquireTimeoutSeconds),
			nil)
	case <-ctx.Done():
		return nil, poolExhaustedErr(
			fmt.Sprintf("%s: all %d connection slots are in use, context cancelled while waiting", op, cap(e.semaphore)),
			ctx.Err())
	}
}

// acquireConn checks a connection out of the pool within the configured
// acquire timeout, classifying failures as pool_exhausted or
// connection_error.
func (e *Engine) acquireConn(ctx context.Context) (*pgxpool.Conn, *Error) {
	acquireTimeout := time.Duration(e.config.Pool.AcquireTimeoutSeconds) * time.Second
	acquireCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	conn, err := e.pool.Acquire(acquireCtx)
	if err != nil {
		return nil, classifyAcquireErr(ctx, acquireCtx, e.config.Pool.AcquireTimeoutSeconds, err)
	}
	return conn, nil
}

func mapSanitizationRules(rules []SanitizationRule) []sanitize.Rule {
	result := make([]sanitize.Rule, len(rules))
	for i, r := range rules {
		result[i] = sanitize.Rule{Pattern: r.Pattern, Replacement: r.Replacement}
	}
	return result
}

func mapErrorPromptRules(rules []ErrorPromptRule) []errprompt.Rule {
	result := make([]errprompt.Rule, len(rules))
	for i, r := range rules {
		result[i] = errprompt.Rule{Pattern: r.Pattern, Message: r.Message}
	}
	return result
}
