package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
)

// ResilientConfig holds configuration for the resilient executor wrapper
type ResilientConfig struct {
	// MaxConcurrent scripts running at once (default: 4)
	MaxConcurrent int

	// MaxQueue runs waiting for a slot (default: 2 * MaxConcurrent)
	MaxQueue int

	// QueueTimeout bounds the wait for a slot (default: 30s)
	QueueTimeout time.Duration

	// FailureThreshold consecutive infrastructure failures open the circuit (default: 3)
	FailureThreshold int

	// OpenTimeout is how long the circuit stays open (default: 30s)
	OpenTimeout time.Duration

	Logger *slog.Logger
}

// DefaultResilientConfig returns defaults for a single-user lab
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxConcurrent:    4,
		QueueTimeout:     30 * time.Second,
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
	}
}

// ResilientExecutor limits concurrency and stops calling a broken backend.
//
// Only infrastructure errors count as failures. A script that raised is a
// successful call as far as the circuit breaker is concerned.
type ResilientExecutor struct {
	executor       Executor
	circuitBreaker circuitbreaker.CircuitBreaker[*Result]
	bulkhead       bulkhead.Bulkhead[*Result]
	logger         *slog.Logger
}

// NewResilientExecutor wraps an executor with fortify patterns
func NewResilientExecutor(executor Executor, cfg ResilientConfig) *ResilientExecutor {
	d := DefaultResilientConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = d.MaxConcurrent
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = cfg.MaxConcurrent * 2
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = d.QueueTimeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = d.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = d.OpenTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	re := &ResilientExecutor{
		executor: executor,
		logger:   logger.With("component", "resilient_executor"),
	}

	re.circuitBreaker = circuitbreaker.New[*Result](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= cfg.FailureThreshold
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			re.logger.Warn("circuit breaker state change",
				"from", from.String(),
				"to", to.String())
		},
	})

	re.bulkhead = bulkhead.New[*Result](bulkhead.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxQueue:      cfg.MaxQueue,
		QueueTimeout:  cfg.QueueTimeout,
	})

	return re
}

// Run executes the script through the bulkhead and circuit breaker
func (e *ResilientExecutor) Run(ctx context.Context, code string) (*Result, error) {
	res, err := e.circuitBreaker.Execute(ctx, func(ctx context.Context) (*Result, error) {
		return e.bulkhead.Execute(ctx, func(ctx context.Context) (*Result, error) {
			return e.executor.Run(ctx, code)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("execute script: %w", err)
	}
	return res, nil
}

var _ Executor = (*ResilientExecutor)(nil)
