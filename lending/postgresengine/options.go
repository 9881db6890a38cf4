package postgresengine

import (
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Option defines a functional option for configuring LendingEngine.
type Option func(*LendingEngine) error

// WithTableNames sets the table names the engine works with for books,
// members, and loans. All three must be non-empty.
func WithTableNames(booksTableName, membersTableName, loansTableName string) Option {
	return func(es *LendingEngine) error {
		if booksTableName == "" || membersTableName == "" || loansTableName == "" {
			return lending.ErrEmptyTableName
		}

		es.booksTableName = booksTableName
		es.membersTableName = membersTableName
		es.loansTableName = loansTableName

		return nil
	}
}

// WithLoanPeriod sets the lending policy: how many days after the borrow date
// a loan falls due. Default is lending.DefaultLoanPeriodDays.
func WithLoanPeriod(days int) Option {
	return func(es *LendingEngine) error {
		if days <= 0 {
			return lending.ErrInvalidLoanPeriod
		}

		es.loanPeriodDays = days

		return nil
	}
}

// WithClock sets the clock used for borrow, due, and return dates.
// Default is time.Now; inject a fixed clock for deterministic tests.
func WithClock(clock lending.Clock) Option {
	return func(es *LendingEngine) error {
		if clock == nil {
			return lending.ErrNilClock
		}

		es.clock = clock

		return nil
	}
}

// WithLogger sets the logger for the LendingEngine.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: loan lifecycle events, durations, stock conflicts (production-safe)
// Warn level: non-critical issues like rollback or cleanup failures
// Error level: critical failures that cause operation failures.
func WithLogger(logger lending.Logger) Option {
	return func(es *LendingEngine) error {
		es.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the LendingEngine.
// The contextual logger will receive log messages with context information including
// automatic trace/span correlation when tracing is enabled, enabling unified observability.
func WithContextualLogger(logger lending.ContextualLogger) Option {
	return func(es *LendingEngine) error {
		es.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the LendingEngine.
// The metrics collector will receive performance and operational metrics including
// operation durations, list sizes, business conflicts, and database errors.
func WithMetrics(collector lending.MetricsCollector) Option {
	return func(es *LendingEngine) error {
		es.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the LendingEngine.
// The tracing collector will receive distributed tracing information including
// span creation for lend/return/list operations, context propagation, and error tracking.
func WithTracing(collector lending.TracingCollector) Option {
	return func(es *LendingEngine) error {
		es.tracingCollector = collector
		return nil
	}
}
