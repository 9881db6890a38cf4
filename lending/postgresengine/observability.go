package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	metricOperationDuration = "lendingengine_operation_duration_seconds"
	metricLoansListed       = "lendingengine_loans_listed"
	metricDatabaseErrors    = "lendingengine_database_errors_total"
	metricBusinessConflicts = "lendingengine_business_conflicts_total"

	spanNamePrefix    = "lendingengine."
	spanAttrOperation = "operation"
	spanAttrErrorType = "error_type"
	spanAttrLoanID    = "loan_id"
	spanAttrLoanCount = "loan_count"

	statusSuccess = "success"
	statusError   = "error"

	errorTypeBookNotFound    = "book_not_found"
	errorTypeMemberNotFound  = "member_not_found"
	errorTypeLoanNotFound    = "loan_not_found"
	errorTypeOutOfStock      = "out_of_stock"
	errorTypeAlreadyReturned = "already_returned"
	errorTypePersistence     = "persistence_failure"
)

// errorTypeOf maps an operation error to its metrics/tracing label.
func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, lending.ErrBookNotFound):
		return errorTypeBookNotFound
	case errors.Is(err, lending.ErrMemberNotFound):
		return errorTypeMemberNotFound
	case errors.Is(err, lending.ErrLoanNotFound):
		return errorTypeLoanNotFound
	case errors.Is(err, lending.ErrBookOutOfStock):
		return errorTypeOutOfStock
	case errors.Is(err, lending.ErrLoanAlreadyReturned):
		return errorTypeAlreadyReturned
	default:
		return errorTypePersistence
	}
}

// logQueryWithDurationBoth logs SQL queries with execution time at debug level on whichever loggers are configured.
func (es LendingEngine) logQueryWithDurationBoth(ctx context.Context, sqlQuery string, duration time.Duration) {
	if es.logger != nil {
		es.logger.Debug(logMsgSQLExecuted+sqlQuery, logAttrDurationMS, es.toMilliseconds(duration))
	}
	if es.contextualLogger != nil {
		es.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+sqlQuery, logAttrDurationMS, es.toMilliseconds(duration))
	}
}

// logOperationBoth logs operational information at info level on whichever loggers are configured.
func (es LendingEngine) logOperationBoth(ctx context.Context, action string, args ...any) {
	if es.logger != nil {
		es.logger.Info(logMsgOperation+action, args...)
	}
	if es.contextualLogger != nil {
		es.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logErrorBoth logs error information at the error level on whichever loggers are configured.
func (es LendingEngine) logErrorBoth(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if es.logger != nil {
		es.logger.Error(message, allArgs...)
	}
	if es.contextualLogger != nil {
		es.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (es LendingEngine) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// === Tracing Observer Pattern ===
// The observer encapsulates span lifecycle management for engine operations.

// operationTracingObserver encapsulates tracing span lifecycle management for one engine operation.
type operationTracingObserver struct {
	es   LendingEngine
	span lending.SpanContext
}

// startOperationTracing creates a new tracing observer; a nil span (tracing not configured) makes every call a no-op.
func (es LendingEngine) startOperationTracing(ctx context.Context, operation string) (*operationTracingObserver, context.Context) {
	if es.tracingCollector == nil {
		return &operationTracingObserver{es: es}, ctx
	}

	spanAttrs := map[string]string{
		spanAttrOperation: operation,
	}

	newCtx, span := es.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, spanAttrs)

	return &operationTracingObserver{es: es, span: span}, newCtx
}

// finishSuccess completes the operation's tracing span for successful operations.
func (oto *operationTracingObserver) finishSuccess(attrs map[string]string) {
	if oto.span == nil {
		return
	}

	oto.span.SetStatus(statusSuccess)
	for key, value := range attrs {
		oto.span.AddAttribute(key, value)
	}

	oto.es.tracingCollector.FinishSpan(oto.span, statusSuccess, attrs)
}

// finishError completes the operation's tracing span with error details.
func (oto *operationTracingObserver) finishError(errorType string, duration time.Duration) {
	if oto.span == nil {
		return
	}

	oto.span.SetStatus(statusError)
	oto.span.AddAttribute(spanAttrErrorType, errorType)
	oto.span.AddAttribute(logAttrDurationMS, fmt.Sprintf("%.2f", oto.es.toMilliseconds(duration)))

	oto.es.tracingCollector.FinishSpan(oto.span, statusError, map[string]string{spanAttrErrorType: errorType})
}

// === Metrics Observer Pattern ===
// The observer encapsulates metrics recording for engine operations.

// operationMetricsObserver encapsulates the metrics collection for one engine operation.
type operationMetricsObserver struct {
	es        LendingEngine
	ctx       context.Context
	operation string
}

// startOperationMetrics creates a new metrics observer for an engine operation.
func (es LendingEngine) startOperationMetrics(ctx context.Context, operation string) *operationMetricsObserver {
	return &operationMetricsObserver{es: es, ctx: ctx, operation: operation}
}

// recordSuccess records the duration metric for a successful operation.
func (omo *operationMetricsObserver) recordSuccess(duration time.Duration) {
	omo.es.recordDurationMetricsContext(omo.ctx, metricOperationDuration, duration, omo.operation, statusSuccess)
}

// recordError records duration and error metrics for a failed operation.
func (omo *operationMetricsObserver) recordError(errorType string, duration time.Duration) {
	omo.es.recordDurationMetricsContext(omo.ctx, metricOperationDuration, duration, omo.operation, statusError)
	omo.es.recordErrorMetricsContext(omo.ctx, omo.operation, errorType)
}

// recordConflict counts an expected business conflict (out of stock, already returned).
func (omo *operationMetricsObserver) recordConflict(conflictType string) {
	if omo.es.metricsCollector != nil {
		labels := map[string]string{
			spanAttrOperation: omo.operation,
			"conflict_type":   conflictType,
		}
		omo.es.metricsCollector.IncrementCounter(metricBusinessConflicts, labels)
	}
}

// recordListed records how many loans a list operation produced.
func (omo *operationMetricsObserver) recordListed(count int, duration time.Duration) {
	omo.es.recordDurationMetricsContext(omo.ctx, metricOperationDuration, duration, omo.operation, statusSuccess)
	omo.es.recordValueMetricsContext(omo.ctx, metricLoansListed, float64(count), omo.operation, statusSuccess)
}

// observeOperationError finishes tracing and metrics for a failed operation,
// keeping expected business conflicts apart from infrastructure errors.
func (es LendingEngine) observeOperationError(
	tracing *operationTracingObserver,
	metrics *operationMetricsObserver,
	err error,
	duration time.Duration,
) {
	errorType := errorTypeOf(err)

	tracing.finishError(errorType, duration)

	if lending.IsBusinessError(err) {
		metrics.recordConflict(errorType)
		metrics.recordSuccess(duration) // business outcomes are not system faults
		return
	}

	metrics.recordError(errorType, duration)
}

// finishListOperation finishes tracing and metrics for a successful list operation.
func (es LendingEngine) finishListOperation(
	tracing *operationTracingObserver,
	metrics *operationMetricsObserver,
	count int,
	duration time.Duration,
) {
	tracing.finishSuccess(map[string]string{spanAttrLoanCount: fmt.Sprintf("%d", count)})
	metrics.recordListed(count, duration)
}

// recordErrorMetricsContext records error metrics with context if the collector supports it.
func (es LendingEngine) recordErrorMetricsContext(ctx context.Context, operation, errorType string) {
	if es.metricsCollector != nil {
		labels := map[string]string{
			spanAttrOperation: operation,
			"status":          statusError,
			spanAttrErrorType: errorType,
		}

		// Use context-aware method if available
		if contextualCollector, ok := es.metricsCollector.(lending.ContextualMetricsCollector); ok {
			contextualCollector.IncrementCounterContext(ctx, metricDatabaseErrors, labels)
		} else {
			es.metricsCollector.IncrementCounter(metricDatabaseErrors, labels)
		}
	}
}

// recordDurationMetricsContext records duration metrics with context if the collector supports it.
func (es LendingEngine) recordDurationMetricsContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	operation, status string,
) {
	if es.metricsCollector != nil {
		labels := map[string]string{
			spanAttrOperation: operation,
			"status":          status,
		}

		// Use context-aware method if available
		if contextualCollector, ok := es.metricsCollector.(lending.ContextualMetricsCollector); ok {
			contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
		} else {
			es.metricsCollector.RecordDuration(metricName, duration, labels)
		}
	}
}

// recordValueMetricsContext records value metrics with context if the collector supports it.
func (es LendingEngine) recordValueMetricsContext(
	ctx context.Context,
	metricName string,
	value float64,
	operation,
	status string,
) {
	if es.metricsCollector != nil {
		labels := map[string]string{
			spanAttrOperation: operation,
			"status":          status,
		}

		// Use context-aware method if available
		if contextualCollector, ok := es.metricsCollector.(lending.ContextualMetricsCollector); ok {
			contextualCollector.RecordValueContext(ctx, metricName, value, labels)
		} else {
			es.metricsCollector.RecordValue(metricName, value, labels)
		}
	}
}
