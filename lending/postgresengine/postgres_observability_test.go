package postgresengine_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
	. "github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/helper"
	"github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/helper/postgreswrapper"
)

func Test_Lend_When_ObservabilityCollectorsAreConfigured(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metricsSpy := NewMetricsCollectorSpy()
	tracingSpy := NewTracingCollectorSpy()
	logSpy := NewLogHandlerSpy(false)

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(
		t,
		postgresengine.WithMetrics(metricsSpy),
		postgresengine.WithTracing(tracingSpy),
		postgresengine.WithLogger(slog.New(logSpy)),
	)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 1)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)

	// act
	_, err := engine.Lend(ctxWithTimeout, someBookID, someMemberID)

	// assert
	assert.NoError(t, err, "error in lending the book")
	assert.True(t, metricsSpy.HasDurationRecord("lendingengine_operation_duration_seconds"),
		"operation duration should be recorded")
	assert.True(t, tracingSpy.HasSpanRecord("lendingengine.lend"), "a span should be started for the operation")

	spanRecords := tracingSpy.GetSpanRecords()
	assert.Equal(t, "success", spanRecords[0].Status)

	assert.NotEmpty(t, logSpy.GetRecords(), "operational log records should be captured")
}

func Test_Lend_When_TheOperationEndsInABusinessConflict(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metricsSpy := NewMetricsCollectorSpy()
	tracingSpy := NewTracingCollectorSpy()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(
		t,
		postgresengine.WithMetrics(metricsSpy),
		postgresengine.WithTracing(tracingSpy),
	)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 0)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)

	// act
	_, err := engine.Lend(ctxWithTimeout, someBookID, someMemberID)

	// assert
	assert.ErrorIs(t, err, lending.ErrBookOutOfStock)
	assert.True(t, metricsSpy.HasCounterRecord("lendingengine_business_conflicts_total"),
		"a business conflict should be counted, not a database error")
	assert.False(t, metricsSpy.HasCounterRecord("lendingengine_database_errors_total"),
		"a conflict is an answer, not an infrastructure failure")

	spanRecords := tracingSpy.GetSpanRecords()
	assert.Len(t, spanRecords, 1)
	assert.Equal(t, "error", spanRecords[0].Status)
	assert.Equal(t, "out_of_stock", spanRecords[0].EndAttributes["error_type"])
}

func Test_ListLoansByMember_When_MetricsAreConfigured(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metricsSpy := NewMetricsCollectorSpy()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t, postgresengine.WithMetrics(metricsSpy))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	postgreswrapper.CleanUp(t, wrapper)
	postgreswrapper.SeedBook(t, wrapper, someBookID, 2)
	postgreswrapper.SeedMember(t, wrapper, someMemberID)
	GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID, someMemberID)
	GivenLoanWasLent(t, ctxWithTimeout, engine, someBookID, someMemberID)
	metricsSpy.Reset()

	// act
	records, err := engine.ListLoansByMember(ctxWithTimeout, someMemberID)

	// assert
	assert.NoError(t, err, "error in listing the loans")
	assert.Len(t, records, 2)

	valueRecords := metricsSpy.GetValueRecords()
	assert.Len(t, valueRecords, 1, "the listed loan count should be recorded")
	assert.Equal(t, "lendingengine_loans_listed", valueRecords[0].Metric)
	assert.Equal(t, 2.0, valueRecords[0].Value)
}
