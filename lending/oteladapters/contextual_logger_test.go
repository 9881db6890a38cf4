package oteladapters_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/log/noop"

	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
)

func Test_SlogBridgeLogger_When_AllLevelsAreLogged(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(handler)
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "debug message", "level", "debug")
	logger.InfoContext(ctx, "info message", "level", "info")
	logger.WarnContext(ctx, "warn message", "level", "warn")
	logger.ErrorContext(ctx, "error message", "level", "error")

	// assert
	output := buf.String()
	assert.Contains(t, output, "debug message")
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func Test_SlogBridgeLogger_When_AttributesAreAttached(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(slog.NewJSONHandler(&buf, nil))

	// act
	logger.InfoContext(context.Background(), "loan created",
		"loan_id", "0f8fad5b-d9cb-469f-a165-70867728950e",
		"book_id", 1001,
		"member_id", 42,
	)

	// assert
	output := buf.String()
	assert.Contains(t, output, "loan created")
	assert.Contains(t, output, `"loan_id":"0f8fad5b-d9cb-469f-a165-70867728950e"`)
	assert.Contains(t, output, `"book_id":1001`)
	assert.Contains(t, output, `"member_id":42`)
}

func Test_NewSlogBridgeLogger_Construction(t *testing.T) {
	logger := oteladapters.NewSlogBridgeLogger("lending")
	assert.NotNil(t, logger)
}

func Test_OTelLogger_When_ArgumentsAreIrregular(t *testing.T) {
	// arrange
	otelLogger := noop.NewLoggerProvider().Logger("lending")
	logger := oteladapters.NewOTelLogger(otelLogger)
	ctx := context.Background()

	// act + assert - must not panic for any arg shape
	assert.NotPanics(t, func() {
		logger.InfoContext(ctx, "loan returned", "loan_id", "abc", "book_id", 1001)
	})
	assert.NotPanics(t, func() {
		logger.WarnContext(ctx, "return conflict", "loan_id")
	}, "odd number of args should not panic")
	assert.NotPanics(t, func() {
		logger.DebugContext(ctx, "plain message")
	})
	assert.NotPanics(t, func() {
		logger.ErrorContext(ctx, "operation failed", 42, "non-string key")
	}, "non-string keys should be skipped, not panic")
}
