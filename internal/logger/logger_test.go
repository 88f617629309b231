package logger

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Feature: gift-list, Property 58: Configured level filters lower severities
func TestProperty_LevelIsHonoured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("entries below the configured level are dropped", prop.ForAll(
		func(env string, level string) bool {
			logger, err := New(env, level)
			if err != nil {
				return false
			}
			defer logger.Sync()

			want, _ := zapcore.ParseLevel(level)
			return !logger.Core().Enabled(want-1) && logger.Core().Enabled(want)
		},
		gen.OneConstOf("production", "development"),
		gen.OneConstOf("debug", "info", "warn", "error"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := New("production", "chatty")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled when the level is unknown")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be enabled when the level is unknown")
	}
}

func TestComponentTagsEntries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	Component(zap.New(core), "giftlist").Info("list resolved", zap.Int64("user_id", 7))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "giftlist" {
		t.Errorf("expected component field, got %v", fields["component"])
	}
	if fields["user_id"] != int64(7) {
		t.Errorf("expected user_id field, got %v", fields["user_id"])
	}
}

func TestComponentToleratesNilBase(t *testing.T) {
	if Component(nil, "catalog") == nil {
		t.Fatal("expected a logger")
	}
}
