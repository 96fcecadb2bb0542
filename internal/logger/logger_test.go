package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Production logs are JSON with timestamp, level and message keys
func TestProperty_ProductionLogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("production entries are valid JSON", prop.ForAll(
		func(message string, phone string) bool {
			var buf bytes.Buffer
			log := zap.New(newCore("production", zapcore.AddSync(&buf)))

			log.Info(message, zap.String("phone", phone))
			_ = log.Sync()

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				return false
			}

			for _, key := range []string{"timestamp", "level", "message", "phone"} {
				if _, ok := entry[key]; !ok {
					return false
				}
			}

			return entry["message"] == message && entry["phone"] == phone
		},
		gen.AnyString(),
		gen.NumString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductionCoreDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := zap.New(newCore("production", zapcore.AddSync(&buf)))

	log.Debug("hidden")
	_ = log.Sync()

	if buf.Len() != 0 {
		t.Fatalf("expected debug entry to be dropped, got %q", buf.String())
	}
}

func TestDevelopmentCoreIsConsole(t *testing.T) {
	var buf bytes.Buffer
	log := zap.New(newCore("development", zapcore.AddSync(&buf)))

	log.Debug("visible")
	_ = log.Sync()

	out := buf.String()
	if !strings.Contains(out, "visible") {
		t.Fatalf("expected debug entry in development output, got %q", out)
	}
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Fatalf("development output should not be JSON: %q", out)
	}
}

func TestComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	base := zap.New(newCore("production", zapcore.AddSync(&buf)))

	Component(base, "aggregator").Info("flushed")
	_ = base.Sync()

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["component"] != "aggregator" {
		t.Fatalf("expected component field, got %v", entry["component"])
	}
}

func TestComponentToleratesNilLogger(t *testing.T) {
	if Component(nil, "x") == nil {
		t.Fatal("Component should never return nil")
	}
}
