package fetchagent

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSimpleLoggerLevels(t *testing.T) {
	logger := NewSimpleLogger()

	logger.Debug("debug message")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message")
	logger.Error("error message")
}

func TestZerologLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf))

	logger.Info("cache hit", "cacheKey", "http.GET:/x?null", "attempt", 2)

	out := buf.String()
	for _, want := range []string{`"message":"cache hit"`, `"cacheKey":"http.GET:/x?null"`, `"attempt":2`, `"level":"info"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in %s", want, out)
		}
	}
}

func TestGenerateRequestIDFormat(t *testing.T) {
	id := generateRequestID()
	if len(id) < 5 || !strings.HasPrefix(id, "req_") {
		t.Errorf("Expected request ID with 'req_' prefix, got %s", id)
	}
	if id == generateRequestID() {
		t.Error("Expected request IDs to be unique")
	}
}

func TestAgentDebugLogging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	var buf bytes.Buffer
	agent := New(
		WithDebug(),
		WithLogger(NewZerologLogger(zerolog.New(&buf))),
		WithRequestIDGenerator(func() string { return "req_fixed" }),
	)
	if !agent.IsValid() {
		t.Fatalf("Expected valid configuration, got %v", agent.ValidationError())
	}

	if _, err := agent.Get(context.Background(), server.URL, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Starting request", "Cache miss", "Response cached", `"requestID":"req_fixed"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in debug output:\n%s", want, out)
		}
	}
}

func TestNopLogger(t *testing.T) {
	var logger Logger = NopLogger{}
	logger.Debug("x")
	logger.Info("x")
	logger.Warn("x")
	logger.Error("x")
}
