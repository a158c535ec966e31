package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ambiyansyah-risyal/fetchagent"
)

const sample = `
development: false
timeout: 3s
repeatRequest: 2
ttl: 10m
cacheKeyPrefix: api.
language: en
headers:
  X-Tenant: acme
urlRules:
  - pattern: https://api.example.com
    replacement: http://api.internal
backoff:
  initial: 100ms
  max: 1s
  multiplier: 2
  jitter: 0.1
snapshot:
  db: fetchagent.db
  name: boot
server:
  addr: ":9090"
requests:
  - name: items
    url: https://api.example.com/items
    data:
      page: 2
    ttl: 1m
  - name: create
    method: post
    url: https://api.example.com/items
    cache: true
    repeatRequest: 0
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "fetchagent.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o600))
	return filename
}

func TestLoad(t *testing.T) {
	config, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	require.Equal(t, 3*time.Second, config.Timeout)
	require.NotNil(t, config.RepeatRequest)
	require.Equal(t, 2, *config.RepeatRequest)
	require.Equal(t, 10*time.Minute, config.TTL)
	require.Equal(t, "acme", config.Headers["X-Tenant"])
	require.Equal(t, 100*time.Millisecond, config.Backoff.Initial)
	require.Equal(t, "boot", config.Snapshot.Name)
	require.Equal(t, ":9090", config.Server.Addr)
	require.Len(t, config.Requests, 2)
	require.Equal(t, 2, config.Requests[0].Data["page"])
	require.Equal(t, "GET", config.Requests[0].MethodOrDefault())
	require.Equal(t, "POST", config.Requests[1].MethodOrDefault())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "timeout: [not a duration"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "requests:\n  - method: TRACE\n"))
	require.ErrorContains(t, err, "url is required")
	require.ErrorContains(t, err, "unsupported method")
}

func TestApplyEnv(t *testing.T) {
	config := Config{}
	lookup := func(key string) (string, bool) {
		if key == EnvDevelopment {
			return "true", true
		}
		return "", false
	}
	require.NoError(t, config.ApplyEnv(lookup))
	require.True(t, config.Development)

	bad := func(string) (string, bool) { return "maybe", true }
	require.Error(t, config.ApplyEnv(bad))
}

func TestAgentOptions(t *testing.T) {
	config, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	agent := fetchagent.New(config.AgentOptions()...)
	require.True(t, agent.IsValid(), "%v", agent.ValidationError())
	require.Equal(t, "api.GET:/x?null", agent.CacheKey("GET", "/x", nil))
	require.Equal(t, "acme", agent.DefaultHeaders().Get("X-Tenant"))
	require.Equal(t, "en", agent.DefaultHeaders().Get("Accept-Language"))

	params := agent.Transport().Compose("GET", "https://api.example.com/items", nil, fetchagent.RequestOptions{})
	require.Equal(t, "http://api.internal/items", params.TransformedURL)
}

func TestRequestOptions(t *testing.T) {
	zero := 0
	on := true
	req := Request{
		Headers:            map[string]string{"X-A": "1"},
		Cache:              &on,
		CacheFailedRequest: true,
		TTL:                time.Minute,
		Timeout:            time.Second,
		RepeatRequest:      &zero,
		ResponseType:       "text",
	}

	var opts fetchagent.RequestOptions
	for _, opt := range req.RequestOptions() {
		opt(&opts)
	}
	require.Equal(t, "1", opts.Headers.Get("X-A"))
	require.True(t, *opts.Cache)
	require.True(t, opts.CacheFailedRequest)
	require.Equal(t, time.Minute, opts.TTL)
	require.Equal(t, time.Second, opts.Timeout)
	require.Equal(t, 0, opts.RepeatRequest)
	require.Equal(t, fetchagent.ResponseText, opts.ResponseType)
}
