// Package config loads the YAML file driving the fetchagent command and
// turns it into agent options.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ambiyansyah-risyal/fetchagent"
)

// EnvDevelopment overrides Config.Development when set to a boolean.
const EnvDevelopment = "FETCHAGENT_DEVELOPMENT"

type Config struct {
	Development    bool              `yaml:"development"`
	Timeout        time.Duration     `yaml:"timeout"`
	RepeatRequest  *int              `yaml:"repeatRequest"`
	TTL            time.Duration     `yaml:"ttl"`
	CacheKeyPrefix string            `yaml:"cacheKeyPrefix"`
	Language       string            `yaml:"language"`
	Headers        map[string]string `yaml:"headers"`
	URLRules       []URLRule         `yaml:"urlRules"`
	Backoff        *Backoff          `yaml:"backoff"`
	Debug          Debug             `yaml:"debug"`
	Snapshot       Snapshot          `yaml:"snapshot"`
	Server         Server            `yaml:"server"`
	Requests       []Request         `yaml:"requests"`
}

type URLRule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

type Backoff struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

type Debug struct {
	Enabled     bool `yaml:"enabled"`
	LogRequests bool `yaml:"logRequests"`
	LogCache    bool `yaml:"logCache"`
	LogRetries  bool `yaml:"logRetries"`
}

// Snapshot names where the cache is restored from and saved to.
type Snapshot struct {
	DB   string `yaml:"db"`
	Name string `yaml:"name"`
}

// Server configures the optional debug HTTP server.
type Server struct {
	Addr string `yaml:"addr"`
}

// Request is one request the command issues.
type Request struct {
	Name               string            `yaml:"name"`
	Method             string            `yaml:"method"`
	URL                string            `yaml:"url"`
	Data               map[string]any    `yaml:"data"`
	Headers            map[string]string `yaml:"headers"`
	Cache              *bool             `yaml:"cache"`
	CacheFailedRequest bool              `yaml:"cacheFailedRequest"`
	TTL                time.Duration     `yaml:"ttl"`
	Timeout            time.Duration     `yaml:"timeout"`
	RepeatRequest      *int              `yaml:"repeatRequest"`
	ResponseType       string            `yaml:"responseType"`
}

// Load reads filename and applies environment overrides.
func Load(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return config, fmt.Errorf("parse %s: %w", filename, err)
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return config, err
	}
	return config, config.Validate()
}

// ApplyEnv applies overrides found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if value, ok := lookup(EnvDevelopment); ok && value != "" {
		development, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDevelopment, err)
		}
		c.Development = development
	}
	return nil
}

// Validate reports every problem found in the file at once.
func (c Config) Validate() error {
	var problems []string

	if c.Timeout < 0 {
		problems = append(problems, "timeout must be non-negative")
	}
	if c.RepeatRequest != nil && *c.RepeatRequest < 0 {
		problems = append(problems, "repeatRequest must be non-negative")
	}
	for i, rule := range c.URLRules {
		if rule.Pattern == "" {
			problems = append(problems, fmt.Sprintf("urlRules[%d]: pattern is required", i))
		}
	}
	for i, req := range c.Requests {
		if req.URL == "" {
			problems = append(problems, fmt.Sprintf("requests[%d]: url is required", i))
		}
		switch strings.ToUpper(req.Method) {
		case "", http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			problems = append(problems, fmt.Sprintf("requests[%d]: unsupported method %q", i, req.Method))
		}
	}

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// AgentOptions converts the file into agent options. extra options are
// appended last so callers can override the file.
func (c Config) AgentOptions(extra ...fetchagent.Option) []fetchagent.Option {
	opts := []fetchagent.Option{fetchagent.WithDevelopment(c.Development)}

	if c.Timeout > 0 {
		opts = append(opts, fetchagent.WithTimeout(c.Timeout))
	}
	if c.RepeatRequest != nil {
		opts = append(opts, fetchagent.WithDefaultRepeatRequest(*c.RepeatRequest))
	}
	if c.TTL > 0 {
		opts = append(opts, fetchagent.WithTTL(c.TTL))
	}
	if c.CacheKeyPrefix != "" {
		opts = append(opts, fetchagent.WithCacheKeyPrefix(c.CacheKeyPrefix))
	}
	if c.Language != "" {
		opts = append(opts, fetchagent.WithLanguage(c.Language))
	}
	for name, value := range c.Headers {
		opts = append(opts, fetchagent.WithDefaultHeader(name, value))
	}
	if len(c.URLRules) > 0 {
		rules := fetchagent.NewURLRules()
		for _, rule := range c.URLRules {
			rules.AddRule(rule.Pattern, rule.Replacement)
		}
		opts = append(opts, fetchagent.WithURLTransformer(rules))
	}
	if c.Backoff != nil {
		opts = append(opts, fetchagent.WithRetryBackoff(c.Backoff.Initial, c.Backoff.Max, c.Backoff.Multiplier, c.Backoff.Jitter))
	}
	if c.Debug.Enabled {
		debug := fetchagent.DefaultDebugConfig()
		debug.Enabled = true
		debug.LogRequests = c.Debug.LogRequests
		debug.LogCache = c.Debug.LogCache
		debug.LogRetries = c.Debug.LogRetries
		opts = append(opts, fetchagent.WithDebugConfig(debug))
	}

	return append(opts, extra...)
}

// RequestOptions converts a configured request into per-call options.
func (r Request) RequestOptions() []fetchagent.RequestOption {
	var opts []fetchagent.RequestOption

	for name, value := range r.Headers {
		opts = append(opts, fetchagent.WithRequestHeader(name, value))
	}
	if r.Cache != nil {
		opts = append(opts, fetchagent.WithRequestCache(*r.Cache))
	}
	if r.CacheFailedRequest {
		opts = append(opts, fetchagent.WithCacheFailedRequest(true))
	}
	if r.TTL > 0 {
		opts = append(opts, fetchagent.WithRequestTTL(r.TTL))
	}
	if r.Timeout > 0 {
		opts = append(opts, fetchagent.WithRequestTimeout(r.Timeout))
	}
	if r.RepeatRequest != nil {
		opts = append(opts, fetchagent.WithRepeatRequest(*r.RepeatRequest))
	}
	if r.ResponseType != "" {
		opts = append(opts, fetchagent.WithResponseType(fetchagent.ResponseType(r.ResponseType)))
	}
	return opts
}

// MethodOrDefault returns the upper-cased method, GET when empty.
func (r Request) MethodOrDefault() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}
