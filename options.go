package fetchagent

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ambiyansyah-risyal/fetchagent/internal/backoff"
)

// Option configures an Agent.
type Option func(*Agent)

// WithHTTPClient sets the client used for network calls. Install a cookie
// jar on it together with WithEnvironment(ClientEnvironment) to let the
// client handle cookies on its own.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Agent) {
		a.httpClient = client
	}
}

// WithURLTransformer sets the URL rewriting applied before each request.
func WithURLTransformer(t URLTransformer) Option {
	return func(a *Agent) {
		a.transformer = t
	}
}

// WithCache sets the response cache. The default is an in-memory
// cache.Store honoring WithDevelopment.
func WithCache(c Cache) Option {
	return func(a *Agent) {
		a.cache = c
	}
}

// WithCacheKeyPrefix sets the prefix of every cache key.
func WithCacheKeyPrefix(prefix string) Option {
	return func(a *Agent) {
		a.cacheKeyPrefix = prefix
	}
}

// WithCookieStore sets where cookies are kept when the environment does not
// keep them itself.
func WithCookieStore(store CookieStore) Option {
	return func(a *Agent) {
		a.cookies = store
	}
}

// WithEnvironment selects automatic (client) or manual (server) cookie
// handling.
func WithEnvironment(env Environment) Option {
	return func(a *Agent) {
		a.environment = env
	}
}

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.defaults.Timeout = d
	}
}

// WithTTL sets the default cache TTL of responses. Zero selects the cache's
// own default.
func WithTTL(ttl time.Duration) Option {
	return func(a *Agent) {
		a.defaults.TTL = ttl
	}
}

// WithDefaultRepeatRequest sets the default number of repeats after a failure.
func WithDefaultRepeatRequest(n int) Option {
	return func(a *Agent) {
		a.defaults.RepeatRequest = n
	}
}

// WithDefaultCredentials sets whether cookies are attached by default.
func WithDefaultCredentials(enabled bool) Option {
	return func(a *Agent) {
		a.defaults.WithCredentials = enabled
	}
}

// WithDefaultRequestOptions applies opts to the defaults of every request.
func WithDefaultRequestOptions(opts ...RequestOption) Option {
	return func(a *Agent) {
		for _, opt := range opts {
			if opt != nil {
				opt(&a.defaults)
			}
		}
	}
}

// WithLanguage sends Accept-Language with every request.
func WithLanguage(language string) Option {
	return func(a *Agent) {
		a.language = language
	}
}

// WithDefaultHeader sets a header sent with every request.
func WithDefaultHeader(name, value string) Option {
	return func(a *Agent) {
		a.defaultHeaders.Set(name, value)
	}
}

// WithRetryBackoff inserts an exponential pause between repeat attempts.
// Without it repeats are issued immediately.
func WithRetryBackoff(initial, max time.Duration, multiplier, jitter float64) Option {
	return func(a *Agent) {
		if jitter < 0 {
			jitter = 0
		}
		if jitter > 1 {
			jitter = 1
		}
		a.backoff = backoff.Config{
			Initial:    initial,
			Max:        max,
			Multiplier: multiplier,
			Jitter:     jitter,
			Strategy:   backoff.Exponential{},
		}
	}
}

// WithDecorrelatedBackoff is WithRetryBackoff with decorrelated jitter.
func WithDecorrelatedBackoff(initial, max time.Duration) Option {
	return func(a *Agent) {
		a.backoff = backoff.Config{
			Initial:  initial,
			Max:      max,
			Strategy: backoff.Decorrelated{},
		}
	}
}

// WithDevelopment makes cache serialization fail loudly on values that
// cannot be represented as JSON instead of skipping them.
func WithDevelopment(development bool) Option {
	return func(a *Agent) {
		a.development = development
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(a *Agent) {
		a.metrics = NewMetricsCollector()
	}
}

// WithMetricsRegistry enables Prometheus metrics on registry.
func WithMetricsRegistry(registry prometheus.Registerer) Option {
	return func(a *Agent) {
		a.metrics = NewMetricsCollectorWithRegistry(registry)
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(a *Agent) {
		a.metrics = collector
	}
}

// WithDebug enables debug logging with the default configuration.
func WithDebug() Option {
	return func(a *Agent) {
		if a.debug == nil {
			a.debug = DefaultDebugConfig()
		}
		a.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(a *Agent) {
		a.debug = config
	}
}

// WithLogger sets the logger for debug output. A *ZerologLogger is also
// handed to the default cache.
func WithLogger(logger Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithSimpleLogger enables debug logging to stderr.
func WithSimpleLogger() Option {
	return func(a *Agent) {
		if a.debug == nil {
			a.debug = DefaultDebugConfig()
		}
		a.debug.Enabled = true
		a.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets the function generating request IDs for logs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(a *Agent) {
		if a.debug == nil {
			a.debug = DefaultDebugConfig()
		}
		a.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the agent configuration and returns an
// error of kind KindValidation if it is invalid.
func (a *Agent) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, a.validateRequestDefaults()...)
	errors = append(errors, a.validateBackoffConfig()...)
	errors = append(errors, a.validateDebugConfig()...)
	errors = append(errors, a.validateCollaborators()...)
	errors = append(errors, a.validateExtremeValues()...)

	if len(errors) > 0 {
		return newError(KindValidation, 0, "configuration validation failed", RequestDescriptor{},
			fmt.Errorf("validation errors: %v", errors))
	}

	return nil
}

// validateRequestDefaults validates the default request options
func (a *Agent) validateRequestDefaults() []string {
	var errors []string

	if a.defaults.Timeout < 0 {
		errors = append(errors, "timeout must be non-negative")
	}
	if a.defaults.TTL < 0 {
		errors = append(errors, "ttl must be non-negative")
	}
	if a.defaults.RepeatRequest < 0 {
		errors = append(errors, "repeatRequest must be non-negative")
	}
	switch a.defaults.Credentials {
	case "", CredentialsInclude, CredentialsSameOrigin, CredentialsOmit:
	default:
		errors = append(errors, fmt.Sprintf("unknown credentials mode %q", a.defaults.Credentials))
	}

	return errors
}

// validateBackoffConfig validates the pause between repeats
func (a *Agent) validateBackoffConfig() []string {
	var errors []string

	if !a.backoff.Enabled() {
		return errors
	}
	if a.backoff.Max > 0 && a.backoff.Max < a.backoff.Initial {
		errors = append(errors, "backoff max must be greater than or equal to initial")
	}
	if a.backoff.Multiplier < 0 {
		errors = append(errors, "backoff multiplier must be non-negative")
	}

	return errors
}

// validateDebugConfig validates debug configuration
func (a *Agent) validateDebugConfig() []string {
	var errors []string

	if a.debug != nil && a.debug.Enabled {
		if a.debug.RequestIDGen == nil {
			errors = append(errors, "debug RequestIDGen must be set when debug is enabled")
		}
		if a.logger == nil {
			errors = append(errors, "logger must be set when debug is enabled")
		}
	}

	return errors
}

// validateCollaborators validates injected dependencies
func (a *Agent) validateCollaborators() []string {
	var errors []string

	if a.httpClient == nil {
		errors = append(errors, "HTTP client cannot be nil")
	}
	if a.cache == nil {
		errors = append(errors, "cache cannot be nil")
	}
	if a.environment == nil {
		errors = append(errors, "environment cannot be nil")
	}
	if a.cacheKeyPrefix == "" {
		errors = append(errors, "cache key prefix cannot be empty")
	}

	return errors
}

// validateExtremeValues validates that configuration values are within reasonable bounds
func (a *Agent) validateExtremeValues() []string {
	var errors []string

	if a.defaults.RepeatRequest > 100 {
		errors = append(errors, "repeatRequest > 100 may cause excessive resource usage")
	}
	if a.defaults.Timeout > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}
	if a.backoff.Max > time.Hour {
		errors = append(errors, "backoff max > 1h may cause extremely long delays")
	}

	return errors
}
