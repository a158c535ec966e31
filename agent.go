package fetchagent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ambiyansyah-risyal/fetchagent/cache"
	"github.com/ambiyansyah-risyal/fetchagent/internal/backoff"
	"github.com/ambiyansyah-risyal/fetchagent/internal/singleflight"
)

const (
	// DefaultTimeout bounds each network attempt unless overridden.
	DefaultTimeout = 7 * time.Second
	// DefaultRepeatRequest is the number of extra attempts after a failure.
	DefaultRepeatRequest = 1
)

// Agent orchestrates requests on top of a Transport: it deduplicates
// concurrent identical requests, repeats failed ones, keeps cookies in sync
// when the environment does not, runs post-processors and caches results.
// It is safe for concurrent use.
type Agent struct {
	httpClient  *http.Client
	transformer URLTransformer
	transport   *Transport

	cache          Cache
	cacheKeyPrefix string
	inflight       *singleflight.Group

	cookies     CookieStore
	environment Environment

	defaults       RequestOptions
	language       string
	headersMu      sync.RWMutex
	defaultHeaders http.Header

	backoff     backoff.Config
	metrics     *MetricsCollector
	debug       *DebugConfig
	logger      Logger
	development bool

	validationError error
}

// New constructs an Agent. Configuration problems do not fail construction;
// check IsValid / ValidationError.
func New(options ...Option) *Agent {
	a := &Agent{
		cacheKeyPrefix: DefaultCacheKeyPrefix,
		inflight:       singleflight.New(),
		environment:    ServerEnvironment,
		defaults: RequestOptions{
			Timeout:         DefaultTimeout,
			RepeatRequest:   DefaultRepeatRequest,
			WithCredentials: true,
		},
		defaultHeaders: http.Header{"Accept": {"application/json"}},
		debug:          DefaultDebugConfig(),
	}

	for _, option := range options {
		option(a)
	}

	if a.httpClient == nil {
		a.httpClient = &http.Client{}
	}
	if a.transformer == nil {
		a.transformer = NewURLRules()
	}
	a.transport = NewTransport(a.httpClient, a.transformer)

	if a.language != "" {
		a.defaultHeaders.Set("Accept-Language", a.language)
	}

	if a.cache == nil {
		a.cache = cache.New(
			cache.WithDevelopment(a.development),
			cache.WithLogger(a.zerolog()),
		)
	}

	if err := a.ValidateConfiguration(); err != nil {
		a.validationError = err
	}

	return a
}

// Get issues a GET request. data is encoded into the query string.
func (a *Agent) Get(ctx context.Context, url string, data any, opts ...RequestOption) (*Response, error) {
	return a.Request(ctx, http.MethodGet, url, data, opts...)
}

// Post issues a POST request with data as the body.
func (a *Agent) Post(ctx context.Context, url string, data any, opts ...RequestOption) (*Response, error) {
	return a.Request(ctx, http.MethodPost, url, data, opts...)
}

// Put issues a PUT request with data as the body.
func (a *Agent) Put(ctx context.Context, url string, data any, opts ...RequestOption) (*Response, error) {
	return a.Request(ctx, http.MethodPut, url, data, opts...)
}

// Patch issues a PATCH request with data as the body.
func (a *Agent) Patch(ctx context.Context, url string, data any, opts ...RequestOption) (*Response, error) {
	return a.Request(ctx, http.MethodPatch, url, data, opts...)
}

// Delete issues a DELETE request with data as the body.
func (a *Agent) Delete(ctx context.Context, url string, data any, opts ...RequestOption) (*Response, error) {
	return a.Request(ctx, http.MethodDelete, url, data, opts...)
}

// Request issues a request with the given method. Every failure is an
// *Error; canceling ctx stops the request and any further repeats.
func (a *Agent) Request(ctx context.Context, method, url string, data any, opts ...RequestOption) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	method = strings.ToUpper(method)
	options := a.requestOptions(opts)
	params := a.transport.Compose(method, url, data, options)
	endpoint := endpointLabel(url)

	var requestID string
	if a.debug != nil && a.debug.Enabled && a.debug.RequestIDGen != nil {
		requestID = a.debug.RequestIDGen()
	}

	if a.debug != nil && a.debug.Enabled && a.debug.LogRequests && a.logger != nil {
		a.logger.Debug("Starting request", "requestID", requestID, "method", method, "url", url, "transformedURL", params.TransformedURL)
	}

	if a.metrics != nil {
		a.metrics.RecordRequestStart(method, endpoint)
	}

	var (
		resp *Response
		err  error
	)
	if options.CacheEnabled(method) {
		resp, err = a.requestCached(ctx, params, endpoint, requestID)
	} else {
		resp, err = a.execute(ctx, params, "", endpoint, requestID)
	}

	if a.metrics != nil {
		a.metrics.RecordRequestEnd(method, endpoint)
		status := StatusOf(err)
		if resp != nil {
			status = resp.Status
		}
		a.metrics.RecordRequest(method, endpoint, status, time.Since(start))
	}

	if err != nil {
		if a.debug != nil && a.debug.Enabled && a.debug.LogRequests && a.logger != nil {
			a.logger.Warn("Request failed", "requestID", requestID, "method", method, "url", url, "error", err.Error())
		}
		return nil, err
	}

	if a.debug != nil && a.debug.Enabled && a.debug.LogRequests && a.logger != nil {
		a.logger.Debug("Request completed", "requestID", requestID, "status", resp.Status, "cached", resp.Cached, "duration", time.Since(start))
	}
	return resp, nil
}

// requestCached runs params at most once per cache key at a time. The
// in-flight check, the store lookup and the registration happen atomically
// inside the group.
func (a *Agent) requestCached(ctx context.Context, params RequestDescriptor, endpoint, requestID string) (*Response, error) {
	key := a.CacheKey(params.Method, params.URL, params.Data)

	hit := false
	lookup := func() (interface{}, error, bool) {
		value, ok := a.cache.Get(key)
		if !ok {
			return nil, nil, false
		}
		resp, cachedErr, ok := decodeCached(value)
		if !ok {
			return nil, nil, false
		}
		hit = true
		if cachedErr != nil {
			return nil, cachedErr, true
		}
		return resp, nil, true
	}

	val, err, shared := a.inflight.Do(ctx, key, lookup, func() (interface{}, error) {
		if a.metrics != nil {
			a.metrics.RecordCacheMiss(params.Method, endpoint)
		}
		if a.debug != nil && a.debug.Enabled && a.debug.LogCache && a.logger != nil {
			a.logger.Debug("Cache miss", "requestID", requestID, "cacheKey", key)
		}

		resp, err := a.execute(ctx, params, key, endpoint, requestID)
		if err != nil {
			return nil, err
		}
		return resp, nil
	})

	switch {
	case hit:
		if a.metrics != nil {
			a.metrics.RecordCacheHit(params.Method, endpoint)
		}
		if a.debug != nil && a.debug.Enabled && a.debug.LogCache && a.logger != nil {
			a.logger.Debug("Cache hit", "requestID", requestID, "cacheKey", key)
		}
	case shared:
		if a.metrics != nil {
			a.metrics.RecordDeduplicationHit(params.Method, endpoint)
		}
		if a.debug != nil && a.debug.Enabled && a.logger != nil {
			a.logger.Debug("Deduplication hit", "requestID", requestID, "cacheKey", key)
		}
	}

	if err != nil {
		var agentErr *Error
		if errors.As(err, &agentErr) {
			if hit {
				return nil, agentErr
			}
			// Owner and waiters all read the shared result; hand out copies.
			return nil, agentErr.Clone()
		}
		if errors.Is(err, singleflight.ErrOwnerPanicked) {
			return nil, a.asError(err, params)
		}
		// The waiter's own context ended before the shared call settled.
		return nil, a.abortedError(ctx, params, err)
	}

	resp := val.(*Response)
	if hit {
		return resp, nil
	}
	return resp.Clone(), nil
}

// execute runs params through the transport, repeating failures while the
// repeat budget lasts. A non-empty key enables caching of the outcome; the
// cache is written before execute returns.
func (a *Agent) execute(ctx context.Context, params RequestDescriptor, key, endpoint, requestID string) (*Response, error) {
	remaining := params.Options.RepeatRequest
	repeats := 0

	for {
		resp, err := a.attempt(ctx, params)
		if err == nil {
			out, processErr := a.handleSuccess(resp, key, requestID)
			if processErr != nil {
				processErr.Attempt = repeats
				if a.metrics != nil {
					a.metrics.RecordError(processErr.Kind, params.Method, endpoint)
				}
				return nil, processErr
			}
			return out, nil
		}

		agentErr := a.asError(err, params)
		agentErr.Attempt = repeats

		if a.metrics != nil {
			a.metrics.RecordError(agentErr.Kind, params.Method, endpoint)
		}

		if agentErr.Kind == KindAborted || ctx.Err() != nil {
			return nil, agentErr
		}

		if remaining <= 0 {
			if key != "" && params.Options.CacheFailedRequest {
				a.store(key, agentErr.sanitized(), params.Options.TTL)
				if a.debug != nil && a.debug.Enabled && a.debug.LogCache && a.logger != nil {
					a.logger.Debug("Failure cached", "requestID", requestID, "cacheKey", key, "kind", string(agentErr.Kind))
				}
			}
			return nil, agentErr
		}

		remaining--
		repeats++

		if a.debug != nil && a.debug.Enabled && a.debug.LogRetries && a.logger != nil {
			a.logger.Info("Repeating request", "requestID", requestID, "attempt", repeats, "remaining", remaining, "kind", string(agentErr.Kind), "status", agentErr.Status)
		}
		if a.metrics != nil {
			a.metrics.RecordRetry(params.Method, endpoint, repeats)
		}

		if !a.backoff.Sleep(ctx, repeats-1) {
			aborted := a.abortedError(ctx, params, ctx.Err())
			aborted.Attempt = repeats
			return nil, aborted
		}
	}
}

// attempt performs one network call under its own child context so an
// attempt's timeout never leaks into the next one.
func (a *Agent) attempt(ctx context.Context, params RequestDescriptor) (*Response, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	return a.transport.Do(attemptCtx, params, a.attachCookies(params.Options))
}

func (a *Agent) handleSuccess(resp *Response, key, requestID string) (*Response, *Error) {
	a.syncCookies(resp)

	resp, err := a.postProcess(resp)
	if err != nil {
		if a.debug != nil && a.debug.Enabled && a.logger != nil {
			a.logger.Error("Post-processor panicked", "requestID", requestID, "error", err.Error())
		}
		return nil, err
	}

	if key != "" {
		a.store(key, resp.sanitized(), resp.Params.Options.TTL)
		if a.debug != nil && a.debug.Enabled && a.debug.LogCache && a.logger != nil {
			a.logger.Debug("Response cached", "requestID", requestID, "cacheKey", key, "ttl", resp.Params.Options.TTL)
		}
	}
	return resp, nil
}

// postProcess runs the post-processors in order. A panicking processor
// fails the request instead of unwinding through the caller.
func (a *Agent) postProcess(resp *Response) (out *Response, err *Error) {
	params := resp.Params
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = newError(KindInternalServerError, http.StatusInternalServerError, "post-processor panicked", params,
				fmt.Errorf("post-processor panic: %v", r))
			err.Params.Options.PostProcessors = nil
		}
	}()

	for _, process := range params.Options.PostProcessors {
		if process == nil {
			continue
		}
		if next := process(resp); next != nil {
			resp = next
		}
	}
	return resp, nil
}

func (a *Agent) store(key string, value any, ttl time.Duration) {
	if ttl > 0 {
		a.cache.Set(key, value, ttl)
	} else {
		a.cache.Set(key, value)
	}

	if a.metrics != nil {
		if sized, ok := a.cache.(interface{ Len() int }); ok {
			a.metrics.RecordCacheSize("default", sized.Len())
		}
	}
}

func (a *Agent) manualCookies() bool {
	return a.cookies != nil && (a.environment == nil || !a.environment.IsClient())
}

func (a *Agent) attachCookies(opts RequestOptions) func(*http.Request) {
	return func(req *http.Request) {
		if !a.manualCookies() || !opts.WithCredentials || opts.Credentials == CredentialsOmit {
			return
		}
		if req.Header.Get("Cookie") != "" {
			return
		}
		if header := a.cookies.CookieHeader(); header != "" {
			req.Header.Set("Cookie", header)
		}
	}
}

func (a *Agent) syncCookies(resp *Response) {
	if !a.manualCookies() || resp.Headers == nil {
		return
	}
	for _, value := range resp.Headers.Values("Set-Cookie") {
		a.cookies.ParseSetCookie(value)
	}
}

func (a *Agent) asError(err error, params RequestDescriptor) *Error {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr
	}
	return newError(KindInternalServerError, http.StatusInternalServerError, "request failed", params, err)
}

func (a *Agent) abortedError(ctx context.Context, params RequestDescriptor, cause error) *Error {
	if cause == nil {
		cause = context.Cause(ctx)
	}
	e := newError(KindAborted, 0, "request aborted", params, cause)
	e.Params.Options.PostProcessors = nil
	return e
}

// requestOptions merges the defaults, the default headers and opts into a
// fresh RequestOptions. The defaults are not modified.
func (a *Agent) requestOptions(opts []RequestOption) RequestOptions {
	options := a.defaults.Clone()

	a.headersMu.RLock()
	options.Headers = a.defaultHeaders.Clone()
	a.headersMu.RUnlock()
	if options.Headers == nil {
		options.Headers = make(http.Header)
	}
	for name, values := range a.defaults.Headers {
		options.Headers[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// InvalidateCache drops the cached result for the request, if any.
func (a *Agent) InvalidateCache(method, url string, data any) {
	key := a.CacheKey(strings.ToUpper(method), url, data)
	a.cache.Delete(key)

	if a.debug != nil && a.debug.Enabled && a.debug.LogCache && a.logger != nil {
		a.logger.Debug("Cache invalidated", "cacheKey", key)
	}
}

// SetDefaultHeader sets a header sent with every subsequent request unless
// the request overrides it.
func (a *Agent) SetDefaultHeader(name, value string) {
	a.headersMu.Lock()
	a.defaultHeaders.Set(name, value)
	a.headersMu.Unlock()
}

// ClearDefaultHeaders removes every default header, including Accept.
func (a *Agent) ClearDefaultHeaders() {
	a.headersMu.Lock()
	a.defaultHeaders = make(http.Header)
	a.headersMu.Unlock()
}

// DefaultHeaders returns a copy of the current default headers.
func (a *Agent) DefaultHeaders() http.Header {
	a.headersMu.RLock()
	defer a.headersMu.RUnlock()
	return a.defaultHeaders.Clone()
}

// Cache returns the response cache.
func (a *Agent) Cache() Cache {
	return a.cache
}

// Transport returns the underlying transport.
func (a *Agent) Transport() *Transport {
	return a.transport
}

// InFlight reports how many distinct requests are currently shared.
func (a *Agent) InFlight() int {
	return a.inflight.Len()
}

// IsValid reports whether the configuration passed validation.
func (a *Agent) IsValid() bool {
	return a.validationError == nil
}

// ValidationError returns the configuration error found by New, if any.
func (a *Agent) ValidationError() error {
	return a.validationError
}

func (a *Agent) zerolog() zerolog.Logger {
	if zl, ok := a.logger.(*ZerologLogger); ok {
		return zl.Zerolog()
	}
	return zerolog.Nop()
}

// decodeCached turns a stored value into a response or an error. Values
// restored from a serialized snapshot arrive as json.RawMessage.
func decodeCached(value any) (*Response, *Error, bool) {
	switch v := value.(type) {
	case *Response:
		resp := v.Clone()
		resp.Cached = true
		return resp, nil, true
	case *Error:
		e := v.Clone()
		e.Cached = true
		return nil, e, true
	case json.RawMessage:
		var probe struct {
			Kind Kind `json:"kind"`
		}
		if err := json.Unmarshal(v, &probe); err != nil {
			return nil, nil, false
		}
		if probe.Kind != "" {
			var e Error
			if err := json.Unmarshal(v, &e); err != nil {
				return nil, nil, false
			}
			e.Cached = true
			return nil, &e, true
		}
		var resp Response
		if err := json.Unmarshal(v, &resp); err != nil {
			return nil, nil, false
		}
		resp.Cached = true
		return &resp, nil, true
	default:
		return nil, nil, false
	}
}

func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)
	if u.Path != "" && u.Path != "/" {
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}
	return builder.String()
}
