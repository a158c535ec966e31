package fetchagent

import (
	"net/http"
	"time"
)

// RequestOption adjusts the options of a single request.
type RequestOption func(*RequestOptions)

// WithRequestTimeout bounds each attempt of the request. Zero disables the
// timeout.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(o *RequestOptions) {
		o.Timeout = d
	}
}

// WithRequestTTL sets how long the result stays cached.
func WithRequestTTL(ttl time.Duration) RequestOption {
	return func(o *RequestOptions) {
		o.TTL = ttl
	}
}

// WithRepeatRequest sets how many times a failed request is repeated.
func WithRepeatRequest(n int) RequestOption {
	return func(o *RequestOptions) {
		o.RepeatRequest = n
	}
}

// WithRequestCache forces caching (and deduplication) on or off regardless
// of the method.
func WithRequestCache(enabled bool) RequestOption {
	return func(o *RequestOptions) {
		o.Cache = &enabled
	}
}

// WithCacheFailedRequest caches the final failure of the request so repeated
// calls fail fast until the TTL runs out.
func WithCacheFailedRequest(enabled bool) RequestOption {
	return func(o *RequestOptions) {
		o.CacheFailedRequest = enabled
	}
}

// WithRequestHeader sets a header for this request, overriding any default
// header of the same name.
func WithRequestHeader(name, value string) RequestOption {
	return func(o *RequestOptions) {
		if o.Headers == nil {
			o.Headers = make(http.Header)
		}
		o.Headers.Set(name, value)
	}
}

// WithRequestHeaders merges h into the request headers.
func WithRequestHeaders(h http.Header) RequestOption {
	return func(o *RequestOptions) {
		if o.Headers == nil {
			o.Headers = make(http.Header)
		}
		for name, values := range h {
			o.Headers[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
		}
	}
}

// WithCredentials controls whether stored cookies are attached.
func WithCredentials(enabled bool) RequestOption {
	return func(o *RequestOptions) {
		o.WithCredentials = enabled
	}
}

// WithFetchCredentials sets the fetch-level credentials mode. CredentialsOmit
// suppresses cookies even when WithCredentials is on.
func WithFetchCredentials(mode CredentialsMode) RequestOption {
	return func(o *RequestOptions) {
		o.Credentials = mode
	}
}

// WithResponseType selects the body representation for non-JSON responses.
func WithResponseType(t ResponseType) RequestOption {
	return func(o *RequestOptions) {
		o.ResponseType = t
	}
}

// WithPostProcessor appends processors run on the successful response.
func WithPostProcessor(processors ...PostProcessor) RequestOption {
	return func(o *RequestOptions) {
		o.PostProcessors = append(o.PostProcessors, processors...)
	}
}
