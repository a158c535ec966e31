package fetchagent

import (
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

// RequestDescriptor is everything known about one logical request. It is
// threaded through retries and attached to every response and error.
type RequestDescriptor struct {
	Method         string         `json:"method"`
	URL            string         `json:"url"`
	TransformedURL string         `json:"transformedUrl"`
	Data           any            `json:"data,omitempty"`
	Options        RequestOptions `json:"options"`
}

// Clone returns a deep copy of the descriptor.
func (d RequestDescriptor) Clone() RequestDescriptor {
	d.Data = cloneValue(d.Data)
	d.Options = d.Options.Clone()
	return d
}

// ResponseType selects how a non-JSON response body is represented.
type ResponseType string

const (
	ResponseText   ResponseType = "text"
	ResponseJSON   ResponseType = "json"
	ResponseBinary ResponseType = "binary"
	ResponseBlob   ResponseType = "blob"
	ResponseForm   ResponseType = "form"
)

// CredentialsMode mirrors the fetch-level credentials setting.
type CredentialsMode string

const (
	CredentialsInclude    CredentialsMode = "include"
	CredentialsSameOrigin CredentialsMode = "same-origin"
	CredentialsOmit       CredentialsMode = "omit"
)

// PostProcessor transforms a successful response before it is returned and
// cached. Processors run in registration order.
type PostProcessor func(*Response) *Response

// RequestOptions controls a single request. The agent's defaults are copied
// and then adjusted per call; the defaults themselves are never mutated.
type RequestOptions struct {
	// Timeout bounds one network attempt. Zero disables the timeout.
	Timeout time.Duration `json:"timeout"`
	// TTL is the cache lifetime of the response. Zero selects the store default.
	TTL time.Duration `json:"ttl"`
	// RepeatRequest is the number of additional attempts after a failure.
	RepeatRequest int `json:"repeatRequest"`
	// Cache overrides the per-method default (reads cached, writes not).
	Cache              *bool           `json:"cache,omitempty"`
	CacheFailedRequest bool            `json:"cacheFailedRequest"`
	WithCredentials    bool            `json:"withCredentials"`
	Credentials        CredentialsMode `json:"credentials,omitempty"`
	Headers            http.Header     `json:"headers,omitempty"`
	ResponseType       ResponseType    `json:"responseType,omitempty"`
	PostProcessors     []PostProcessor `json:"-"`
}

// Clone returns a copy that shares nothing mutable with o.
func (o RequestOptions) Clone() RequestOptions {
	if o.Cache != nil {
		enabled := *o.Cache
		o.Cache = &enabled
	}
	if o.Headers != nil {
		o.Headers = o.Headers.Clone()
	}
	if o.PostProcessors != nil {
		o.PostProcessors = append([]PostProcessor(nil), o.PostProcessors...)
	}
	return o
}

// CacheEnabled resolves the cache flag for method.
func (o RequestOptions) CacheEnabled(method string) bool {
	if o.Cache != nil {
		return *o.Cache
	}
	switch method {
	case http.MethodGet, http.MethodHead:
		return true
	default:
		return false
	}
}

// Response is the normalized envelope returned for every successful request.
type Response struct {
	Status  int               `json:"status"`
	Body    any               `json:"body"`
	Params  RequestDescriptor `json:"params"`
	Headers http.Header       `json:"headers"`
	Cached  bool              `json:"cached"`
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Body = cloneValue(r.Body)
	clone.Params = r.Params.Clone()
	clone.Headers = r.Headers.Clone()
	return &clone
}

// sanitized returns the copy that goes into the cache: no callables and no
// cached flag.
func (r *Response) sanitized() *Response {
	clone := r.Clone()
	clone.Cached = false
	clone.Params.Options.PostProcessors = nil
	return clone
}

// Cache is the capability the agent needs from its response cache.
// *cache.Store satisfies it.
type Cache interface {
	Has(key string) bool
	Get(key string) (any, bool)
	Set(key string, value any, ttl ...time.Duration)
	Delete(key string)
	Clear()
}

// CookieStore is the cookie collaborator used when the environment does not
// handle cookies on its own.
type CookieStore interface {
	// CookieHeader renders the current cookies as a Cookie request header value.
	CookieHeader() string
	// ParseSetCookie absorbs one Set-Cookie response header value.
	ParseSetCookie(header string)
}

// Environment describes where the agent runs.
type Environment interface {
	// IsClient reports whether the runtime manages cookies by itself.
	IsClient() bool
}

type staticEnvironment bool

func (e staticEnvironment) IsClient() bool { return bool(e) }

var (
	// ServerEnvironment requires the agent to carry cookies manually.
	ServerEnvironment Environment = staticEnvironment(false)
	// ClientEnvironment leaves cookie handling to the runtime, e.g. an
	// http.Client with a Jar.
	ClientEnvironment Environment = staticEnvironment(true)
)

func cloneValue(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(value))
		for k, item := range value {
			out[k] = item
		}
		return out
	case []string:
		return append([]string(nil), value...)
	case []byte:
		return append([]byte(nil), value...)
	case json.RawMessage:
		return append(json.RawMessage(nil), value...)
	case url.Values:
		return url.Values(http.Header(value).Clone())
	case http.Header:
		return value.Clone()
	default:
		return v
	}
}
