package fetchagent

import (
	"net/http"
	"testing"
	"time"
)

func TestCacheEnabledByMethod(t *testing.T) {
	var opts RequestOptions
	for method, want := range map[string]bool{
		http.MethodGet:    true,
		http.MethodHead:   true,
		http.MethodPost:   false,
		http.MethodPut:    false,
		http.MethodPatch:  false,
		http.MethodDelete: false,
	} {
		if got := opts.CacheEnabled(method); got != want {
			t.Errorf("CacheEnabled(%s) = %v, want %v", method, got, want)
		}
	}

	off := false
	opts.Cache = &off
	if opts.CacheEnabled(http.MethodGet) {
		t.Error("Expected explicit cache=false to win for GET")
	}
}

func TestRequestOptionsCloneIsIndependent(t *testing.T) {
	on := true
	original := RequestOptions{
		Cache:          &on,
		Headers:        http.Header{"X-A": {"1"}},
		PostProcessors: []PostProcessor{func(r *Response) *Response { return r }},
	}
	clone := original.Clone()

	*clone.Cache = false
	clone.Headers.Set("X-A", "2")
	clone.PostProcessors = append(clone.PostProcessors, nil)

	if !*original.Cache || original.Headers.Get("X-A") != "1" || len(original.PostProcessors) != 1 {
		t.Errorf("Expected original options to be untouched, got %+v", original)
	}
}

func TestRequestOptionsApply(t *testing.T) {
	var opts RequestOptions
	for _, opt := range []RequestOption{
		WithRequestTimeout(time.Second),
		WithRequestTTL(time.Minute),
		WithRepeatRequest(4),
		WithRequestCache(true),
		WithCacheFailedRequest(true),
		WithRequestHeader("x-trace", "abc"),
		WithRequestHeaders(http.Header{"X-Other": {"1", "2"}}),
		WithCredentials(false),
		WithFetchCredentials(CredentialsOmit),
		WithResponseType(ResponseBlob),
		WithPostProcessor(func(r *Response) *Response { return r }),
	} {
		opt(&opts)
	}

	if opts.Timeout != time.Second || opts.TTL != time.Minute || opts.RepeatRequest != 4 {
		t.Errorf("Unexpected durations/counters: %+v", opts)
	}
	if opts.Cache == nil || !*opts.Cache || !opts.CacheFailedRequest {
		t.Error("Expected cache flags to be set")
	}
	if opts.Headers.Get("X-Trace") != "abc" || len(opts.Headers.Values("X-Other")) != 2 {
		t.Errorf("Unexpected headers %v", opts.Headers)
	}
	if opts.WithCredentials || opts.Credentials != CredentialsOmit || opts.ResponseType != ResponseBlob {
		t.Errorf("Unexpected credentials/response type: %+v", opts)
	}
	if len(opts.PostProcessors) != 1 {
		t.Errorf("Expected 1 post-processor, got %d", len(opts.PostProcessors))
	}
}

func TestRequestOptionsDoNotLeakIntoDefaults(t *testing.T) {
	agent := New(WithDefaultRequestOptions(WithPostProcessor(func(r *Response) *Response { return r })))

	first := agent.requestOptions([]RequestOption{WithPostProcessor(func(r *Response) *Response { return r }), WithRequestHeader("X-A", "1")})
	second := agent.requestOptions(nil)

	if len(first.PostProcessors) != 2 || len(second.PostProcessors) != 1 {
		t.Errorf("Expected per-call processors not to leak, got %d and %d", len(first.PostProcessors), len(second.PostProcessors))
	}
	if second.Headers.Get("X-A") != "" {
		t.Error("Expected per-call header not to leak into later requests")
	}
	if len(agent.defaults.PostProcessors) != 1 {
		t.Errorf("Expected defaults to be untouched, got %d processors", len(agent.defaults.PostProcessors))
	}
}

func TestResponseCloneAndSanitize(t *testing.T) {
	resp := &Response{
		Status:  200,
		Body:    []any{map[string]any{"id": 1.0}},
		Headers: http.Header{"Etag": {"x"}},
		Cached:  true,
		Params: RequestDescriptor{
			Data:    map[string]any{"q": "a"},
			Options: RequestOptions{PostProcessors: []PostProcessor{nil}},
		},
	}

	clone := resp.Clone()
	clone.Body.([]any)[0].(map[string]any)["id"] = 2.0
	clone.Params.Data.(map[string]any)["q"] = "b"
	if resp.Body.([]any)[0].(map[string]any)["id"] != 1.0 || resp.Params.Data.(map[string]any)["q"] != "a" {
		t.Error("Expected deep copy of body and data")
	}

	sanitized := resp.sanitized()
	if sanitized.Cached || sanitized.Params.Options.PostProcessors != nil {
		t.Errorf("Expected sanitized response to drop cached flag and processors, got %+v", sanitized)
	}

	var nilResp *Response
	if nilResp.Clone() != nil {
		t.Error("Expected nil clone of nil response")
	}
}

func TestEnvironments(t *testing.T) {
	if ServerEnvironment.IsClient() {
		t.Error("Expected server environment to require manual cookies")
	}
	if !ClientEnvironment.IsClient() {
		t.Error("Expected client environment to handle cookies itself")
	}
}
