package fetchagent

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

var errRequestTimeout = errors.New("request timed out")

// Transport executes one network call and normalizes its outcome into a
// *Response or an *Error. It does not retry, cache or deduplicate.
type Transport struct {
	client      *http.Client
	transformer URLTransformer
}

// NewTransport wraps client. A nil client selects http.DefaultClient and a
// nil transformer leaves URLs untouched.
func NewTransport(client *http.Client, transformer URLTransformer) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	if transformer == nil {
		transformer = NewURLRules()
	}
	return &Transport{client: client, transformer: transformer}
}

// Compose builds the descriptor for a request, applying URL rules once.
func (t *Transport) Compose(method, url string, data any, opts RequestOptions) RequestDescriptor {
	return RequestDescriptor{
		Method:         strings.ToUpper(method),
		URL:            url,
		TransformedURL: t.transformer.Transform(url),
		Data:           data,
		Options:        opts,
	}
}

// Request composes a descriptor and executes it.
func (t *Transport) Request(ctx context.Context, method, url string, data any, opts RequestOptions) (*Response, error) {
	return t.Do(ctx, t.Compose(method, url, data, opts))
}

// Do executes params. decorate, when given, may adjust the outgoing
// *http.Request without the change being recorded in params.
func (t *Transport) Do(ctx context.Context, params RequestDescriptor, decorate ...func(*http.Request)) (*Response, error) {
	start := time.Now()
	if params.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, params.Options.Timeout, errRequestTimeout)
		defer cancel()
	}

	req, err := t.newRequest(ctx, params)
	if err != nil {
		return nil, t.failure(ctx, params, err, start)
	}
	for _, fn := range decorate {
		fn(req)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, t.failure(ctx, params, err, start)
	}
	defer resp.Body.Close()

	body, decodeErr := decodeBody(resp, params.Options.ResponseType)

	// The status wins over an unreadable error body.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := newError(KindForStatus(resp.StatusCode), resp.StatusCode, http.StatusText(resp.StatusCode), params, decodeErr)
		e.Body = body
		e.Headers = resp.Header.Clone()
		e.Duration = time.Since(start)
		return nil, e
	}
	if decodeErr != nil {
		return nil, t.failure(ctx, params, decodeErr, start)
	}

	return &Response{
		Status:  resp.StatusCode,
		Body:    body,
		Params:  params,
		Headers: resp.Header.Clone(),
	}, nil
}

func (t *Transport) newRequest(ctx context.Context, params RequestDescriptor) (*http.Request, error) {
	header := make(http.Header)
	for name, values := range params.Options.Headers {
		header[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}

	target := params.TransformedURL
	var body io.Reader
	if hasBody(params.Method) {
		if params.Data != nil {
			reader, contentType, err := encodeBody(params.Data, header.Get("Content-Type"))
			if err != nil {
				return nil, err
			}
			body = reader
			header.Set("Content-Type", contentType)
		}
	} else if params.Data != nil {
		withData, err := withQuery(target, params.Data)
		if err != nil {
			return nil, err
		}
		target = withData
	}

	req, err := http.NewRequestWithContext(ctx, params.Method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header = header
	return req, nil
}

// failure normalizes a low-level error: the per-call timeout becomes a
// Timeout error, caller cancellation becomes Aborted and anything else a
// generic server error.
func (t *Transport) failure(ctx context.Context, params RequestDescriptor, cause error, start time.Time) *Error {
	var e *Error
	switch {
	case errors.Is(context.Cause(ctx), errRequestTimeout):
		e = newError(KindTimeout, StatusTimeout, "request timed out", params, cause)
	case ctx.Err() != nil:
		e = newError(KindAborted, 0, "request aborted", params, cause)
	default:
		e = newError(KindInternalServerError, http.StatusInternalServerError, "request failed", params, cause)
	}
	e.Duration = time.Since(start)
	return e
}
