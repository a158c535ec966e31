package fetchagent

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

const (
	contentTypeJSON      = "application/json"
	contentTypeForm      = "application/x-www-form-urlencoded"
	contentTypeMultipart = "multipart/form-data"
)

// FormFile is a file part of a multipart/form-data body.
type FormFile struct {
	Filename string
	Content  []byte
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func isJSONMediaType(mt string) bool {
	return mt == contentTypeJSON || strings.HasSuffix(mt, "+json")
}

// hasBody reports whether method may carry a request body. GET and HEAD
// send their payload in the query string.
func hasBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

// withQuery appends data to the query string of target.
func withQuery(target string, data any) (string, error) {
	values, err := formValues(data)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	query := u.Query()
	for key, vs := range values {
		for _, v := range vs {
			query.Add(key, v)
		}
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// encodeBody serializes data for the negotiated content type and returns
// the body with the Content-Type header to send.
func encodeBody(data any, contentType string) (io.Reader, string, error) {
	switch mediaType(contentType) {
	case contentTypeForm:
		values, err := formValues(data)
		if err != nil {
			return nil, "", err
		}
		return strings.NewReader(values.Encode()), contentType, nil
	case contentTypeMultipart:
		return encodeMultipart(data)
	case "":
		contentType = contentTypeJSON
	}

	switch raw := data.(type) {
	case []byte:
		return bytes.NewReader(raw), contentType, nil
	case string:
		return strings.NewReader(raw), contentType, nil
	case io.Reader:
		return raw, contentType, nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, "", fmt.Errorf("encode json body: %w", err)
	}
	return bytes.NewReader(payload), contentType, nil
}

func encodeMultipart(data any) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields, ok := data.(map[string]any)
	if !ok {
		values, err := formValues(data)
		if err != nil {
			return nil, "", err
		}
		fields = make(map[string]any, len(values))
		for key, vs := range values {
			fields[key] = vs
		}
	}

	for _, key := range sortedKeys(fields) {
		switch value := fields[key].(type) {
		case FormFile:
			part, err := writer.CreateFormFile(key, value.Filename)
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(value.Content); err != nil {
				return nil, "", err
			}
		case *FormFile:
			part, err := writer.CreateFormFile(key, value.Filename)
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(value.Content); err != nil {
				return nil, "", err
			}
		default:
			for _, v := range scalarValues(value) {
				if err := writer.WriteField(key, v); err != nil {
					return nil, "", err
				}
			}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

// formValues flattens data into key/value pairs. Structs are flattened via
// their JSON field names.
func formValues(data any) (url.Values, error) {
	switch value := data.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return value, nil
	case map[string][]string:
		return url.Values(value), nil
	case map[string]string:
		out := make(url.Values, len(value))
		for k, v := range value {
			out.Set(k, v)
		}
		return out, nil
	case map[string]any:
		out := make(url.Values, len(value))
		for k, v := range value {
			out[k] = scalarValues(v)
		}
		return out, nil
	case string:
		return url.ParseQuery(strings.TrimPrefix(value, "?"))
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("encode query: data must be an object: %w", err)
	}
	return formValues(fields)
}

func scalarValues(v any) []string {
	switch value := v.(type) {
	case nil:
		return []string{""}
	case string:
		return []string{value}
	case []string:
		return value
	case bool:
		return []string{strconv.FormatBool(value)}
	case float64:
		return []string{strconv.FormatFloat(value, 'f', -1, 64)}
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			out = append(out, scalarValues(item)...)
		}
		return out
	case map[string]any:
		payload, err := json.Marshal(value)
		if err != nil {
			return []string{fmt.Sprint(value)}
		}
		return []string{string(payload)}
	default:
		return []string{fmt.Sprint(value)}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decodeBody reads resp.Body and shapes it by content type and the
// requested representation. When the payload cannot be shaped the raw text
// is returned together with the error.
func decodeBody(resp *http.Response, responseType ResponseType) (any, error) {
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if isJSONMediaType(mediaType(resp.Header.Get("Content-Type"))) || responseType == ResponseJSON {
		if len(bytes.TrimSpace(payload)) == 0 {
			return nil, nil
		}
		var body any
		if err := json.Unmarshal(payload, &body); err != nil {
			return string(payload), fmt.Errorf("decode json response: %w", err)
		}
		return body, nil
	}

	switch responseType {
	case ResponseBinary, ResponseBlob:
		return payload, nil
	case ResponseForm:
		values, err := url.ParseQuery(string(payload))
		if err != nil {
			return string(payload), fmt.Errorf("decode form response: %w", err)
		}
		return values, nil
	default:
		return string(payload), nil
	}
}
