package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/schema"
)

const (
	defaultValueKey  = "value"
	defaultLabelKey  = "label"
	defaultBodyLimit = 4 << 20
)

// resultPaths are probed when a definition leaves resultPath empty and the
// payload is not a bare array.
var resultPaths = []string{"data", "options", "items", "results"}

// HTTPFetcher resolves lookups over HTTP. GET requests carry params in the
// query string, POST requests as a JSON body. Responses are read with gjson:
// ResultPath selects the array, ValueKey and LabelKey the option members.
// Labels are stripped of markup.
type HTTPFetcher struct {
	client    *http.Client
	baseURL   string
	timeout   time.Duration
	limiter   *rate.Limiter
	policy    *bluemonday.Policy
	headers   http.Header
	bodyLimit int64
}

// HTTPOption customises an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithBaseURL resolves relative endpoints against base.
func WithBaseURL(base string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(timeout time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		f.timeout = timeout
	}
}

// WithRateLimit throttles outgoing requests to limit per second with burst.
// A non-positive limit disables throttling.
func WithRateLimit(limit float64, burst int) HTTPOption {
	return func(f *HTTPFetcher) {
		if limit <= 0 {
			f.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.headers.Add(key, value)
	}
}

// WithLabelPolicy replaces the label sanitizer.
func WithLabelPolicy(policy *bluemonday.Policy) HTTPOption {
	return func(f *HTTPFetcher) {
		if policy != nil {
			f.policy = policy
		}
	}
}

// NewHTTPFetcher returns a fetcher using http.DefaultClient unless told
// otherwise.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    http.DefaultClient,
		policy:    bluemonday.StrictPolicy(),
		headers:   make(http.Header),
		bodyLimit: defaultBodyLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, def schema.LookupDefinition, params map[string]any) ([]schema.Option, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("lookup http: rate limit: %w", err)
		}
	}

	reqCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := f.newRequest(reqCtx, def, params)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup http: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New("lookup http: unexpected status " + resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.bodyLimit))
	if err != nil {
		return nil, fmt.Errorf("lookup http: read body: %w", err)
	}
	return f.decode(def, body)
}

func (f *HTTPFetcher) newRequest(ctx context.Context, def schema.LookupDefinition, params map[string]any) (*http.Request, error) {
	target := def.Endpoint
	if f.baseURL != "" && !strings.Contains(target, "://") {
		target = f.baseURL + "/" + strings.TrimLeft(target, "/")
	}
	endpoint, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("lookup http: parse endpoint %q: %w", target, err)
	}

	method := def.MethodOrDefault()
	var body io.Reader
	switch method {
	case http.MethodGet:
		query := endpoint.Query()
		keys := make([]string, 0, len(params))
		for key := range params {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			value := params[key]
			if value == nil {
				continue
			}
			if items, ok := coerce.Strings(value); ok {
				for _, item := range items {
					query.Add(key, item)
				}
				continue
			}
			query.Set(key, coerce.String(value))
		}
		endpoint.RawQuery = query.Encode()
	case http.MethodPost:
		payload, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("lookup http: encode params: %w", err)
		}
		body = bytes.NewReader(payload)
	default:
		return nil, fmt.Errorf("lookup http: unsupported method %q", method)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	for key, values := range f.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (f *HTTPFetcher) decode(def schema.LookupDefinition, body []byte) ([]schema.Option, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("lookup http: response is not valid JSON")
	}
	root := gjson.ParseBytes(body)

	list := root
	switch {
	case def.ResultPath != "":
		list = root.Get(def.ResultPath)
	case !root.IsArray():
		for _, path := range resultPaths {
			if candidate := root.Get(path); candidate.IsArray() {
				list = candidate
				break
			}
		}
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("lookup http: no option array at %q", def.ResultPath)
	}

	valueKey := def.ValueKey
	if valueKey == "" {
		valueKey = defaultValueKey
	}
	labelKey := def.LabelKey
	if labelKey == "" {
		labelKey = defaultLabelKey
	}

	items := list.Array()
	options := make([]schema.Option, 0, len(items))
	for _, item := range items {
		var (
			value any
			label string
		)
		if item.IsObject() {
			value = item.Get(valueKey).Value()
			label = item.Get(labelKey).String()
		} else {
			value = item.Value()
			label = item.String()
		}
		if value == nil {
			continue
		}
		label = f.sanitize(label)
		if label == "" {
			label = coerce.String(value)
		}
		options = append(options, schema.Option{Value: value, Label: label})
	}
	return options, nil
}

func (f *HTTPFetcher) sanitize(label string) string {
	cleaned := f.policy.Sanitize(strings.TrimSpace(label))
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
