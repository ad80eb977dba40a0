// Package httpapi serves JSON REST endpoints as sources. Every fetch issues
// one request; nothing is cached between calls.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/sources/filter"
	"github.com/gear6io/dataagent/server/sources/frame"
	"github.com/gear6io/dataagent/server/types"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout   = 30 * time.Second
	SchemaSampleRows = 10

	// maxBodyBytes caps how much of a response body is read
	maxBodyBytes = 64 << 20
)

// Source is a REST endpoint returning JSON records
type Source struct {
	name      string
	url       string
	method    string
	headers   map[string]string
	params    map[string]any
	dataPath  string
	authToken string
	timeout   time.Duration
	configErr error

	client *http.Client
	logger zerolog.Logger
}

// Option customizes a Source
type Option func(*Source)

// WithHTTPClient replaces the default client. The per-request timeout still
// applies through the request context.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) {
		s.client = c
	}
}

// WithLogger sets the logger requests are reported to
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// New creates an HTTP source. Config problems are reported by Validate.
func New(name string, config map[string]any, opts ...Option) (*Source, error) {
	o := types.Options(config)
	s := &Source{
		name:      name,
		url:       o.String("url", ""),
		method:    strings.ToUpper(o.String("method", http.MethodGet)),
		dataPath:  o.String("data_path", ""),
		authToken: o.String("auth_token", ""),
		client:    &http.Client{},
		logger:    zerolog.Nop(),
	}

	var err error
	if s.headers, err = o.StringMap("headers"); err != nil {
		s.configErr = err
	}
	if s.params, err = o.Map("params"); err != nil {
		s.configErr = err
	}
	if s.timeout, err = o.Duration("timeout", DefaultTimeout); err != nil {
		s.configErr = err
	} else if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Type() types.SourceType {
	return types.SourceRESTAPI
}

// Validate checks the config only; the endpoint is not contacted
func (s *Source) Validate(ctx context.Context) error {
	if s.url == "" {
		return types.NewValidation(s.name, "REST API source '%s' requires 'url' in config", s.name)
	}
	u, err := url.Parse(s.url)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return types.NewValidation(s.name, "Invalid URL: %s", s.url).AddContext("url", s.url)
	}
	if s.method != http.MethodGet && s.method != http.MethodPost {
		return types.NewValidation(s.name, "Unsupported HTTP method: %s", s.method).AddContext("method", s.method)
	}
	if s.configErr != nil {
		return types.NewValidation(s.name, "Invalid config: %v", s.configErr)
	}
	return nil
}

// Fetch sends the filters to the endpoint as request parameters and then
// applies the whole query again to the records that come back.
func (s *Source) Fetch(ctx context.Context, q types.Query) (*types.Result, error) {
	conds, err := filter.Parse(q.Filters)
	if err != nil {
		return nil, errors.AsError(err, types.ErrSourceValidation).AddContext("source", s.name)
	}

	f, err := s.request(ctx, conds)
	if err != nil {
		return nil, err
	}
	out, err := f.Apply(q)
	if err != nil {
		return nil, errors.AsError(err, types.ErrSourceValidation).AddContext("source", s.name)
	}
	return out.Result(s.name), nil
}

// Schema infers column info from the first records of an unfiltered request
func (s *Source) Schema(ctx context.Context) (*types.Schema, error) {
	f, err := s.request(ctx, nil)
	if err != nil {
		return nil, err
	}
	return f.Head(SchemaSampleRows).Schema(s.name), nil
}

func (s *Source) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Source) request(ctx context.Context, conds []filter.Condition) (*frame.Frame, error) {
	if err := s.Validate(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.newRequest(ctx, conds)
	if err != nil {
		return nil, types.NewFetch(s.name, err, "Failed to build request for %s", s.url)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Str("method", req.Method).Str("url", s.url).Msg("Request failed")
		return nil, types.NewFetch(s.name, err, "Request to %s failed", s.url).AddContext("url", s.url)
	}
	defer resp.Body.Close()

	s.logger.Debug().
		Str("method", req.Method).
		Str("url", s.url).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request completed")

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, types.NewFetch(s.name, err, "Failed to read response from %s", s.url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, types.NewFetch(s.name, nil, "API returned status %d", resp.StatusCode).
			AddContext("url", s.url).
			AddContext("status", strconv.Itoa(resp.StatusCode))
	}

	f, err := frame.ReadJSON(body, s.dataPath)
	if err != nil {
		return nil, types.NewFetch(s.name, err, "Response from %s is not valid JSON", s.url)
	}
	return f.AutoConvertDates(), nil
}

func (s *Source) newRequest(ctx context.Context, conds []filter.Condition) (*http.Request, error) {
	var req *http.Request
	var err error

	switch s.method {
	case http.MethodPost:
		payload, merr := json.Marshal(s.bodyParams(conds))
		if merr != nil {
			return nil, merr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, err
		}
		query := req.URL.Query()
		for k, v := range s.queryParams(conds) {
			query.Set(k, v)
		}
		req.URL.RawQuery = query.Encode()
	}

	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}
	return req, nil
}

// queryParams merges configured params with filters. Operator filters are
// sent as column[op]=value.
func (s *Source) queryParams(conds []filter.Condition) map[string]string {
	out := make(map[string]string, len(s.params)+len(conds))
	for k, v := range s.params {
		out[k] = types.FormatValue(v)
	}
	for _, c := range conds {
		key := c.Column
		if !c.Literal {
			key = c.Column + "[" + string(c.Op) + "]"
		}
		out[key] = types.FormatValue(c.Value)
	}
	return out
}

// bodyParams merges configured params with filters for a JSON body.
// Operator filters become nested objects: {"col": {"gte": 1}}.
func (s *Source) bodyParams(conds []filter.Condition) map[string]any {
	out := make(map[string]any, len(s.params)+len(conds))
	for k, v := range s.params {
		out[k] = v
	}
	fresh := map[string]bool{}
	for _, c := range conds {
		if c.Literal {
			out[c.Column] = c.Value
			continue
		}
		ops, ok := out[c.Column].(map[string]any)
		if !ok || !fresh[c.Column] {
			merged := map[string]any{}
			for op, v := range ops {
				merged[op] = v
			}
			ops = merged
			out[c.Column] = ops
			fresh[c.Column] = true
		}
		ops[string(c.Op)] = c.Value
	}
	return out
}
