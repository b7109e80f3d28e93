// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

// Package gitlab is the stateless resource client for the upstream GitLab
// API. It follows Link-header pagination, injects the access token on every
// request, rate-limits outbound calls, and guards the upstream with a
// circuit breaker. All failures are normalized into *Error with a Kind the
// orchestrator can branch on.
package gitlab

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/Oxedos/devops-dashboard-sub000/internal/logging"
	"github.com/Oxedos/devops-dashboard-sub000/internal/metrics"
)

// TokenProvider returns the current access token. Token refresh happens
// outside this process; the client only injects whatever is current.
type TokenProvider func() string

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   TokenProvider

	// PerPage is the pagination page size. Default 100.
	PerPage int

	// Timeout bounds a single HTTP request. Default 30s.
	Timeout time.Duration

	// RateLimitRPS caps outbound requests per second. 0 disables limiting.
	RateLimitRPS float64

	// BreakerDisabled turns off the circuit breaker (tests).
	BreakerDisabled bool

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

// Client performs HTTP calls against the GitLab API.
type Client struct {
	baseURL string
	token   TokenProvider
	http    *http.Client
	limiter *rate.Limiter
	perPage int
	cb      *gobreaker.CircuitBreaker[response]
}

type response struct {
	body   []byte
	header http.Header
}

// NewClient creates a resource client for the given GitLab instance.
func NewClient(opts Options) *Client {
	if opts.PerPage <= 0 || opts.PerPage > 100 {
		opts.PerPage = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    httpClient,
		perPage: opts.PerPage,
	}
	if opts.RateLimitRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), int(opts.RateLimitRPS)+1)
	}
	if !opts.BreakerDisabled {
		c.cb = newBreaker()
	}
	return c
}

// newBreaker builds the upstream circuit breaker: opens after a 60% failure
// rate over at least 10 requests, recovers through a half-open probe.
func newBreaker() *gobreaker.CircuitBreaker[response] {
	return gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        "gitlab-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", from.String()).Str("to", to.String()).Msg("Upstream circuit breaker state change")
			metrics.CircuitBreakerState.Set(breakerStateValue(to))
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// do executes one HTTP request and returns the raw body and headers.
// Failures are normalized: transport errors and an open breaker map to
// KindNetwork, 401/403 to KindAuth, other non-2xx to KindUpstream.
func (c *Client) do(ctx context.Context, method, reqURL, resource string, body io.Reader) ([]byte, http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, &Error{Kind: KindNetwork, Op: resource, Err: err}
		}
	}

	start := time.Now()
	var resp response
	var err error
	if c.cb != nil {
		resp, err = c.cb.Execute(func() (response, error) {
			return c.doOnce(ctx, method, reqURL, resource, body)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &Error{Kind: KindNetwork, Op: resource, Err: err}
		}
	} else {
		resp, err = c.doOnce(ctx, method, reqURL, resource, body)
	}
	metrics.ObserveRequest(resource, time.Since(start), err)

	if err != nil {
		return nil, nil, err
	}
	return resp.body, resp.header, nil
}

func (c *Client) doOnce(ctx context.Context, method, reqURL, resource string, body io.Reader) (response, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return response{}, &Error{Kind: KindNetwork, Op: resource, Err: err}
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return response{}, &Error{Kind: KindNetwork, Op: resource, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 32<<20))
	if err != nil {
		return response{}, &Error{Kind: KindNetwork, Op: resource, Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		kind := KindUpstream
		if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden {
			kind = KindAuth
		}
		return response{}, &Error{Kind: kind, Op: resource, Status: httpResp.StatusCode, Body: truncate(string(data), 512)}
	}

	return response{body: data, header: httpResp.Header}, nil
}

// get fetches a single resource and decodes it into out.
func (c *Client) get(ctx context.Context, path, resource string, query url.Values, out any) error {
	body, _, err := c.do(ctx, http.MethodGet, c.buildURL(path, query), resource, nil)
	if err != nil {
		return err
	}
	return c.decode(resource, body, out)
}

// post issues a POST with an optional JSON body and decodes the response.
func (c *Client) post(ctx context.Context, path, resource string, query url.Values, out any) error {
	body, _, err := c.do(ctx, http.MethodPost, c.buildURL(path, query), resource, http.NoBody)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.decode(resource, body, out)
}

func (c *Client) decode(resource string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindMalformed, Op: resource, Err: err, Body: truncate(string(body), 512)}
	}
	return nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	u := c.baseURL + "/api/v4" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// getPaginated fetches every page of a list endpoint, following the
// Link: <url>; rel="next" header until a page is short of per_page.
// Pages are fetched sequentially: the next cursor is only known after the
// previous response arrives.
func getPaginated[T any](ctx context.Context, c *Client, path, resource string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", strconv.Itoa(c.perPage))

	reqURL := c.buildURL(path, query)
	var all []T
	for {
		body, header, err := c.do(ctx, http.MethodGet, reqURL, resource, nil)
		if err != nil {
			return nil, err
		}

		var page []T
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, &Error{Kind: KindMalformed, Op: resource, Err: err, Body: truncate(string(body), 512)}
		}
		all = append(all, page...)

		next := nextLink(header)
		if next == "" || len(page) < c.perPage {
			break
		}
		reqURL = next
	}
	return all, nil
}

// nextLink extracts the rel="next" URL from a Link response header.
func nextLink(header http.Header) string {
	link := header.Get("Link")
	if link == "" {
		return ""
	}
	for _, part := range strings.Split(link, ",") {
		segments := strings.Split(strings.TrimSpace(part), ";")
		if len(segments) < 2 {
			continue
		}
		urlPart := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		for _, seg := range segments[1:] {
			if strings.TrimSpace(seg) == `rel="next"` {
				return urlPart
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

