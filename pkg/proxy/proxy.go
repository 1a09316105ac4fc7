// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/go-core-stack/kyc-proxy/pkg/airtable"
	"github.com/go-core-stack/kyc-proxy/pkg/config"
	"github.com/go-core-stack/kyc-proxy/pkg/requestid"
)

// hopHeaders lists standard hop-by-hop headers that must be stripped before a
// response is relayed so the downstream connection semantics remain correct.
var hopHeaders = map[string]struct{}{
	"Connection":          {},
	"Proxy-Connection":    {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// Proxy serves KYC reads backed by a single Airtable table.
type Proxy struct {
	// cfg keeps runtime knobs such as the route path and status query shape.
	cfg config.Config
	// client performs outbound HTTP requests with tuned transport settings.
	client *http.Client
	// upstream builds authenticated Airtable requests on top of client.
	upstream *airtable.Client
	// limiter throttles inbound KYC requests; nil when disabled.
	limiter *rate.Limiter
	// logger is the base for request-scoped loggers.
	logger zerolog.Logger
	// handler is the routed, middleware-wrapped entry point.
	handler http.Handler
}

// New constructs a Proxy backed by an http.Client configured with sensible
// connection pooling defaults and the provided runtime configuration.
func New(cfg config.Config) (http.Handler, error) {
	// Build a transport that honours system proxies and keeps connections warm.
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, // nolint:gosec -- opt-in for development scenarios
		},
	}

	client := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: transport,
		// Airtable does not redirect list calls; surfacing a 3xx keeps the
		// bearer token from following it anywhere.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	upstream, err := airtable.NewClient(cfg.Airtable, client)
	if err != nil {
		return nil, fmt.Errorf("build airtable client: %w", err)
	}

	p := &Proxy{
		cfg:      cfg,
		client:   client,
		upstream: upstream,
		logger:   log.With().Str("component", "proxy").Logger(),
	}
	if cfg.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	route := strings.TrimSuffix(cfg.RoutePath, "/")
	mux := http.NewServeMux()
	mux.Handle("GET "+route, p.limit(http.HandlerFunc(p.servePassthrough)))
	mux.Handle("GET "+route+"/{account_id}", p.limit(http.HandlerFunc(p.serveAccountStatus)))
	mux.HandleFunc("GET /healthz", p.serveHealth)

	p.handler = p.middleware(mux)
	return p, nil
}

// ServeHTTP dispatches through the middleware chain and router.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// servePassthrough relays the table listing: status code, headers and body
// are returned to the caller as Airtable sent them.
func (p *Proxy) servePassthrough(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	event := hlog.FromRequest(r)

	var query url.Values
	if p.cfg.ForwardQuery {
		query = airtable.FilterListQuery(r.URL.Query())
	}

	resp, err := p.forwardRequest(r.Context(), query)
	if err != nil {
		status := http.StatusBadGateway
		var httpErr *httpError
		if errors.As(err, &httpErr) {
			status = httpErr.Status
		}
		writeError(w, status, http.StatusText(status))
		event.Error().
			Err(err).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request failed")
		return
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			event.Error().
				Err(closeErr).
				Msg("close upstream response body failed")
		}
	}()

	// Default to streaming the upstream body unless we need to inspect errors.
	var bodyReader io.Reader = resp.Body
	if resp.StatusCode >= http.StatusBadRequest {
		const maxLogBody = 64 * 1024 // limit to a manageable payload for logs.
		payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxLogBody))
		if readErr != nil {
			event.Error().
				Err(readErr).
				Int("status", resp.StatusCode).
				Msg("failed to read upstream error body")
		} else {
			event.Warn().
				Int("status", resp.StatusCode).
				Bytes("upstream_body", payload).
				Msg("upstream returned error")
		}
		// Relay whatever was read followed by any remainder.
		bodyReader = io.MultiReader(bytes.NewReader(payload), resp.Body)
	}

	cleanHopHeaders(resp.Header)
	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	if _, copyErr := io.Copy(w, bodyReader); copyErr != nil {
		event.Error().
			Err(copyErr).
			Dur("duration", time.Since(start)).
			Msg("stream response failed")
		return
	}
}

// forwardRequest issues the authenticated listing call and maps transport
// failures onto gateway statuses.
func (p *Proxy) forwardRequest(ctx context.Context, query url.Values) (*http.Response, error) {
	resp, err := p.upstream.List(ctx, query)
	if err != nil {
		return nil, classifyUpstreamError(err)
	}
	return resp, nil
}

// serveHealth reports liveness without contacting upstream.
func (p *Proxy) serveHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// classifyUpstreamError turns a failed round trip into an httpError carrying
// 504 for timeouts and cancellation, 502 otherwise.
func classifyUpstreamError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &httpError{Status: http.StatusGatewayTimeout, Err: err}
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &httpError{Status: http.StatusGatewayTimeout, Err: err}
		}
	}
	return &httpError{Status: http.StatusBadGateway, Err: err}
}

// cleanHopHeaders removes hop-by-hop headers that should not be forwarded.
func cleanHopHeaders(h http.Header) {
	for k := range hopHeaders {
		h.Del(k)
	}
}

// copyResponseHeaders mirrors headers from the upstream response to the
// writer. The request ID already set by the middleware is kept.
func copyResponseHeaders(dst, src http.Header) {
	for k, vv := range src {
		if http.CanonicalHeaderKey(k) == requestid.Header {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// httpError wraps a status code with the underlying error from the upstream round trip.
type httpError struct {
	Status int   // Status preserves the HTTP status to emit downstream.
	Err    error // Err retains the original cause for logging.
}

// Error implements the error interface for httpError.
func (e *httpError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Status, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As checks.
func (e *httpError) Unwrap() error {
	return e.Err
}
