// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/go-core-stack/kyc-proxy/pkg/requestid"
)

// middleware wraps next with, outermost first: request-scoped logger,
// request ID, access log and CORS.
func (p *Proxy) middleware(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: p.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedHeaders: []string{"Accept", "Content-Type", requestid.Header},
		ExposedHeaders: []string{requestid.Header},
	})

	h := c.Handler(next)
	h = hlog.AccessHandler(accessLog)(h)
	h = withRequestID(h)
	h = hlog.NewHandler(p.logger)(h)
	return h
}

// withRequestID assigns every request a correlation ID, echoes it in the
// response and adds it to the request logger.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestid.FromInbound(r.Header.Get(requestid.Header))
		w.Header().Set(requestid.Header, id)

		ctx := requestid.WithContext(r.Context(), id)
		zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", id)
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote_addr", r.RemoteAddr).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request handled")
}

// limit rejects requests with 429 once the shared limiter is exhausted.
func (p *Proxy) limit(next http.Handler) http.Handler {
	if p.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			hlog.FromRequest(r).Warn().Msg("rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
