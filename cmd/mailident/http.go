package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
)

type logAttrs struct {
	attrs []slog.Attr
}

var logAttrsKey = &struct{}{}

// RequestLogger returns middleware that writes one log line per request,
// including any attributes that handlers attach with AddRequestLogAttrs.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			customAttrs := &logAttrs{}
			ctx := context.WithValue(r.Context(), logAttrsKey, customAttrs)
			r = r.WithContext(ctx)

			m := httpsnoop.CaptureMetrics(next, w, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.Int("status", m.Code),
				slog.Duration("duration", m.Duration),
				slog.Int64("bytes", m.Written),
			}
			// The route pattern is only known once chi has matched it.
			if rctx := chi.RouteContext(ctx); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					attrs = append(attrs, slog.String("route", pattern))
				}
			}
			attrs = append(attrs, customAttrs.attrs...)

			level := slog.LevelInfo
			if m.Code >= 500 {
				level = slog.LevelError
			}
			log.LogAttrs(ctx, level, "HTTP request", attrs...)
		})
	}
}

// AddRequestLogAttrs will add the given attributes to the set of attributes
// that are logged in the request's log line.
func AddRequestLogAttrs(r *http.Request, attrs ...slog.Attr) {
	logAttrs, ok := r.Context().Value(logAttrsKey).(*logAttrs)
	if !ok {
		return
	}
	logAttrs.attrs = append(logAttrs.attrs, attrs...)
}
