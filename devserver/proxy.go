// Package devserver is the local development server: it forwards /api to the
// marketplace backend and serves server-rendered book pages.
package devserver

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// APIPrefix is the path prefix forwarded to the backend.
const APIPrefix = "/api"

// NewProxy forwards requests to target. The Host header is rewritten to the
// target's host and X-Forwarded-* headers are set. When insecure is true the
// backend's TLS certificate is not verified.
func NewProxy(target *url.URL, insecure bool) (*httputil.ReverseProxy, error) {
	if target == nil || target.Host == "" {
		return nil, fmt.Errorf("proxy target must include a host")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // dev-only backend
	}

	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Error("proxy request failed",
				slog.String("path", r.URL.Path),
				slog.String("target", target.String()),
				slog.Any("error", err),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"Bad Gateway","message":"backend unavailable"}`))
		},
	}, nil
}
