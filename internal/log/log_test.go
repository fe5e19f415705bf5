package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentAuth, Output: &buf})
	l.Info("hello", FieldLogin, "ann")
	assert.Contains(t, buf.String(), "component=auth")
	assert.Contains(t, buf.String(), "login=ann")
	assert.Equal(t, ComponentAuth, l.Component())

	buf.Reset()
	l.WithComponent(ComponentStorage).Info("x")
	assert.Contains(t, buf.String(), "component=storage")
	assert.NotContains(t, buf.String(), "component=auth")
}

func TestFromContextFallsBack(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Output: &buf})

	var seen *Logger
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/payments", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "status_code=404")
	assert.Contains(t, out, "path=/api/payments")
	assert.Contains(t, out, "client_ip=10.0.0.1")
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	h := Middleware(Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestClientIPIgnoresForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:4000"
	req.Header.Set(ForwardedForHeader, "1.1.1.1, 2.2.2.2")
	assert.Equal(t, "192.0.2.7", ClientIP(req))

	var none TrustedProxies
	assert.Equal(t, "192.0.2.7", none.ClientIP(req))
}

func TestTrustedProxiesClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 127.0.0.1 ", "", "::1"})
	require.NoError(t, err)
	require.Len(t, proxies, 3)

	tests := []struct {
		name      string
		remote    string
		forwarded string
		want      string
	}{
		{"untrusted peer keeps its own address", "203.0.113.5:1000", "1.1.1.1", "203.0.113.5"},
		{"trusted peer without header", "10.1.2.3:1000", "", "10.1.2.3"},
		{"trusted peer reports client", "127.0.0.1:1000", "198.51.100.4", "198.51.100.4"},
		{"rightmost untrusted hop wins", "10.1.2.3:1000", "6.6.6.6, 198.51.100.4, 10.9.9.9", "198.51.100.4"},
		{"all hops trusted", "10.1.2.3:1000", "10.0.0.5, 10.0.0.6", "10.0.0.5"},
		{"ipv6 loopback", "[::1]:1000", "198.51.100.8", "198.51.100.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set(ForwardedForHeader, tt.forwarded)
			}
			assert.Equal(t, tt.want, proxies.ClientIP(req))
		})
	}
}

func TestParseTrustedProxiesRejectsGarbage(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.ErrorContains(t, err, `invalid trusted proxy "10.0.0.0/33"`)

	_, err = ParseTrustedProxies([]string{"proxy.local"})
	assert.ErrorContains(t, err, `invalid trusted proxy "proxy.local"`)
}

func TestMiddlewareLogsForwardedForSeparately(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Output: &buf})
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set(ForwardedForHeader, "9.9.9.9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), "client_ip=10.0.0.1")
	assert.Contains(t, buf.String(), "forwarded_for=9.9.9.9")
}
