package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestServeMux(t *testing.T) {
	t.Parallel()

	m := NewServeMux(logr.Discard())
	handlersCalled := []string{}
	m.Handle("GET /exact", func(rw ResponseWriter, req *http.Request) {
		handlersCalled = append(handlersCalled, "exact")
		rw.WriteJSON(http.StatusOK, map[string]string{"city": "Berlin"})
	})
	m.Handle("GET /prefix/", func(rw ResponseWriter, req *http.Request) {
		handlersCalled = append(handlersCalled, "prefix")
		rw.WriteError(http.StatusInternalServerError, errors.New("boom"))
	})

	tests := []struct {
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{path: "/exact", expectedStatus: http.StatusOK, expectedBody: `{"city":"Berlin"}`},
		{path: "/prefix/", expectedStatus: http.StatusInternalServerError},
		{path: "/prefix/bar", expectedStatus: http.StatusInternalServerError},
		{path: "/exact/foo", expectedStatus: http.StatusNotFound, expectedBody: `{"error":"no route for GET /exact/foo"}`},
	}
	for _, tt := range tests {
		rw := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "http://localhost"+tt.path, nil)
		m.ServeHTTP(rw, req)
		require.Equal(t, tt.expectedStatus, rw.Code, tt.path)
		require.Equal(t, tt.expectedBody, rw.Body.String(), tt.path)
	}
	require.Equal(t, []string{"exact", "prefix", "prefix"}, handlersCalled)

	require.InDelta(t, 0, testutil.ToFloat64(HttpRequestsInflight.WithLabelValues("/exact")), 0)
	require.InDelta(t, 0, testutil.ToFloat64(HttpRequestsInflight.WithLabelValues("/prefix/*")), 0)
	require.InDelta(t, 0, testutil.ToFloat64(HttpRequestsInflight.WithLabelValues(unmatchedRoute)), 0)
}

func TestWriteJSONHead(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := &response{ResponseWriter: rec, method: http.MethodHead}
	rw.WriteJSON(http.StatusOK, []string{"a"})
	require.Equal(t, http.StatusOK, rw.Status())
	require.Equal(t, ContentTypeJSON, rec.Header().Get(HeaderContentType))
	require.Empty(t, rec.Body.String())
	require.Zero(t, rw.Size())
}

func TestWriteErrorAfterHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := &response{ResponseWriter: rec, method: http.MethodGet}
	_, err := rw.Write([]byte("ok"))
	require.NoError(t, err)
	rw.WriteError(http.StatusBadRequest, errors.New("too late"))
	require.Equal(t, http.StatusOK, rw.Status())
	require.NoError(t, rw.Error())
	require.Equal(t, int64(2), rw.Size())
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		forwardedFor string
		remoteAddr   string
		expectedIP   string
	}{
		{
			name:       "remote address",
			remoteAddr: "10.0.0.1:4001",
			expectedIP: "10.0.0.1",
		},
		{
			name:         "single forwarded for",
			forwardedFor: "203.0.113.7",
			remoteAddr:   "10.0.0.1:4001",
			expectedIP:   "203.0.113.7",
		},
		{
			name:         "multiple forwarded for",
			forwardedFor: "203.0.113.7, 10.0.0.2",
			remoteAddr:   "10.0.0.1:4001",
			expectedIP:   "203.0.113.7",
		},
		{
			name:       "invalid remote address",
			remoteAddr: "garbage",
			expectedIP: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "http://localhost/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwardedFor != "" {
				req.Header.Set(HeaderXForwardedFor, tt.forwardedFor)
			}
			require.Equal(t, tt.expectedIP, clientIP(req))
		})
	}
}

func TestRouteLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern  string
		expected string
	}{
		{pattern: "GET /api/v1/locations", expected: "/api/v1/locations"},
		{pattern: "GET /api/v1/locations/raw", expected: "/api/v1/locations/raw"},
		{pattern: "/debug/", expected: "/debug/*"},
		{pattern: "GET /{$}", expected: "/"},
		{pattern: "GET /healthz", expected: "/healthz"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, routeLabel(tt.pattern), tt.pattern)
	}
}

func TestServeMuxQuietRoute(t *testing.T) {
	t.Parallel()

	msgs := []string{}
	log := funcr.New(func(prefix, args string) {
		msgs = append(msgs, args)
	}, funcr.Options{Verbosity: 10})
	m := NewServeMux(log)
	calls := 0
	m.HandleQuiet("GET /ready", func(rw ResponseWriter, req *http.Request) {
		calls++
		if calls > 1 {
			rw.WriteError(http.StatusServiceUnavailable, errors.New("not ready"))
			return
		}
		rw.WriteHeader(http.StatusOK)
	})

	rw := httptest.NewRecorder()
	m.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "http://localhost/ready", nil))
	require.Equal(t, http.StatusOK, rw.Code)
	rw = httptest.NewRecorder()
	m.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "http://localhost/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rw.Code)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], `"msg"="request failed"`)
	require.Contains(t, msgs[0], `"route"="/ready"`)
	require.Contains(t, msgs[0], `"status"=503`)
}
