package httpx

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// unmatchedRoute is the metrics label of requests no route matched. Using the
// raw path would let clients create unbounded label values.
const unmatchedRoute = "unmatched"

type HandlerFunc func(rw ResponseWriter, req *http.Request)

// ServeMux routes requests and records an access log line and request metrics
// per route. Requests without a route get a JSON 404.
type ServeMux struct {
	mux *http.ServeMux
	log logr.Logger
}

func NewServeMux(log logr.Logger) *ServeMux {
	s := &ServeMux{
		mux: http.NewServeMux(),
		log: log,
	}
	s.handle("/", unmatchedRoute, true, func(rw ResponseWriter, req *http.Request) {
		rw.WriteJSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no route for %s %s", req.Method, req.URL.Path)})
	})
	return s
}

func (s *ServeMux) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	s.mux.ServeHTTP(rw, req)
}

// Handle registers handler for pattern and logs every request to it.
func (s *ServeMux) Handle(pattern string, handler HandlerFunc) {
	s.handle(pattern, routeLabel(pattern), false, handler)
}

// HandleQuiet registers handler for pattern without logging successful
// requests. Used for health checks polled continuously.
func (s *ServeMux) HandleQuiet(pattern string, handler HandlerFunc) {
	s.handle(pattern, routeLabel(pattern), true, handler)
}

func (s *ServeMux) handle(pattern, route string, quiet bool, handler HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, req *http.Request) {
		rw := &response{ResponseWriter: w, method: req.Method}
		inflight := HttpRequestsInflight.WithLabelValues(route)
		inflight.Inc()
		start := time.Now()
		handler(rw, req)
		duration := time.Since(start)
		inflight.Dec()

		code := strconv.Itoa(rw.Status())
		HttpRequestDurHistogram.WithLabelValues(route, req.Method, code).Observe(duration.Seconds())
		HttpResponseSizeHistogram.WithLabelValues(route, req.Method, code).Observe(float64(rw.Size()))
		s.logRequest(route, quiet, rw, req, duration)
	})
}

func (s *ServeMux) logRequest(route string, quiet bool, rw ResponseWriter, req *http.Request, duration time.Duration) {
	status := rw.Status()
	kvs := []any{
		"route", route,
		"method", req.Method,
		"path", req.URL.Path,
		"status", status,
		"duration", duration.String(),
		"bytes", rw.Size(),
		"client", clientIP(req),
	}
	switch {
	case status >= http.StatusInternalServerError:
		s.log.Error(rw.Error(), "request failed", kvs...)
	case status >= http.StatusBadRequest:
		if rw.Error() != nil {
			kvs = append(kvs, "err", rw.Error().Error())
		}
		s.log.V(2).Info("request rejected", kvs...)
	case !quiet:
		s.log.V(4).Info("request served", kvs...)
	}
}

// clientIP prefers the first X-Forwarded-For entry over the remote address.
func clientIP(req *http.Request) string {
	forwardedFor := req.Header.Get(HeaderXForwardedFor)
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return strings.TrimSpace(first)
	}
	h, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return ""
	}
	return h
}

// routeLabel turns a mux pattern into a metrics label. The method is dropped,
// exact matches lose their {$} marker and subtree patterns end in *.
func routeLabel(pattern string) string {
	_, path, _ := strings.Cut(pattern, "/")
	path = "/" + path
	if exact, ok := strings.CutSuffix(path, "{$}"); ok {
		return exact
	}
	if strings.HasSuffix(path, "/") {
		return path + "*"
	}
	return path
}
