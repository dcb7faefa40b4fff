package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/ipfs-shipyard/peer-locations/pkg/httpx"
	"github.com/ipfs-shipyard/peer-locations/pkg/locations"
)

//go:embed templates/*
var templatesFS embed.FS

// State is the read side of the resolution driver.
type State interface {
	Snapshot() locations.Store
	Peers() []locations.Peer
	Connected() bool
}

type Web struct {
	state State
	tmpls *template.Template
}

func NewWeb(state State) (*Web, error) {
	if state == nil {
		return nil, errors.New("state cannot be nil")
	}
	tmpls, err := template.New("").ParseFS(templatesFS, "templates/*")
	if err != nil {
		return nil, err
	}
	return &Web{
		state: state,
		tmpls: tmpls,
	}, nil
}

func (w *Web) Handler(log logr.Logger) http.Handler {
	m := httpx.NewServeMux(log.WithName("web"))
	m.Handle("GET /{$}", w.indexHandler)
	m.HandleQuiet("GET /healthz", w.healthzHandler)
	m.Handle("GET /api/v1/locations", w.locationsHandler)
	m.Handle("GET /api/v1/locations/raw", w.rawHandler)
	m.Handle("GET /api/v1/queue", w.queueHandler)
	m.Handle("GET /api/v1/peers", w.peersHandler)
	m.Handle("GET /api/v1/coordinates", w.coordinatesHandler)
	return m
}

func (w *Web) indexHandler(rw httpx.ResponseWriter, req *http.Request) {
	s := w.state.Snapshot()
	locs := locations.Locations(s)
	data := struct {
		Rows      []locations.PeerLocation
		Located   int
		Queuing   int
		Resolving int
		Connected bool
	}{
		Rows:      locations.SwarmRows(w.state.Peers(), locs),
		Located:   len(locs),
		Queuing:   len(s.QueuingPeers()),
		Resolving: len(s.ResolvingPeers()),
		Connected: w.state.Connected(),
	}
	rw.Header().Set(httpx.HeaderContentType, httpx.ContentTypeHTML)
	err := w.tmpls.ExecuteTemplate(rw, "index.html", data)
	if err != nil {
		rw.WriteError(http.StatusInternalServerError, err)
		return
	}
}

func (w *Web) healthzHandler(rw httpx.ResponseWriter, req *http.Request) {
	if !w.state.Connected() {
		rw.WriteError(http.StatusServiceUnavailable, errors.New("node is not connected"))
		return
	}
	rw.WriteHeader(http.StatusOK)
}

func (w *Web) locationsHandler(rw httpx.ResponseWriter, req *http.Request) {
	rw.WriteJSON(http.StatusOK, locations.Locations(w.state.Snapshot()))
}

func (w *Web) rawHandler(rw httpx.ResponseWriter, req *http.Request) {
	rw.WriteJSON(http.StatusOK, w.state.Snapshot().Raw())
}

type queueResponse struct {
	Queuing   []string `json:"queuing"`
	Resolving []string `json:"resolving"`
}

func (w *Web) queueHandler(rw httpx.ResponseWriter, req *http.Request) {
	s := w.state.Snapshot()
	rw.WriteJSON(http.StatusOK, queueResponse{
		Queuing:   nonNil(s.QueuingPeers()),
		Resolving: nonNil(s.ResolvingPeers()),
	})
}

func (w *Web) peersHandler(rw httpx.ResponseWriter, req *http.Request) {
	rows := locations.SwarmRows(w.state.Peers(), locations.Locations(w.state.Snapshot()))
	rw.WriteJSON(http.StatusOK, rows)
}

func (w *Web) coordinatesHandler(rw httpx.ResponseWriter, req *http.Request) {
	rows := locations.SwarmRows(w.state.Peers(), locations.Locations(w.state.Snapshot()))
	rw.WriteJSON(http.StatusOK, locations.Coordinates(rows))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
