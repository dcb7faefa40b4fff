package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"

	"github.com/go-logr/logr"

	"github.com/ipfs-shipyard/peer-locations/internal/option"
	"github.com/ipfs-shipyard/peer-locations/pkg/httpx"
)

type HTTPConfig struct {
	Client    *http.Client
	UserAgent string
}

type HTTPOption = option.Option[HTTPConfig]

func WithHTTPClient(client *http.Client) HTTPOption {
	return func(cfg *HTTPConfig) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.Client = client
		return nil
	}
}

func WithUserAgent(userAgent string) HTTPOption {
	return func(cfg *HTTPConfig) error {
		cfg.UserAgent = userAgent
		return nil
	}
}

var _ Lookuper = &HTTP{}

// HTTP looks up locations from a JSON endpoint of the form GET <endpoint>/<ip>.
type HTTP struct {
	client    *http.Client
	endpoint  *url.URL
	userAgent string
}

func NewHTTP(endpoint string, opts ...HTTPOption) (*HTTP, error) {
	cfg := HTTPConfig{
		UserAgent: "peer-locations",
	}
	err := option.Apply(&cfg, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		cfg.Client = httpx.BaseClient()
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("geoip endpoint %q must use http or https", endpoint)
	}
	return &HTTP{
		client:    cfg.Client,
		endpoint:  u,
		userAgent: cfg.UserAgent,
	}, nil
}

func (h *HTTP) Lookup(ctx context.Context, ip netip.Addr) (Location, error) {
	if !ip.Is4() {
		return Location{}, fmt.Errorf("expected IPv4 address but got %s", ip)
	}
	u := h.endpoint.JoinPath(ip.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Location{}, err
	}
	req.Header.Set(httpx.HeaderAccept, httpx.ContentTypeJSON)
	req.Header.Set(httpx.HeaderUserAgent, h.userAgent)
	resp, err := h.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		httpx.DrainAndClose(resp.Body) //nolint: errcheck // Not found is the error that matters.
		return Location{}, fmt.Errorf("%w %s", ErrNotFound, ip)
	}
	err = httpx.CheckResponseStatus(resp, http.StatusOK)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	loc := Location{}
	err = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&loc)
	if err != nil {
		return Location{}, fmt.Errorf("could not decode location for %s: %w", ip, err)
	}
	if loc.IsZero() {
		return Location{}, fmt.Errorf("%w %s", ErrNotFound, ip)
	}
	logr.FromContextOrDiscard(ctx).V(4).Info("looked up location", "ip", ip.String(), "location", loc.String())
	return loc, nil
}
