package peers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/Masterminds/semver/v3"
	"github.com/go-logr/logr"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/ipfs-shipyard/peer-locations/internal/option"
	"github.com/ipfs-shipyard/peer-locations/pkg/httpx"
	"github.com/ipfs-shipyard/peer-locations/pkg/locations"
)

const DefaultMinVersion = "0.4.0"

type IPFSConfig struct {
	Client     *http.Client
	MinVersion *semver.Version
}

type IPFSOption = option.Option[IPFSConfig]

func WithHTTPClient(client *http.Client) IPFSOption {
	return func(cfg *IPFSConfig) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.Client = client
		return nil
	}
}

// WithMinVersion sets the lowest node version considered ready.
func WithMinVersion(v string) IPFSOption {
	return func(cfg *IPFSConfig) error {
		minVersion, err := semver.NewVersion(v)
		if err != nil {
			return fmt.Errorf("invalid minimum version %q: %w", v, err)
		}
		cfg.MinVersion = minVersion
		return nil
	}
}

var _ Source = &IPFS{}

// IPFS reads connected peers from the RPC API of an IPFS node.
type IPFS struct {
	client     *http.Client
	api        *url.URL
	minVersion *semver.Version
}

func NewIPFS(api string, opts ...IPFSOption) (*IPFS, error) {
	cfg := IPFSConfig{
		MinVersion: semver.MustParse(DefaultMinVersion),
	}
	err := option.Apply(&cfg, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		cfg.Client = httpx.BaseClient()
	}
	u, err := url.Parse(api)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ipfs api %q must use http or https", api)
	}
	return &IPFS{
		client:     cfg.Client,
		api:        u,
		minVersion: cfg.MinVersion,
	}, nil
}

type versionResponse struct {
	Version string `json:"Version"`
}

// Ready returns true when the node answers and runs at least the minimum version.
func (i *IPFS) Ready(ctx context.Context) (bool, error) {
	resp := versionResponse{}
	err := i.call(ctx, "version", &resp)
	if err != nil {
		return false, err
	}
	v, err := semver.NewVersion(resp.Version)
	if err != nil {
		return false, fmt.Errorf("could not parse node version %q: %w", resp.Version, err)
	}
	// Development builds carry a prerelease suffix but are as new as their release.
	core, err := v.SetPrerelease("")
	if err != nil {
		return false, err
	}
	if core.LessThan(i.minVersion) {
		logr.FromContextOrDiscard(ctx).Info("node version is below minimum", "version", v.String(), "minimum", i.minVersion.String())
		return false, nil
	}
	return true, nil
}

type swarmPeersResponse struct {
	Peers []struct {
		Addr string `json:"Addr"`
		Peer string `json:"Peer"`
	} `json:"Peers"`
}

// Peers lists connected peers. Entries with an invalid peer id or address are
// skipped.
func (i *IPFS) Peers(ctx context.Context) ([]locations.Peer, error) {
	log := logr.FromContextOrDiscard(ctx)
	resp := swarmPeersResponse{}
	err := i.call(ctx, "swarm/peers", &resp)
	if err != nil {
		return nil, err
	}
	peers := make([]locations.Peer, 0, len(resp.Peers))
	for _, p := range resp.Peers {
		id, err := peer.Decode(p.Peer)
		if err != nil {
			log.Error(err, "skipping peer with invalid id", "peer", p.Peer)
			continue
		}
		addr, err := ma.NewMultiaddr(p.Addr)
		if err != nil {
			log.Error(err, "skipping peer with invalid address", "peer", p.Peer, "addr", p.Addr)
			continue
		}
		peers = append(peers, locations.Peer{ID: id.String(), Addr: addr.String()})
	}
	return peers, nil
}

func (i *IPFS) call(ctx context.Context, cmd string, v any) error {
	u := i.api.JoinPath("api", "v0", cmd)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set(httpx.HeaderAccept, httpx.ContentTypeJSON)
	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}
	err = httpx.CheckResponseStatus(resp, http.StatusOK)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	err = json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(v)
	if err != nil {
		return fmt.Errorf("could not decode %s response: %w", cmd, err)
	}
	return nil
}
