package peers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"
	tlog "github.com/go-logr/logr/testing"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-shipyard/peer-locations/pkg/httpx"
	"github.com/ipfs-shipyard/peer-locations/pkg/locations"
)

func newNode(t *testing.T, version string, peersBody string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set(httpx.HeaderContentType, httpx.ContentTypeJSON)
		switch req.URL.Path {
		case "/api/v0/version":
			//nolint: errcheck // Ignore
			rw.Write([]byte(`{"Version":"` + version + `","Commit":"","Repo":"16"}`))
		case "/api/v0/swarm/peers":
			//nolint: errcheck // Ignore
			rw.Write([]byte(peersBody))
		default:
			rw.WriteHeader(http.StatusNotFound)
			//nolint: errcheck // Ignore
			rw.Write([]byte(`{"Message":"command not found","Code":0,"Type":"error"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIPFSPeers(t *testing.T) {
	t.Parallel()

	body := `{"Peers":[
		{"Addr":"/ip4/93.184.216.34/tcp/4001","Peer":"QmbLHAnMoJPWSCR5Zhtx6BHJX9KiKNN6tpvbUcqanj75Nb","Latency":"","Muxer":"","Direction":0},
		{"Addr":"/ip4/84.208.20.110/udp/4001/quic-v1","Peer":"QmNnooDu7bfjPFoTZYxMNLWUQJyrVwtbZg5gBMjTezGAJN"},
		{"Addr":"/ip4/84.208.20.111/tcp/4001","Peer":"not-a-peer-id"},
		{"Addr":"garbage","Peer":"QmQCU2EcMqAqQPR2i9bChDtGNJchTbq5TbXJJ16u19uLTa"}
	]}`
	srv := newNode(t, "0.29.0", body)
	ipfs, err := NewIPFS(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	ctx := logr.NewContext(t.Context(), tlog.NewTestLogger(t))
	peers, err := ipfs.Peers(ctx)
	require.NoError(t, err)
	require.Equal(t, []locations.Peer{
		{ID: "QmbLHAnMoJPWSCR5Zhtx6BHJX9KiKNN6tpvbUcqanj75Nb", Addr: "/ip4/93.184.216.34/tcp/4001"},
		{ID: "QmNnooDu7bfjPFoTZYxMNLWUQJyrVwtbZg5gBMjTezGAJN", Addr: "/ip4/84.208.20.110/udp/4001/quic-v1"},
	}, peers)
}

func TestIPFSReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		version       string
		minVersion    string
		expectedError string
		expected      bool
	}{
		{
			name:     "release above minimum",
			version:  "0.29.0",
			expected: true,
		},
		{
			name:     "development build",
			version:  "0.30.0-dev",
			expected: true,
		},
		{
			name:       "below minimum",
			version:    "0.3.11",
			minVersion: "0.4.0",
			expected:   false,
		},
		{
			name:          "invalid version",
			version:       "latest",
			expectedError: `could not parse node version "latest": Invalid Semantic Version`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newNode(t, tt.version, `{"Peers":[]}`)
			opts := []IPFSOption{WithHTTPClient(srv.Client())}
			if tt.minVersion != "" {
				opts = append(opts, WithMinVersion(tt.minVersion))
			}
			ipfs, err := NewIPFS(srv.URL, opts...)
			require.NoError(t, err)
			ready, err := ipfs.Ready(t.Context())
			if tt.expectedError != "" {
				require.EqualError(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, ready)
		})
	}
}

func TestIPFSUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set(httpx.HeaderContentType, httpx.ContentTypeText)
		rw.WriteHeader(http.StatusServiceUnavailable)
		//nolint: errcheck // Ignore
		rw.Write([]byte("node is starting"))
	}))
	t.Cleanup(srv.Close)

	ipfs, err := NewIPFS(srv.URL + "/")
	require.NoError(t, err)
	_, err = ipfs.Peers(t.Context())
	require.EqualError(t, err, "expected one of the following statuses [200 OK], but received 503 Service Unavailable: node is starting")
	ready, err := ipfs.Ready(t.Context())
	require.Error(t, err)
	require.False(t, ready)
}

func TestNewIPFS(t *testing.T) {
	t.Parallel()

	_, err := NewIPFS("unix:///var/run/ipfs.sock")
	require.EqualError(t, err, `ipfs api "unix:///var/run/ipfs.sock" must use http or https`)
	_, err = NewIPFS("http://127.0.0.1:5001", WithMinVersion("x.y"))
	require.ErrorContains(t, err, `invalid minimum version "x.y"`)
}
