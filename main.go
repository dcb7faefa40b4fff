package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/ipfs-shipyard/peer-locations/internal/version"
	"github.com/ipfs-shipyard/peer-locations/pkg/cache"
	"github.com/ipfs-shipyard/peer-locations/pkg/geoip"
	"github.com/ipfs-shipyard/peer-locations/pkg/httpx"
	"github.com/ipfs-shipyard/peer-locations/pkg/locations"
	"github.com/ipfs-shipyard/peer-locations/pkg/metrics"
	"github.com/ipfs-shipyard/peer-locations/pkg/peers"
	"github.com/ipfs-shipyard/peer-locations/pkg/state"
	"github.com/ipfs-shipyard/peer-locations/pkg/web"
)

type CacheConfig struct {
	CacheBackend   string        `arg:"--cache-backend,env:CACHE_BACKEND" default:"bolt" help:"Location cache backend, one of bolt, redis or memory."`
	CachePath      string        `arg:"--cache-path,env:CACHE_PATH" default:"/var/lib/peer-locations/cache.db" help:"Path of the bolt cache database."`
	RedisURL       string        `arg:"--redis-url,env:REDIS_URL" default:"redis://localhost:6379/0" help:"URL of the redis cache."`
	CacheNamespace string        `arg:"--cache-namespace,env:CACHE_NAMESPACE" default:"peerLocations" help:"Namespace of cache entries."`
	CacheVersion   int           `arg:"--cache-version,env:CACHE_VERSION" default:"1" help:"Version of cache entries, bumping it hides all older entries."`
	CacheTTL       time.Duration `arg:"--cache-ttl,env:CACHE_TTL" default:"168h" help:"Time a cached location stays valid."`
}

type LookupConfig struct {
	GeoIPEndpoint string        `arg:"--geoip-endpoint,env:GEOIP_ENDPOINT" default:"https://ipfs.io/api/v0/geoip" help:"Endpoint of the geolocation service, the address is appended as the last path segment."`
	LookupTimeout time.Duration `arg:"--lookup-timeout,env:LOOKUP_TIMEOUT" default:"10s" help:"Max duration of a single location lookup."`
}

type RunCmd struct {
	CacheConfig
	LookupConfig
	ConfigPath   string        `arg:"--config-path,env:CONFIG_PATH" help:"Optional TOML file, values in the file take precedence over flags."`
	IPFSAPI      string        `arg:"--ipfs-api,env:IPFS_API" default:"http://127.0.0.1:5001" help:"Address of the IPFS node RPC API."`
	Addr         string        `arg:"--addr,env:ADDR" default:":8080" help:"Address to serve the api, metrics and pprof on."`
	Concurrency  int           `arg:"--concurrency,env:CONCURRENCY" default:"10" help:"Max number of peers resolved at the same time."`
	PollInterval time.Duration `arg:"--poll-interval,env:POLL_INTERVAL" default:"5s" help:"Interval between reading connected peers from the node."`
}

type ResolveCmd struct {
	CacheConfig
	LookupConfig
	PeerID string `arg:"positional,required" help:"Peer id to resolve."`
	Addr   string `arg:"positional,required" help:"Multiaddr of the peer."`
}

type VersionCmd struct{}

type Arguments struct {
	Run      *RunCmd     `arg:"subcommand:run"`
	Resolve  *ResolveCmd `arg:"subcommand:resolve"`
	Version  *VersionCmd `arg:"subcommand:version"`
	LogLevel slog.Level  `arg:"--log-level,env:LOG_LEVEL" default:"INFO" help:"Minimum log level to output. Value should be DEBUG, INFO, WARN, or ERROR."`
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	args := &Arguments{}
	arg.MustParse(args)

	opts := slog.HandlerOptions{
		AddSource: true,
		Level:     args.LogLevel,
	}
	handler := slog.NewJSONHandler(os.Stderr, &opts)
	log := logr.FromSlogHandler(handler)
	ctx := logr.NewContext(context.Background(), log)

	err := run(ctx, args)
	if err != nil {
		log.Error(err, "run exit with error")
		return 1
	}
	log.Info("gracefully shutdown")
	return 0
}

func run(ctx context.Context, args *Arguments) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	switch {
	case args.Run != nil:
		return runCommand(ctx, afero.NewOsFs(), args.Run)
	case args.Resolve != nil:
		return resolveCommand(ctx, os.Stdout, args.Resolve)
	case args.Version != nil:
		return writeJSON(os.Stdout, version.Load())
	default:
		return errors.New("unknown subcommand")
	}
}

func runCommand(ctx context.Context, fs afero.Fs, args *RunCmd) error {
	log := logr.FromContextOrDiscard(ctx)

	if args.ConfigPath != "" {
		err := loadConfigFile(fs, args.ConfigPath, args)
		if err != nil {
			return err
		}
	}

	c, closeCache, err := newCache(ctx, args.CacheConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Error(err, "could not close cache")
		}
	}()
	worker, err := newWorker(c, args.LookupConfig)
	if err != nil {
		return err
	}
	driver, err := state.NewDriver(worker, state.WithConcurrency(args.Concurrency))
	if err != nil {
		return err
	}
	source, err := peers.NewIPFS(args.IPFSAPI)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	// Resolution
	g.Go(func() error {
		return driver.Run(ctx)
	})
	g.Go(func() error {
		err := state.Track(ctx, source, driver, state.WithInterval(args.PollInterval))
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// Api, metrics and pprof
	metrics.Register()
	httpx.RegisterMetrics(metrics.DefaultRegisterer)
	w, err := web.NewWeb(driver)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/", w.Handler(log))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.DefaultGatherer, promhttp.HandlerOpts{}))
	mux.Handle("/debug/pprof/", http.HandlerFunc(pprof.Index))
	mux.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
	mux.Handle("/debug/pprof/trace", http.HandlerFunc(pprof.Trace))
	mux.Handle("/debug/pprof/symbol", http.HandlerFunc(pprof.Symbol))
	mux.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	mux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	srv := &http.Server{
		Addr:    args.Addr,
		Handler: mux,
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("running peer locations", "version", version.Load().Version, "addr", args.Addr, "ipfs", args.IPFSAPI, "cache", args.CacheBackend, "concurrency", args.Concurrency)
	err = g.Wait()
	if err != nil {
		return err
	}
	return nil
}

func resolveCommand(ctx context.Context, out io.Writer, args *ResolveCmd) error {
	log := logr.FromContextOrDiscard(ctx)

	c, closeCache, err := newCache(ctx, args.CacheConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Error(err, "could not close cache")
		}
	}()
	worker, err := newWorker(c, args.LookupConfig)
	if err != nil {
		return err
	}
	res, err := worker.Resolve(ctx, args.PeerID, args.Addr)
	if err != nil {
		return err
	}
	return writeJSON(out, struct {
		Source   locations.Source `json:"source"`
		Location geoip.Location   `json:"location"`
	}{
		Source:   res.Source,
		Location: res.Location,
	})
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newWorker(c cache.Cache, cfg LookupConfig) (*locations.Worker, error) {
	lookup, err := geoip.NewHTTP(cfg.GeoIPEndpoint, geoip.WithUserAgent(version.Load().UserAgent()))
	if err != nil {
		return nil, err
	}
	return locations.NewWorker(c, lookup, locations.WithLookupTimeout(cfg.LookupTimeout))
}

func newCache(ctx context.Context, cfg CacheConfig) (cache.Cache, func() error, error) { //nolint: ireturn // Backend is picked at runtime.
	opts := []cache.Option{
		cache.WithNamespace(cfg.CacheNamespace),
		cache.WithVersion(cfg.CacheVersion),
		cache.WithTTL(cfg.CacheTTL),
	}
	switch cfg.CacheBackend {
	case "bolt":
		b, err := cache.NewBolt(ctx, cfg.CachePath, opts...)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case "redis":
		r, err := cache.NewRedisFromURL(ctx, cfg.RedisURL, opts...)
		if err != nil {
			return nil, nil, err
		}
		logr.FromContextOrDiscard(ctx).Info("connected to redis cache", "namespace", cfg.CacheNamespace, "version", cfg.CacheVersion)
		return r, r.Close, nil
	case "memory":
		m, err := cache.NewMemory(opts...)
		if err != nil {
			return nil, nil, err
		}
		return m, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %s", cfg.CacheBackend)
	}
}
