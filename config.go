package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

type fileConfig struct {
	Concurrency    *int    `toml:"concurrency"`
	CacheBackend   *string `toml:"cache_backend"`
	CachePath      *string `toml:"cache_path"`
	RedisURL       *string `toml:"redis_url"`
	CacheNamespace *string `toml:"cache_namespace"`
	CacheVersion   *int    `toml:"cache_version"`
	CacheTTL       *string `toml:"cache_ttl"`
	IPFSAPI        *string `toml:"ipfs_api"`
	GeoIPEndpoint  *string `toml:"geoip_endpoint"`
	LookupTimeout  *string `toml:"lookup_timeout"`
	PollInterval   *string `toml:"poll_interval"`
	Addr           *string `toml:"addr"`
}

// loadConfigFile overwrites the fields of args that are set in the TOML file
// at path. Unknown keys are rejected.
func loadConfigFile(fs afero.Fs, path string, args *RunCmd) error {
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	cfg := fileConfig{}
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	err = dec.Decode(&cfg)
	if err != nil {
		return fmt.Errorf("could not decode config file %s: %w", path, err)
	}

	setValue(cfg.Concurrency, &args.Concurrency)
	setValue(cfg.CacheBackend, &args.CacheBackend)
	setValue(cfg.CachePath, &args.CachePath)
	setValue(cfg.RedisURL, &args.RedisURL)
	setValue(cfg.CacheNamespace, &args.CacheNamespace)
	setValue(cfg.CacheVersion, &args.CacheVersion)
	setValue(cfg.IPFSAPI, &args.IPFSAPI)
	setValue(cfg.GeoIPEndpoint, &args.GeoIPEndpoint)
	setValue(cfg.Addr, &args.Addr)
	errs := []error{
		setDuration("cache_ttl", cfg.CacheTTL, &args.CacheTTL),
		setDuration("lookup_timeout", cfg.LookupTimeout, &args.LookupTimeout),
		setDuration("poll_interval", cfg.PollInterval, &args.PollInterval),
	}
	return errors.Join(errs...)
}

func setValue[T any](v *T, dst *T) {
	if v == nil {
		return
	}
	*dst = *v
}

func setDuration(key string, v *string, dst *time.Duration) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
