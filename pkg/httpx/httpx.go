package httpx

import (
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

// MaxReadBytes limits how much of a response body is read when draining or
// reporting errors.
const MaxReadBytes = 512

// BaseClient returns an HTTP client with a bounded overall timeout.
func BaseClient() *http.Client {
	return &http.Client{
		Timeout:   10 * time.Second,
		Transport: BaseTransport(),
	}
}

// BaseTransport returns a transport with conservative dial and idle settings.
func BaseTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// DrainAndClose reads what is left of rc so the connection can be reused.
// More than MaxReadBytes remaining is reported as an error.
func DrainAndClose(rc io.ReadCloser) error {
	defer rc.Close()
	n, err := io.Copy(io.Discard, io.LimitReader(rc, MaxReadBytes+1))
	if err != nil {
		return err
	}
	if n > MaxReadBytes {
		return errors.New("reader has more data than max read bytes")
	}
	return nil
}
