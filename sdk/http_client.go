package interview

import (
	"net"
	"net/http"
	"time"
)

// newDefaultHTTPClient returns a client tuned for a single backend host.
// The request as a whole is bounded by the context deadline set in do.
func newDefaultHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     2 * time.Minute,
			TLSHandshakeTimeout: 10 * time.Second,
			// Review and summary generation can take a while server-side.
			ResponseHeaderTimeout: 90 * time.Second,
		},
	}
}
