package llm

import (
	"net"
	"net/http"
	"time"
)

// newServiceHTTPClient returns an HTTP client tuned for analysis traffic:
// few concurrent requests against one host, with completions that can run
// long on self-hosted backends. The overall timeout is a backstop against a
// hung server; per-request deadlines still come from the caller's context.
func newServiceHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   5 * time.Minute,
	}
}
