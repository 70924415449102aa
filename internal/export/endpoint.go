package export

import (
	"fmt"
	"net/url"
	"strings"
)

// tracePath is the OTLP/HTTP traces ingestion path appended when the
// configured endpoint carries no explicit path.
const tracePath = "/v1/traces"

// processEndpoint normalizes a configured endpoint into host:port form and
// resolves the effective TLS mode. An explicit scheme wins over the config
// flag: https forces secure, http forces insecure. Bare host:port endpoints
// keep the configured flag.
func processEndpoint(endpoint string, insecure bool) (string, bool, error) {
	if endpoint == "" {
		return "", insecure, nil
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, insecure, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	switch u.Scheme {
	case "https":
		insecure = false
	case "http":
		insecure = true
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}

	host := u.Host
	if u.Port() == "" {
		if insecure {
			host += ":80"
		} else {
			host += ":443"
		}
	}
	return host, insecure, nil
}

// traceURL builds the full HTTP ingestion URL for a configured endpoint.
// A path present in the endpoint is preserved; otherwise the standard
// traces path is appended.
func traceURL(endpoint string, insecure bool) (string, error) {
	path := tracePath
	if strings.Contains(endpoint, "://") {
		if u, err := url.Parse(endpoint); err == nil && u.Path != "" && u.Path != "/" {
			path = u.Path
		}
	}

	host, insecure, err := processEndpoint(endpoint, insecure)
	if err != nil {
		return "", err
	}
	if host == "" {
		return "", fmt.Errorf("endpoint is required")
	}

	scheme := "https"
	if insecure {
		scheme = "http"
	}
	return scheme + "://" + host + path, nil
}
