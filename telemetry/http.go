package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewTracedHTTPClient returns an HTTP client whose requests carry W3C
// trace context headers and are recorded as client spans. Passing nil
// wraps a copy of http.DefaultClient.
func NewTracedHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}

	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &http.Client{
		Transport:     otelhttp.NewTransport(transport),
		Timeout:       base.Timeout,
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
	}
}
