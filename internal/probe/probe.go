// Package probe verifies a running tunnel end to end: first that the
// local SOCKS inbound accepts connections, then that a request through
// it reaches the internet.
package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

const probeURL = "http://www.gstatic.com/generate_204"

// Result holds the outcome of a tunnel probe.
type Result struct {
	InboundOK  bool          // SOCKS inbound accepted a TCP connection
	UpstreamOK bool          // request through the proxy got a valid response
	RTT        time.Duration // round trip of the upstream request
	Err        error         // first failure, nil when both checks pass
}

// Prober checks tunnel health through the local SOCKS inbound.
type Prober struct {
	socksPort int
	client    *http.Client
}

// New creates a prober against the SOCKS inbound on socksPort.
func New(socksPort int) *Prober {
	proxyURL, _ := url.Parse(fmt.Sprintf("socks5://127.0.0.1:%d", socksPort))
	return &Prober{
		socksPort: socksPort,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyURL(proxyURL),
				DisableKeepAlives:     true,
				ResponseHeaderTimeout: 10 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Run executes both checks. The inbound check failing short-circuits the
// upstream check since it could only fail the same way.
func (p *Prober) Run(ctx context.Context) Result {
	addr := fmt.Sprintf("127.0.0.1:%d", p.socksPort)
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return Result{Err: fmt.Errorf("SOCKS inbound %s unreachable: %w", addr, err)}
	}
	conn.Close()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return Result{InboundOK: true, Err: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{InboundOK: true, Err: fmt.Errorf("request through proxy failed: %w", err)}
	}
	resp.Body.Close()
	rtt := time.Since(start)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return Result{
			InboundOK: true,
			RTT:       rtt,
			Err:       fmt.Errorf("unexpected status code %d through proxy", resp.StatusCode),
		}
	}

	return Result{InboundOK: true, UpstreamOK: true, RTT: rtt}
}
