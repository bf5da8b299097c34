package xray

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tunveil/internal/core/types"
)

// MetricsClient reads traffic counters from the core's diagnostics inbound.
//
// The metrics handler serves expvar JSON at /debug/vars; the counters for
// the SOCKS inbound live under stats.inbound.socks. Speeds are derived from
// deltas between successive fetches.
type MetricsClient struct {
	url  string
	http *http.Client

	lastUplink   uint64
	lastDownlink uint64
	lastFetchAt  time.Time

	uplinkSpeed   uint64
	downlinkSpeed uint64
}

// NewMetricsClient creates a client for the diagnostics endpoint on the
// given local port.
func NewMetricsClient(metricsPort int) *MetricsClient {
	return &MetricsClient{
		url: fmt.Sprintf("http://127.0.0.1:%d/debug/vars", metricsPort),
		http: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

// debugVars mirrors the slice of the expvar document we consume.
type debugVars struct {
	Stats struct {
		Inbound map[string]struct {
			Uplink   uint64 `json:"uplink"`
			Downlink uint64 `json:"downlink"`
		} `json:"inbound"`
	} `json:"stats"`
}

// Fetch queries the diagnostics endpoint and returns current totals and
// speeds. On transport errors the previous totals are returned unchanged
// so a transient hiccup does not zero the display.
func (m *MetricsClient) Fetch(ctx context.Context) (*types.TrafficStats, error) {
	stats := &types.TrafficStats{
		Uplink:        m.lastUplink,
		Downlink:      m.lastDownlink,
		UplinkSpeed:   m.uplinkSpeed,
		DownlinkSpeed: m.downlinkSpeed,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return stats, err
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return stats, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("diagnostics endpoint returned %s", resp.Status)
	}

	var vars debugVars
	if err := json.NewDecoder(resp.Body).Decode(&vars); err != nil {
		return stats, fmt.Errorf("failed to decode diagnostics payload: %w", err)
	}

	socks, ok := vars.Stats.Inbound[TagSocksIn]
	if !ok {
		return stats, nil
	}

	now := time.Now()
	if elapsed := now.Sub(m.lastFetchAt).Seconds(); elapsed > 0 && !m.lastFetchAt.IsZero() {
		if socks.Uplink >= m.lastUplink {
			m.uplinkSpeed = uint64(float64(socks.Uplink-m.lastUplink) / elapsed)
		}
		if socks.Downlink >= m.lastDownlink {
			m.downlinkSpeed = uint64(float64(socks.Downlink-m.lastDownlink) / elapsed)
		}
	}

	m.lastUplink = socks.Uplink
	m.lastDownlink = socks.Downlink
	m.lastFetchAt = now

	stats.Uplink = socks.Uplink
	stats.Downlink = socks.Downlink
	stats.UplinkSpeed = m.uplinkSpeed
	stats.DownlinkSpeed = m.downlinkSpeed

	return stats, nil
}
