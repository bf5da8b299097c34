// Package sharelink converts user-supplied share links into proxy outbound
// descriptors. The Registry implements the conversion collaborator the
// configuration builder consumes: output is always the
// {success, data: {outbounds}} envelope, with structural failures reported
// through the envelope rather than an error.
package sharelink

import (
	"fmt"
	"strings"

	"tunveil/internal/core/xray"
)

// Converter converts one protocol's share-link URI into an outbound.
type Converter interface {
	// Protocol returns the URI scheme the converter handles.
	Protocol() string

	// Convert converts a URI into an outbound descriptor.
	Convert(uri string) (*xray.Outbound, error)
}

// Registry manages protocol converters
type Registry struct {
	converters map[string]Converter
}

// NewRegistry creates a registry with the built-in converters registered.
func NewRegistry() *Registry {
	r := &Registry{
		converters: make(map[string]Converter),
	}

	r.Register(&VLESSConverter{})
	r.Register(&VMessConverter{})
	r.Register(&TrojanConverter{})
	r.Register(&ShadowsocksConverter{})

	return r
}

// Register registers a converter under its protocol scheme.
func (r *Registry) Register(c Converter) {
	r.converters[strings.ToLower(c.Protocol())] = c
}

// Convert implements the share-link-to-outbound conversion contract.
// A link whose scheme or payload cannot be handled yields an error; a
// handled link always yields a well-formed envelope.
func (r *Registry) Convert(link string) (*xray.ParseResult, error) {
	link = strings.TrimSpace(link)

	idx := strings.Index(link, "://")
	if idx == -1 {
		return nil, fmt.Errorf("invalid URI: missing protocol scheme")
	}

	protocol := strings.ToLower(link[:idx])
	switch protocol {
	case "ss":
		protocol = "shadowsocks"
	}

	converter, ok := r.converters[protocol]
	if !ok {
		return nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}

	outbound, err := converter.Convert(link)
	if err != nil {
		return nil, err
	}

	return &xray.ParseResult{
		Success: true,
		Data: &xray.ParseData{
			Outbounds: []xray.Outbound{*outbound},
		},
	}, nil
}

// Protocols returns the registered protocol schemes.
func (r *Registry) Protocols() []string {
	protocols := make([]string, 0, len(r.converters))
	for protocol := range r.converters {
		protocols = append(protocols, protocol)
	}
	return protocols
}

// muxFor returns multiplexing settings for transports that benefit from it.
// Mux must not be combined with XTLS vision flows.
func muxFor(network, flow string) *xray.MuxConfig {
	if flow != "" {
		return nil
	}
	switch network {
	case "tcp", "ws", "grpc", "http", "h2", "":
		return &xray.MuxConfig{
			Enabled:     true,
			Concurrency: 8,
		}
	}
	return nil
}
