// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package trickle

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/http2"

	"github.com/yandex/trickle/lib/netutil"
)

// Client is relay connection pool. May be shared between sessions.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
	CloseIdleConnections()
}

type ClientConfig struct {
	Dialer    DialerConfig    `config:"dial"`
	Transport TransportConfig `config:",squash"`
	// HTTP2 enables HTTP/2 for https relays.
	HTTP2 bool `config:"http2"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Dialer:    DefaultDialerConfig(),
		Transport: DefaultTransportConfig(),
	}
}

// DialerConfig can be mapped on net.Dialer.
type DialerConfig struct {
	DNSCache bool `config:"dns-cache"`

	Timeout       time.Duration `config:"timeout"`
	FallbackDelay time.Duration `config:"fallback-delay"`
	KeepAlive     time.Duration `config:"keep-alive"`
}

func DefaultDialerConfig() DialerConfig {
	return DialerConfig{
		DNSCache:  true,
		Timeout:   3 * time.Second,
		KeepAlive: 120 * time.Second,
	}
}

func NewDialer(conf DialerConfig) netutil.Dialer {
	d := &net.Dialer{
		Timeout:       conf.Timeout,
		FallbackDelay: conf.FallbackDelay,
		KeepAlive:     conf.KeepAlive,
	}
	if !conf.DNSCache {
		return d
	}
	return netutil.NewDNSCachingDialer(d, netutil.DefaultDNSCache)
}

// TransportConfig can be mapped on http.Transport.
// No response header timeout by default: GET of future segment waits until it is published.
type TransportConfig struct {
	TLSHandshakeTimeout   time.Duration `config:"tls-handshake-timeout"`
	DisableKeepAlives     bool          `config:"disable-keep-alives"`
	MaxIdleConns          int           `config:"max-idle-conns"`
	MaxIdleConnsPerHost   int           `config:"max-idle-conns-per-host"`
	IdleConnTimeout       time.Duration `config:"idle-conn-timeout"`
	ResponseHeaderTimeout time.Duration `config:"response-header-timeout"`
}

func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        0, // No limit.
		MaxIdleConnsPerHost: 8, // Publisher keeps up to 2 uploads and 1 preconnect.
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
}

func NewTransport(conf TransportConfig, dialer netutil.Dialer) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   conf.TLSHandshakeTimeout,
		DisableKeepAlives:     conf.DisableKeepAlives,
		DisableCompression:    true, // Segments are media, compression is useless.
		MaxIdleConns:          conf.MaxIdleConns,
		MaxIdleConnsPerHost:   conf.MaxIdleConnsPerHost,
		IdleConnTimeout:       conf.IdleConnTimeout,
		ResponseHeaderTimeout: conf.ResponseHeaderTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,                 // Relays often use self-signed certs.
			NextProtos:         []string{"http/1.1"}, // Use HTTP/2 explicitly, if needed.
		},
	}
}

// NewClient returns client that doesn't follow redirects.
func NewClient(conf ClientConfig) (Client, error) {
	tr := NewTransport(conf.Transport, NewDialer(conf.Dialer))
	if conf.HTTP2 {
		err := http2.ConfigureTransport(tr)
		if err != nil {
			return nil, errors.Wrap(err, "HTTP/2 transport configure fail")
		}
		tr.TLSClientConfig.NextProtos = []string{http2.NextProtoTLS, "http/1.1"}
	}
	return transportClient{tr}, nil
}

type transportClient struct{ *http.Transport }

func (c transportClient) Do(req *http.Request) (*http.Response, error) {
	return c.Transport.RoundTrip(req)
}
