// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package netutil

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"
)

// Dialer is what http.Transport needs to connect to relay.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

var _ Dialer = &net.Dialer{}

type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// NewDNSCachingDialer returns dialer that remembers remote address of the
// first successful connection to addr and dials it directly next times.
// Many sessions to one relay don't resolve relay host on every segment.
// Cached address is forgotten when dial to it fails.
func NewDNSCachingDialer(dialer Dialer, cache DNSCache) DialerFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if resolved, ok := cache.Get(addr); ok {
			conn, err := dialer.DialContext(ctx, network, resolved)
			if err != nil {
				cache.Forget(addr)
			}
			return conn, err
		}
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		remoteAddr, ok := conn.RemoteAddr().(*net.TCPAddr)
		if !ok {
			return conn, nil
		}
		_, port, err := net.SplitHostPort(addr)
		if err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "invalid address, but successful dial")
		}
		cache.Add(addr, net.JoinHostPort(remoteAddr.IP.String(), port))
		return conn, nil
	}
}

var DefaultDNSCache = &SimpleDNSCache{}

// WarmDNSCache connects to addr, so following dials with cache c don't resolve it.
func WarmDNSCache(ctx context.Context, c DNSCache, addr string) error {
	var d net.Dialer
	conn, err := NewDNSCachingDialer(&d, c).DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "%s dial failed", addr)
	}
	return conn.Close()
}

type DNSCache interface {
	Get(addr string) (string, bool)
	Add(addr, resolved string)
	Forget(addr string)
}

type SimpleDNSCache struct {
	rw         sync.RWMutex
	hostToAddr map[string]string
}

func (c *SimpleDNSCache) Get(addr string) (resolved string, ok bool) {
	c.rw.RLock()
	defer c.rw.RUnlock()
	resolved, ok = c.hostToAddr[addr]
	return
}

func (c *SimpleDNSCache) Add(addr, resolved string) {
	c.rw.Lock()
	defer c.rw.Unlock()
	if c.hostToAddr == nil {
		c.hostToAddr = make(map[string]string)
	}
	c.hostToAddr[addr] = resolved
}

func (c *SimpleDNSCache) Forget(addr string) {
	c.rw.Lock()
	defer c.rw.Unlock()
	delete(c.hostToAddr, addr)
}
