// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package stress

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/yandex/trickle/core/clientpool"
	"github.com/yandex/trickle/core/trickle"
	"github.com/yandex/trickle/lib/netutil"
)

// CommonConfig is shared by stress publisher and subscriber.
type CommonConfig struct {
	URL    string `config:"url" validate:"required,stream-url"`
	Stream string `config:"stream" validate:"required"`
	Count  int    `config:"count" validate:"min=1"`
	// SharedClients is number of clients shared by all streams round-robin.
	// Zero means own client per stream.
	SharedClients int                  `config:"shared-clients" validate:"min=0"`
	Client        trickle.ClientConfig `config:"client"`
}

func DefaultCommonConfig() CommonConfig {
	return CommonConfig{
		URL:    "http://localhost:2939",
		Count:  1,
		Client: trickle.DefaultClientConfig(),
	}
}

// clients returns client for every stream. Returned func releases clients.
func (c CommonConfig) clients() (next func() trickle.Client, release func(), err error) {
	n := c.SharedClients
	if n == 0 {
		n = c.Count
	}
	pool, err := clientpool.New(n, func() (trickle.Client, error) {
		return trickle.NewClient(c.Client)
	})
	if err != nil {
		return nil, nil, err
	}
	return pool.Next, func() {
		pool.Each(func(c trickle.Client) { c.CloseIdleConnections() })
	}, nil
}

// warmUp resolves relay host before streams start, so they don't resolve it all at once.
func (c CommonConfig) warmUp(ctx context.Context, log *zap.Logger) {
	if !c.Client.Dialer.DNSCache {
		return
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return
	}
	host := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = u.Hostname() + ":" + port
	}
	if err := netutil.WarmDNSCache(ctx, netutil.DefaultDNSCache, host); err != nil {
		log.Warn("Relay address resolve failed", zap.String("host", host), zap.Error(err))
	}
}
