// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package trickle

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DoesNotFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer server.Close()

	client, err := NewClient(DefaultClientConfig())
	require.NoError(t, err)
	defer client.CloseIdleConnections()
	req, err := http.NewRequest(http.MethodGet, server.URL+"/s1/0", nil)
	require.NoError(t, err)
	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)
}

func TestClient_HTTP2(t *testing.T) {
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Proto)
	}))
	server.EnableHTTP2 = true
	server.StartTLS()
	defer server.Close()

	conf := DefaultClientConfig()
	conf.HTTP2 = true
	client, err := NewClient(conf)
	require.NoError(t, err)
	defer client.CloseIdleConnections()
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/2.0", string(body))
}

func TestSegmentURL(t *testing.T) {
	assert.Equal(t, "http://relay/s1/3", SegmentURL("http://relay/s1", 3))
	assert.Equal(t, "http://relay/s1/-1", SegmentURL("http://relay/s1/", LatestSeq))
}

func TestParseHeaders(t *testing.T) {
	h := http.Header{}
	_, ok := ParseSeq(h)
	assert.False(t, ok)
	h.Set(HeaderSeq, "42")
	seq, ok := ParseSeq(h)
	assert.True(t, ok)
	assert.Equal(t, 42, seq)
	h.Set(HeaderLatest, "garbage")
	_, ok = ParseLatest(h)
	assert.False(t, ok)
	assert.False(t, IsClosed(h))
	h.Set(HeaderClosed, "terminated")
	assert.True(t, IsClosed(h))
}
