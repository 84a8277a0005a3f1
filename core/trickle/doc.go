// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package trickle transports live stream over plain HTTP as sequence of
// numbered segments. Each segment is one chunked request to relay:
//
//	POST   {stream}        create stream
//	POST   {stream}/{seq}  publish segment seq
//	GET    {stream}/{seq}  subscribe to segment seq, -1 is the latest
//	DELETE {stream}        close stream
//
// Publisher and Subscriber keep one connection for the next segment
// opened in advance, so a new segment starts without connection setup delay.
package trickle
