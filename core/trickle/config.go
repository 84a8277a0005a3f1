// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package trickle

import (
	"github.com/c2h5oh/datasize"
)

const (
	DefaultChunkQueueSize      = 1
	DefaultChunkSize           = 32 * datasize.KB
	DefaultMaxPreconnectErrors = 5
	DefaultMimeType            = "video/mp2t"
)

type PublisherConfig struct {
	URL      string `config:"url" validate:"required,stream-url"`
	MimeType string `config:"mime-type" validate:"required"`
	// ChunkQueueSize is number of written chunks that may wait for upload.
	// Zero means that write blocks until upload takes chunk.
	ChunkQueueSize int          `config:"chunk-queue-size" validate:"min=0"`
	Client         ClientConfig `config:"client"`
}

func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		MimeType:       DefaultMimeType,
		ChunkQueueSize: DefaultChunkQueueSize,
		Client:         DefaultClientConfig(),
	}
}

type SubscriberConfig struct {
	URL string `config:"url" validate:"required,stream-url"`
	// StartSeq is first segment to fetch. LatestSeq means leading edge.
	StartSeq       int               `config:"start-seq" validate:"min=-1"`
	ChunkQueueSize int               `config:"chunk-queue-size" validate:"min=0"`
	ChunkSize      datasize.ByteSize `config:"chunk-size" validate:"min-size=1B"`
	// MaxPreconnectErrors is number of consecutive failed connects after which Next gives up.
	MaxPreconnectErrors int          `config:"max-preconnect-errors" validate:"min=1"`
	Client              ClientConfig `config:"client"`
}

func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		StartSeq:            LatestSeq,
		ChunkQueueSize:      DefaultChunkQueueSize,
		ChunkSize:           DefaultChunkSize,
		MaxPreconnectErrors: DefaultMaxPreconnectErrors,
		Client:              DefaultClientConfig(),
	}
}
