// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package stress loads relay with many concurrent streams and verifies
// that subscribers receive exactly what publishers sent, and how fast.
package stress

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Sample is reported for every published or received segment.
type Sample struct {
	Time   time.Time `json:"time"`
	ID     string    `json:"id"`
	SHA256 string    `json:"sha256"`
	Bytes  int64     `json:"bytes"`
}

// SegmentID identifies segment of one of stress streams: "<stream index>-<seq>".
func SegmentID(idx, seq int) string {
	return fmt.Sprintf("%02d-%04d", idx, seq)
}

// ParseSegmentID returns stream index and sequence number part of id.
func ParseSegmentID(id string) (idx string, seq string, err error) {
	idx, seq, ok := strings.Cut(id, "-")
	if !ok {
		return "", "", errors.Errorf("invalid segment id %q", id)
	}
	if _, err := strconv.Atoi(idx); err != nil {
		return "", "", errors.Errorf("invalid stream index in segment id %q", id)
	}
	if _, err := strconv.Atoi(seq); err != nil {
		return "", "", errors.Errorf("invalid sequence number in segment id %q", id)
	}
	return idx, seq, nil
}

// StreamURL returns URL of idx stream.
func StreamURL(base, stream string, idx int) string {
	return fmt.Sprintf("%s/%s_%d", strings.TrimSuffix(base, "/"), stream, idx)
}
