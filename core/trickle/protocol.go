// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package trickle

import (
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	HeaderSeq           = "Lp-Trickle-Seq"
	HeaderClosed        = "Lp-Trickle-Closed"
	HeaderLatest        = "Lp-Trickle-Latest"
	HeaderExpectContent = "Expect-Content"

	// StatusSequenceNonexistent is returned by relay on GET of segment that doesn't exist.
	StatusSequenceNonexistent = 470

	// LatestSeq asks relay for the leading edge of stream.
	LatestSeq = -1
)

// SegmentURL returns address of seq'th segment of stream.
func SegmentURL(base string, seq int) string {
	return strings.TrimSuffix(base, "/") + "/" + strconv.Itoa(seq)
}

// ParseSeq returns value of sequence header, or false if header is missing or malformed.
func ParseSeq(h http.Header) (int, bool) {
	return parseIntHeader(h, HeaderSeq)
}

// ParseLatest returns value of latest sequence header.
func ParseLatest(h http.Header) (int, bool) {
	return parseIntHeader(h, HeaderLatest)
}

// IsClosed checks that relay marked stream as closed.
func IsClosed(h http.Header) bool {
	return h.Get(HeaderClosed) != ""
}

func parseIntHeader(h http.Header, key string) (int, bool) {
	v := h.Get(key)
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

const maxErrorBodySize = 4 * 1024

// readErrorBody reads and closes response body for error message.
func readErrorBody(res *http.Response) string {
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
	return strings.TrimSpace(string(body))
}

func newStatusError(req *http.Request, res *http.Response) *StatusError {
	return &StatusError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: res.StatusCode,
		Body:       readErrorBody(res),
	}
}
