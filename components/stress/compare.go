// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package stress

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/yandex/trickle/core"
)

// Entry is the last sample reported for segment ID.
type Entry struct {
	Time   time.Time
	SHA256 string
}

// ReadSamples reads JSON lines samples. Empty lines are skipped.
func ReadSamples(r io.Reader) (map[string]Entry, error) {
	entries := map[string]Entry{}
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		data := scanner.Bytes()
		if len(strings.TrimSpace(string(data))) == 0 {
			continue
		}
		var s Sample
		if err := jsoniter.ConfigFastest.Unmarshal(data, &s); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if _, _, err := ParseSegmentID(s.ID); err != nil {
			return nil, errors.WithMessagef(err, "line %d", line)
		}
		entries[s.ID] = Entry{Time: s.Time, SHA256: s.SHA256}
	}
	return entries, errors.WithStack(scanner.Err())
}

func readSource(src core.DataSource) (map[string]Entry, error) {
	rc, err := src.OpenSource()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ReadSamples(rc)
}

// Stats of delivery delays in milliseconds.
type Stats struct {
	Count  int
	Mean   float64
	Median float64
	P90    float64
	P99    float64
}

// Summarize sorts data and returns its stats.
func Summarize(data []float64) Stats {
	n := len(data)
	if n == 0 {
		return Stats{}
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	slices.Sort(data)
	st := Stats{Count: n, Mean: sum / float64(n)}
	if n%2 == 1 {
		st.Median = data[n/2]
	} else {
		st.Median = (data[n/2-1] + data[n/2]) / 2
	}
	st.P90 = data[percentileIndex(n, 0.9)]
	st.P99 = data[percentileIndex(n, 0.99)]
	return st
}

// percentileIndex is nearest-rank index, clamped to data bounds.
func percentileIndex(n int, p float64) int {
	i := int(float64(n)*p+0.5) - 1
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

type Mismatch struct {
	Seq        string
	Subscriber string
	Publisher  string
}

type StreamReport struct {
	Idx string
	Stats
	Mismatches []Mismatch
}

type Report struct {
	// Missing are IDs of segments that were published, but not received.
	Missing []string
	Streams []StreamReport
}

// Compare matches received segments to published ones.
// Delay is time from publish finish to receive finish, so it is positive normally.
// Segments with different hashes don't contribute to delay stats.
func Compare(subscriber, publisher map[string]Entry) Report {
	var report Report
	deltas := map[string][]float64{}
	mismatches := map[string][]Mismatch{}
	for id, pub := range publisher {
		sub, ok := subscriber[id]
		if !ok {
			report.Missing = append(report.Missing, id)
			continue
		}
		idx, seq, _ := ParseSegmentID(id)
		if _, ok := deltas[idx]; !ok {
			deltas[idx] = nil
		}
		if sub.SHA256 != pub.SHA256 {
			mismatches[idx] = append(mismatches[idx], Mismatch{Seq: seq, Subscriber: sub.SHA256, Publisher: pub.SHA256})
			continue
		}
		deltas[idx] = append(deltas[idx], float64(sub.Time.Sub(pub.Time))/float64(time.Millisecond))
	}
	slices.Sort(report.Missing)

	idxs := maps.Keys(deltas)
	slices.Sort(idxs)
	for _, idx := range idxs {
		sr := StreamReport{Idx: idx, Stats: Summarize(deltas[idx])}
		bySeq := map[string]Mismatch{}
		for _, m := range mismatches[idx] {
			bySeq[m.Seq] = m
		}
		seqs := maps.Keys(bySeq)
		slices.Sort(seqs)
		for _, seq := range seqs {
			sr.Mismatches = append(sr.Mismatches, bySeq[seq])
		}
		report.Streams = append(report.Streams, sr)
	}
	return report
}

// CompareSources reads subscriber and publisher samples and compares them.
func CompareSources(subscriber, publisher core.DataSource) (Report, error) {
	sub, err := readSource(subscriber)
	if err != nil {
		return Report{}, errors.WithMessage(err, "subscriber samples read failed")
	}
	pub, err := readSource(publisher)
	if err != nil {
		return Report{}, errors.WithMessage(err, "publisher samples read failed")
	}
	return Compare(sub, pub), nil
}

// Print writes report in human readable form.
func (r Report) Print(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Entries in publisher logs but not in subscriber logs: %d\n", len(r.Missing))
	if len(r.Missing) > 0 {
		fmt.Fprintf(bw, "  %s\n", strings.Join(r.Missing, ", "))
	}
	fmt.Fprintln(bw)
	for _, s := range r.Streams {
		fmt.Fprintf(bw, "idx %s: count=%d, mean=%.3f ms, median=%.3f ms, p90=%.3f ms, p99=%.3f ms\n",
			s.Idx, s.Count, s.Mean, s.Median, s.P90, s.P99)
		if len(s.Mismatches) > 0 {
			fmt.Fprintln(bw, "Mismatched SHAs:")
			for _, m := range s.Mismatches {
				fmt.Fprintf(bw, "  seq %s: subscriber=%s, publisher=%s\n", m.Seq, m.Subscriber, m.Publisher)
			}
		}
		fmt.Fprintln(bw)
	}
	return errors.WithStack(bw.Flush())
}
