/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package packettimes

import (
	"container/ring"
	"math"
	"sort"
)

// PathDelayFilter is a sliding window over recent round-trip samples (in
// nanoseconds), used by the client to smooth the raw per-sequence deltas
// PacketTimes records before they're reported alongside the running
// welford mean/stddev. One filter is kept per server_ix, fed from
// client.Core.onReply as each reply's RTT is computed; it is not required
// by the core recording contract, only by the smoothed-reporting path.
type PathDelayFilter struct {
	size        int
	currentSize int
	sum         float64
	samples     *ring.Ring
}

// NewPathDelayFilter builds a filter over the last size samples.
func NewPathDelayFilter(size int) *PathDelayFilter {
	if size < 1 {
		size = 1
	}
	w := &PathDelayFilter{
		size:    size,
		samples: ring.New(size),
	}
	for i := 0; i < w.size; i++ {
		w.samples.Value = math.NaN()
		w.samples = w.samples.Next()
	}
	return w
}

// Add records a new sample, evicting the oldest one once the window is full.
func (w *PathDelayFilter) Add(sampleNsec float64) {
	w.samples = w.samples.Next()
	v := w.samples.Value.(float64)
	if !math.IsNaN(v) {
		w.sum -= v
	}
	if w.currentSize < w.size {
		w.currentSize++
	}
	w.samples.Value = sampleNsec
	w.sum += sampleNsec
}

// Last returns the most recently added sample.
func (w *PathDelayFilter) Last() float64 {
	return w.samples.Value.(float64)
}

func (w *PathDelayFilter) allSamples() []float64 {
	s := make([]float64, 0, w.size)
	r := w.samples
	for j := 0; j < w.size; j++ {
		v := r.Value.(float64)
		if !math.IsNaN(v) {
			s = append(s, v)
		}
		r = r.Prev()
	}
	return s
}

func meanOf(data []float64) float64 {
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// Median returns the median of samples currently in the window, or NaN if
// empty.
func (w *PathDelayFilter) Median() float64 {
	c := w.allSamples()
	sort.Float64s(c)
	l := len(c)
	switch {
	case l == 0:
		return math.NaN()
	case l%2 == 0:
		return meanOf(c[l/2-1 : l/2+1])
	default:
		return c[l/2]
	}
}

// Mean returns the arithmetic mean of samples currently in the window.
func (w *PathDelayFilter) Mean() float64 {
	return w.sum / float64(w.currentSize)
}

// Full reports whether the window has accumulated size samples yet.
func (w *PathDelayFilter) Full() bool {
	return w.currentSize == w.size
}
