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

package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRTTStatsSnapshotMissingServer(t *testing.T) {
	r := NewRTTStats()
	_, _, _, ok := r.Snapshot(0)
	require.False(t, ok)
	require.Empty(t, r.Servers())
}

func TestRTTStatsMeanAcrossSamples(t *testing.T) {
	r := NewRTTStats()
	r.Add(0, 100)
	r.Add(0, 200)
	r.Add(0, 300)

	count, mean, stddev, ok := r.Snapshot(0)
	require.True(t, ok)
	require.EqualValues(t, 3, count)
	require.InDelta(t, 200, mean, 0.001)
	require.Greater(t, stddev, 0.0)
}

func TestRTTStatsKeepsServersIndependent(t *testing.T) {
	r := NewRTTStats()
	r.Add(0, 100)
	r.Add(1, 900)

	_, mean0, _, ok0 := r.Snapshot(0)
	_, mean1, _, ok1 := r.Snapshot(1)
	require.True(t, ok0)
	require.True(t, ok1)
	require.InDelta(t, 100, mean0, 0.001)
	require.InDelta(t, 900, mean1, 0.001)
	require.ElementsMatch(t, []int{0, 1}, r.Servers())
}
