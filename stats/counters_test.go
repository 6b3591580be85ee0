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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestSnapshotIsIndependentCopy(t *testing.T) {
	c := NewCounters()
	c.SetDuplicates(0, 3)
	dup, _, _ := c.Snapshot()
	dup[0] = 99
	dup2, _, _ := c.Snapshot()
	require.EqualValues(t, 3, dup2[0])
}

func TestMergeSumsWorkerCounters(t *testing.T) {
	shared := NewCounters()
	w1 := NewCounters()
	w1.SetDuplicates(0, 2)
	w1.SetDropped(0, 1)
	w2 := NewCounters()
	w2.SetDuplicates(0, 5)
	w2.SetDropped(0, 4)

	w1.ReceiveCount = 10
	w1.SkipCount = 1
	w2.ReceiveCount = 20
	w2.SkipCount = 2

	shared.Merge(w1)
	shared.Merge(w2)

	dup, _, dropped := shared.Snapshot()
	require.EqualValues(t, 7, dup[0])
	require.EqualValues(t, 5, dropped[0])
	require.EqualValues(t, 30, shared.ReceiveCount)
	require.EqualValues(t, 3, shared.SkipCount)
}

func TestJSONServerToMap(t *testing.T) {
	c := NewCounters()
	c.ReceiveCount = 42
	c.SetOutOfOrder(1, 7)
	j := &JSONServer{Counters: c}
	m := j.toMap()
	require.EqualValues(t, 42, m["receive_count"])
	require.EqualValues(t, 7, m["out_of_order.server1"])
}

func TestPrometheusExporterCollect(t *testing.T) {
	c := NewCounters()
	c.SetDropped(0, 3)
	registry := prometheus.NewRegistry()
	e := NewPrometheusExporter(c, registry)
	e.Collect()

	mfs, err := registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}
