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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadFileOverlayParsesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	body := `
workers: 4
max_payload: 2000
msg_size: 128
burst_size: 10
mps: 5000
reply_every: 2
num_servers: 3
warmup_usec: 500000
cooldown_usec: 250000
test_duration_usec: 10000000
number_of_packets: 1000
dummy_mps: 1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	o, err := ReadFileOverlay(path)
	require.NoError(t, err)
	require.Equal(t, 4, o.Workers)
	require.Equal(t, 2000, o.MaxPayload)
	require.Equal(t, 128, o.MsgSize)
	require.Equal(t, 10, o.BurstSize)
	require.InDelta(t, 5000, o.Mps, 0.001)
	require.EqualValues(t, 2, o.ReplyEveryN)
	require.Equal(t, 3, o.NumServers)
	require.EqualValues(t, 500000, o.WarmupUsec)
	require.EqualValues(t, 250000, o.CooldownUsec)
	require.EqualValues(t, 10000000, o.TestDurationUsec)
	require.EqualValues(t, 1000, o.NumberOfPackets)
	require.InDelta(t, 1, o.DummyMps, 0.001)
}

func TestReadFileOverlayMissingFile(t *testing.T) {
	_, err := ReadFileOverlay(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestReadFileOverlayDefaultsToZeroValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 2\n"), 0o644))

	o, err := ReadFileOverlay(path)
	require.NoError(t, err)
	require.Equal(t, 2, o.Workers)
	require.Zero(t, o.MaxPayload)
	require.Zero(t, o.Mps)
}
