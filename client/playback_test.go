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

package client

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadScheduleComputesDelaysSincePrevious(t *testing.T) {
	entries := []ScheduleEntry{
		{TimestampUsec: 0, Size: 64},
		{TimestampUsec: 1000, Size: 128},
		{TimestampUsec: 2500, Size: 64},
	}
	steps, err := LoadSchedule(entries, 14, 1500)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	require.EqualValues(t, 0, steps[0].DelaySincePrev.ToNsec())
	require.EqualValues(t, 1_000_000, steps[1].DelaySincePrev.ToNsec())
	require.EqualValues(t, 1_500_000, steps[2].DelaySincePrev.ToNsec())
}

func TestLoadScheduleRejectsNonMonotonicTimestamps(t *testing.T) {
	entries := []ScheduleEntry{
		{TimestampUsec: 1000, Size: 64},
		{TimestampUsec: 500, Size: 64},
	}
	_, err := LoadSchedule(entries, 14, 1500)
	require.Error(t, err)
}

func TestLoadScheduleRejectsSizeOutOfRange(t *testing.T) {
	entries := []ScheduleEntry{
		{TimestampUsec: 0, Size: 4},
	}
	_, err := LoadSchedule(entries, 14, 1500)
	require.Error(t, err)
}
