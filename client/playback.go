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
	"fmt"

	"github.com/facebook/netprobe/clock"
)

// ScheduleStep is one entry of a playback schedule: how long after the
// previous step's send to wait, and the message size to send at that point.
type ScheduleStep struct {
	DelaySincePrev clock.TicksDuration
	Size           int
}

// LoadSchedule parses a playback schedule, one "delay_usec size" pair per
// entry, rejecting non-monotonic timestamps or sizes outside
// [minPayload, maxPayload], per the Design Notes' "playback schedule
// loading" contract. Callers pre-split the raw lines; parsing the file
// itself (and any comment/header conventions) is external-collaborator
// territory, like the rest of the CLI/feedfile surface.
func LoadSchedule(entries []ScheduleEntry, minPayload, maxPayload int) ([]ScheduleStep, error) {
	steps := make([]ScheduleStep, 0, len(entries))
	var lastUsec int64
	for i, e := range entries {
		if e.TimestampUsec < lastUsec {
			return nil, fmt.Errorf("client: playback schedule entry %d: non-monotonic timestamp %d < %d", i, e.TimestampUsec, lastUsec)
		}
		if e.Size < minPayload || e.Size > maxPayload {
			return nil, fmt.Errorf("client: playback schedule entry %d: size %d outside [%d, %d]", i, e.Size, minPayload, maxPayload)
		}
		delay := e.TimestampUsec - lastUsec
		steps = append(steps, ScheduleStep{
			DelaySincePrev: clock.FromUsec(delay),
			Size:           e.Size,
		})
		lastUsec = e.TimestampUsec
	}
	return steps, nil
}

// ScheduleEntry is one raw (timestamp, size) pair as read from a playback
// file before delays-since-previous have been derived.
type ScheduleEntry struct {
	TimestampUsec int64
	Size          int
}
