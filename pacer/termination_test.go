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

package pacer

import (
	"testing"
	"time"

	"github.com/facebook/netprobe/clock"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = clock.Init(clock.Monotonic)
}

func TestTimeBasedTermination(t *testing.T) {
	var exit int32
	term := NewTimeBased(clock.FromNsec(int64(20*time.Millisecond)), &exit)
	require.False(t, term.ShouldStop())
	time.Sleep(40 * time.Millisecond)
	require.True(t, term.ShouldStop())
}

func TestCountBasedTermination(t *testing.T) {
	var exit int32
	var sent uint64
	term := NewCountBased(5, &sent, &exit)
	require.False(t, term.ShouldStop())
	sent = 5
	require.True(t, term.ShouldStop())
}

func TestExitFlagStopsEitherMode(t *testing.T) {
	var exit int32
	var sent uint64
	term := NewCountBased(1000, &sent, &exit)
	require.False(t, term.ShouldStop())
	SetExit(&exit)
	require.True(t, term.ShouldStop())
}
