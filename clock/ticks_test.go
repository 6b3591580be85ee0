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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonotonicConversions(t *testing.T) {
	require.NoError(t, Init(Monotonic))
	d := FromSeconds(1.5)
	require.Equal(t, int64(1500*time.Millisecond), d.ToNsec())
	require.Equal(t, d, FromUsec(1500000))
}

func TestTicksAlgebra(t *testing.T) {
	require.NoError(t, Init(Monotonic))
	t0 := Now()
	d := FromSeconds(1)
	t1 := t0.Add(d)
	require.Equal(t, d, t1.Sub(t0))
	require.True(t, t1.After(t0))
	require.True(t, t0.Before(t1))

	doubled := d.Add(d)
	require.Equal(t, FromSeconds(2), doubled)
	require.Equal(t, d, doubled.DivInt(2))
	require.Equal(t, doubled, d.Scale(2))
}

func TestZeroSentinel(t *testing.T) {
	require.True(t, ZeroTime.IsZero())
	now := Now()
	require.False(t, now.IsZero())
}

func TestCounterCalibration(t *testing.T) {
	require.NoError(t, Init(Counter))
	defer func() { require.NoError(t, Init(Monotonic)) }()

	require.Equal(t, Counter, ActiveBackend())
	start := Now()
	time.Sleep(5 * time.Millisecond)
	elapsed := Now().Sub(start)
	// Calibration is approximate; just check we're in the right ballpark and
	// never go backwards.
	require.Greater(t, elapsed.ToNsec(), int64(0))
	require.Less(t, elapsed.ToNsec(), int64(500*time.Millisecond))
}

func TestNowWaitFreeReentrant(t *testing.T) {
	require.NoError(t, Init(Monotonic))
	done := make(chan TicksTime, 8)
	for i := 0; i < 8; i++ {
		go func() { done <- Now() }()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
