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

func TestCorrelatorFirstContactWins(t *testing.T) {
	c := newCorrelator(3)
	require.Equal(t, 0, c.indexFor("10.0.0.1:5000"))
	require.Equal(t, 1, c.indexFor("10.0.0.2:5000"))
	require.Equal(t, 0, c.indexFor("10.0.0.1:5000"), "a peer's index must not change after first contact")
	require.Equal(t, 2, c.indexFor("10.0.0.3:5000"))
}

func TestCorrelatorOverflowCollapsesOntoLastSlot(t *testing.T) {
	c := newCorrelator(2)
	require.Equal(t, 0, c.indexFor("a"))
	require.Equal(t, 1, c.indexFor("b"))
	require.Equal(t, 1, c.indexFor("c"), "a peer beyond the configured fan-out must not panic or grow the index")
	require.Equal(t, 2, c.Len())
}
