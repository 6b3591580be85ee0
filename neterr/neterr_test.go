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

package neterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCodes(t *testing.T) {
	cases := map[Kind]int{
		Success:     0,
		BadArgument: 1,
		Incorrect:   2,
		NotExist:    4,
		OutOfMemory: 5,
		Fatal:       6,
		Socket:      7,
		Timeout:     8,
	}
	for kind, want := range cases {
		require.Equal(t, want, kind.ExitCode(), kind.String())
	}
}

func TestKindOfUnwraps(t *testing.T) {
	base := New("socket", Socket, errors.New("econnreset"))
	wrapped := fmt.Errorf("preparing fd: %w", base)
	require.Equal(t, Socket, KindOf(wrapped))
}

func TestKindOfUntaxonomized(t *testing.T) {
	require.Equal(t, Fatal, KindOf(errors.New("bare error")))
}
