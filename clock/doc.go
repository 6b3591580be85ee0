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

/*
Package clock provides the high-resolution time source used throughout a
benchmark run.

Two interchangeable back-ends are selectable once at process start:

  - Counter: a free-running hardware-style counter, calibrated against the
    OS monotonic clock at startup to derive ticks-per-second. Reads are
    wait-free and reentrant.
  - Monotonic: direct reads of CLOCK_MONOTONIC, returned already in
    nanoseconds.

TicksTime and TicksDuration keep "point in time" and "span of time"
statically separate so that nonsensical operations (adding two points,
dividing by a point) do not type-check.
*/
package clock
