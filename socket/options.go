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

package socket

// Options carries the prepare-time socket knobs from the external interface
// contract. Every knob except the multicast ones is applied best-effort at
// Register time; a failing knob fails the whole registration with a
// Socket-kind error, since a socket whose requested behavior could not be
// honored is unsafe to use for a measurement run. MulticastTTL,
// MulticastRXIface and MulticastTXIface are carried here but Register does
// not apply them.
type Options struct {
	NonBlocking bool
	ReuseAddr   bool

	SendBufferBytes int // 0 means leave at OS default
	RecvBufferBytes int

	TCPNoDelay bool
	TOS        int // IP_TOS / IPV6_TCLASS; 0 means unset
	LLSPollUsec int // SO_BUSY_POLL, the "low-latency-socket poll usec" knob

	MulticastTTL int // 0 means unset
	MulticastRXIface string
	MulticastTXIface string
}
