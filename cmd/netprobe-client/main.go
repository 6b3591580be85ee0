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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebook/netprobe/addr"
	"github.com/facebook/netprobe/client"
	"github.com/facebook/netprobe/clock"
	"github.com/facebook/netprobe/config"
	"github.com/facebook/netprobe/iomux"
	"github.com/facebook/netprobe/stats"
	"github.com/facebook/netprobe/wire"
	log "github.com/sirupsen/logrus"
)

func main() {
	var (
		target          = flag.String("target", "", "feedfile-grammar destination, e.g. U:127.0.0.1:5005")
		mode            = flag.String("mode", "underload", "underload, pingpong, or playback")
		muxKind         = flag.String("mux", "select", "io multiplexer: blocking, select, poll, epoll, extreme")
		maxPayload      = flag.Int("maxpayload", 1500, "maximum message size in bytes, including header")
		msgSize         = flag.Int("msgsize", 64, "message size to send, including header")
		burstSize       = flag.Int("burstsize", 1, "messages sent per pacing cycle")
		mps             = flag.Float64("mps", 100, "messages per second; 0 means as fast as possible")
		replyEvery      = flag.Uint64("replyevery", 1, "allocate a timing slot every N-th sequence")
		maxSeq          = flag.Uint64("maxseq", 1_000_000, "largest sequence number this run will allocate")
		numServers      = flag.Int("numservers", 1, "expected number of distinct replying servers")
		rttFilterLen    = flag.Int("rttfilterlen", 59, "sliding-window length, in samples, for the smoothed RTT report")
		warmupMsec      = flag.Int64("warmupmsec", 0, "warm-up window in milliseconds")
		cooldownMsec    = flag.Int64("cooldownmsec", 0, "cool-down window in milliseconds, requires -testdurationsec")
		testDurationSec = flag.Int64("testdurationsec", 0, "time-based termination; mutually exclusive with -numpackets")
		numPackets      = flag.Uint64("numpackets", 0, "number-based termination; mutually exclusive with -testdurationsec")
		dummyMps        = flag.Float64("dummymps", 0, "dummy-send filler rate; 0 disables it")
		monitorPort     = flag.Int("monitoringport", 8889, "port to serve JSON stats on")
		logLevel        = flag.String("loglevel", "info", "debug, info, warning, error")
		configFile      = flag.String("config", "", "optional YAML overlay file")
	)
	flag.Parse()

	setLogLevel(*logLevel)

	if *target == "" {
		log.Fatal("-target is required")
	}
	entry, err := addr.ParseFeedEntry(*target)
	if err != nil {
		log.Fatalf("invalid -target: %v", err)
	}

	cfg := client.Config{
		Mode:             parseMode(*mode),
		Targets:          []addr.FeedEntry{entry},
		Mux:              parseMuxKind(*muxKind),
		MaxPayload:       *maxPayload,
		MsgSize:          *msgSize,
		BurstSize:        *burstSize,
		Mps:              *mps,
		ReplyEvery:       *replyEvery,
		MaxSeq:           *maxSeq,
		NumServers:       *numServers,
		RTTFilterLength:  *rttFilterLen,
		WarmupDuration:   clock.FromNsec(*warmupMsec * int64(time.Millisecond)),
		CooldownDuration: clock.FromNsec(*cooldownMsec * int64(time.Millisecond)),
		TestDuration:     clock.FromSeconds(float64(*testDurationSec)),
		NumberOfPackets:  *numPackets,
		DummyMps:         *dummyMps,
	}

	if *configFile != "" {
		overlay, err := config.ReadFileOverlay(*configFile)
		if err != nil {
			log.Fatalf("reading config file: %v", err)
		}
		applyClientOverlay(&cfg, overlay)
	}

	wire.Init(*maxPayload, *maxSeq)

	core := client.NewCore(cfg)
	jsonServer := &stats.JSONServer{Counters: core.Counters}
	go jsonServer.Start(*monitorPort)

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Info("shutting down")
		core.Stop()
		cancel()
	}()

	if err := core.Run(ctx); err != nil {
		log.Fatalf("client exited: %v", err)
	}

	report(core)
}

func report(core *client.Core) {
	for _, ix := range core.RTT.Servers() {
		count, mean, stddev, ok := core.RTT.Snapshot(ix)
		if !ok {
			continue
		}
		filter := core.RTTFilter(ix)
		fmt.Printf("server %d: n=%d mean_rtt_ns=%.0f stddev_rtt_ns=%.0f windowed_mean_rtt_ns=%.0f windowed_median_rtt_ns=%.0f duplicates=%d out_of_order=%d dropped=%d\n",
			ix, count, mean, stddev, filter.Mean(), filter.Median(),
			core.Times().Duplicates(ix), core.Times().OutOfOrder(ix), core.Times().Dropped(ix))
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("unrecognized log level: %v", level)
	}
}

func parseMode(s string) client.Mode {
	switch s {
	case "underload":
		return client.ModeUnderLoad
	case "pingpong":
		return client.ModePingPong
	case "playback":
		return client.ModePlayback
	default:
		log.Fatalf("unrecognized -mode %q", s)
		return client.ModeUnderLoad
	}
}

func parseMuxKind(s string) iomux.Kind {
	switch s {
	case "blocking":
		return iomux.KindBlocking
	case "select":
		return iomux.KindSelect
	case "poll":
		return iomux.KindPoll
	case "epoll":
		return iomux.KindEpoll
	case "extreme":
		return iomux.KindExtreme
	default:
		log.Fatalf("unrecognized -mux %q", s)
		return iomux.KindSelect
	}
}

func applyClientOverlay(cfg *client.Config, o *config.FileOverlay) {
	if o.BurstSize > 0 {
		cfg.BurstSize = o.BurstSize
	}
	if o.Mps > 0 {
		cfg.Mps = o.Mps
	}
	if o.ReplyEveryN > 0 {
		cfg.ReplyEvery = o.ReplyEveryN
	}
	if o.NumServers > 0 {
		cfg.NumServers = o.NumServers
	}
	if o.RTTFilterLength > 0 {
		cfg.RTTFilterLength = o.RTTFilterLength
	}
	if o.WarmupUsec > 0 {
		cfg.WarmupDuration = clock.FromUsec(o.WarmupUsec)
	}
	if o.CooldownUsec > 0 {
		cfg.CooldownDuration = clock.FromUsec(o.CooldownUsec)
	}
	if o.TestDurationUsec > 0 {
		cfg.TestDuration = clock.FromUsec(o.TestDurationUsec)
	}
	if o.NumberOfPackets > 0 {
		cfg.NumberOfPackets = o.NumberOfPackets
	}
	if o.DummyMps > 0 {
		cfg.DummyMps = o.DummyMps
	}
	if o.MaxPayload > 0 {
		cfg.MaxPayload = o.MaxPayload
	}
	if o.MsgSize > 0 {
		cfg.MsgSize = o.MsgSize
	}
}
