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
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebook/netprobe/addr"
	"github.com/facebook/netprobe/config"
	"github.com/facebook/netprobe/iomux"
	"github.com/facebook/netprobe/server"
	"github.com/facebook/netprobe/stats"
	"github.com/facebook/netprobe/wire"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

func main() {
	var (
		listenAddr   = flag.String("addr", "0.0.0.0", "address to listen on")
		port         = flag.Int("port", 5005, "UDP/TCP port to listen on")
		proto        = flag.String("proto", "udp", "udp or tcp (with -unixpath: UNIX datagram or UNIX stream)")
		unixPath     = flag.String("unixpath", "", "UNIX-domain socket path (overrides addr/port when set)")
		workers      = flag.Int("workers", 1, "number of worker goroutines")
		maxPayload   = flag.Int("maxpayload", 1500, "maximum message size in bytes, including header")
		msgSize      = flag.Int("msgsize", 64, "agreed message size for this session")
		muxKind      = flag.String("mux", "select", "io multiplexer: blocking, select, poll, epoll, extreme")
		dontReply    = flag.Bool("dontreply", false, "receive and count messages but never answer")
		bridgeMode   = flag.Bool("bridge", false, "forward messages without clearing the CLIENT flag")
		gapDetection = flag.Bool("gapdetection", false, "track per-peer expected sequence and count gaps")
		mcGroup      = flag.String("mcgroup", "", "multicast group to join on the listening socket")
		mcIface      = flag.String("mciface", "", "interface to join the multicast group on")
		replyGroup   = flag.Bool("replytogroup", false, "reply to the multicast group instead of unicasting to the sender")
		monitorPort  = flag.Int("monitoringport", 8888, "port to serve JSON stats on")
		enableProm   = flag.Bool("prometheus", false, "also serve /metrics on monitoringport+1")
		logLevel     = flag.String("loglevel", "info", "debug, info, warning, error")
		configFile   = flag.String("config", "", "optional YAML overlay file")
	)
	flag.Parse()

	setLogLevel(*logLevel)

	cfg := server.Config{
		Workers:      *workers,
		MaxPayload:   *maxPayload,
		MsgSize:      *msgSize,
		Mux:          parseMuxKind(*muxKind),
		DontReply:    *dontReply,
		BridgeMode:   *bridgeMode,
		GapDetection: *gapDetection,
	}

	if *configFile != "" {
		overlay, err := config.ReadFileOverlay(*configFile)
		if err != nil {
			log.Fatalf("reading config file: %v", err)
		}
		applyServerOverlay(&cfg, overlay)
	}

	spec := server.ListenSpec{Type: addr.SockDatagram}
	if *proto == "tcp" {
		spec.Type = addr.SockStream
	}
	if *unixPath != "" {
		spec.Addr = addr.Address{Family: addr.FamilyUnix, Path: *unixPath}
	} else {
		ip, err := netip.ParseAddr(*listenAddr)
		if err != nil {
			log.Fatalf("invalid -addr %q: %v", *listenAddr, err)
		}
		family := addr.FamilyIPv4
		if ip.Is6() && !ip.Is4In6() {
			family = addr.FamilyIPv6
		}
		spec.Addr = addr.Address{Family: family, IP: ip, Port: *port}
	}
	if *mcGroup != "" {
		group, err := netip.ParseAddr(*mcGroup)
		if err != nil {
			log.Fatalf("invalid -mcgroup %q: %v", *mcGroup, err)
		}
		spec.Multicast = server.MulticastSpec{Group: group, RXIface: *mcIface, ReplyGroup: *replyGroup}
	}
	cfg.Listen = []server.ListenSpec{spec}

	wire.Init(*maxPayload, ^uint64(0))

	core := server.NewCore(cfg)
	jsonServer := &stats.JSONServer{Counters: core.Counters}
	go jsonServer.Start(*monitorPort)
	if *enableProm {
		registry := prometheus.NewRegistry()
		exporter := stats.NewPrometheusExporter(core.Counters, registry)
		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for range ticker.C {
				exporter.Collect()
			}
		}()
		go stats.ServeMetrics(fmt.Sprintf(":%d", *monitorPort+1), registry)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Info("shutting down")
		cancel()
	}()

	if err := core.Run(ctx); err != nil {
		log.Fatalf("server exited: %v", err)
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

func applyServerOverlay(cfg *server.Config, o *config.FileOverlay) {
	if o.Workers > 0 {
		cfg.Workers = o.Workers
	}
	if o.MaxPayload > 0 {
		cfg.MaxPayload = o.MaxPayload
	}
	if o.MsgSize > 0 {
		cfg.MsgSize = o.MsgSize
	}
}
