/*
Copyright (c) VITA-49 Agent Contributors.

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

// v49d is the daemon entry point: it loads resource.conf and daemon.conf,
// binds the manager's control socket, and runs the southbound/northbound
// dispatch loop until asked to shut down. Flag-based main, grounded on
// cmd/ptp4u/main.go's flag.StringVar/flag.IntVar style, reserving cobra for
// the multi-verb v49ctl tool (DESIGN.md's cmd/v49d, cmd/v49ctl entry).
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/sbtech/vita49-agent/channel"
	v49config "github.com/sbtech/vita49-agent/config"
	"github.com/sbtech/vita49-agent/dispatch"
	"github.com/sbtech/vita49-agent/manager"
	"github.com/sbtech/vita49-agent/resource"
)

func main() {
	var (
		daemonConf   string
		resourceConf string
		sockPath     string
		debugAddr    string
		monitorAddr  string
		logLevel     string
		graceSeconds int
	)

	flag.StringVar(&daemonConf, "config", "", "Path to daemon.conf (optional; overrides -sock/-loglevel defaults)")
	flag.StringVar(&resourceConf, "resources", "/etc/v49/resource.conf", "Path to resource.conf")
	flag.StringVar(&sockPath, "sock", "/var/run/v49d.sock", "Unix socket path for tool connections")
	flag.StringVar(&debugAddr, "pprofaddr", "", "host:port for the pprof endpoint")
	flag.StringVar(&monitorAddr, "monitoringaddr", ":8888", "host:port for the /metrics endpoint")
	flag.StringVar(&logLevel, "loglevel", "warning", "Log level: debug, info, warning, error")
	flag.IntVar(&graceSeconds, "grace", 5, "seconds to wait for workers to drain on shutdown")
	flag.Parse()

	if daemonConf != "" {
		dc, err := v49config.Load(daemonConf)
		if err != nil {
			log.Fatal(err)
		}
		if dc.Global.ResourceConfPath != "" {
			resourceConf = dc.Global.ResourceConfPath
		}
		if dc.Global.ManagerSocket != "" {
			sockPath = dc.Global.ManagerSocket
		}
		if dc.Global.LogLevel != "" {
			logLevel = dc.Global.LogLevel
		}
		if dc.Global.GraceSeconds != 0 {
			graceSeconds = dc.Global.GraceSeconds
		}
	}

	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("unrecognized log level: %v", logLevel)
	}

	tbl, err := resource.Load(resourceConf)
	if err != nil {
		log.Fatalf("loading resource table: %v", err)
	}
	log.Infof("loaded %d resources from %s", tbl.Len(), resourceConf)

	d := manager.New(tbl, log.WithField("component", "manager"))
	registry := prometheus.NewRegistry()
	for _, c := range d.Collectors() {
		registry.MustRegister(c)
	}

	if debugAddr != "" {
		log.Warningf("starting profiler on %s", debugAddr)
		go func() {
			log.Println(http.ListenAndServe(debugAddr, nil))
		}()
	}

	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		log.Fatal(http.ListenAndServe(monitorAddr, nil))
	}()

	_ = os.Remove(sockPath)
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		log.Fatalf("binding control socket %s: %v", sockPath, err)
	}
	defer ln.Close()
	log.Infof("listening on %s", sockPath)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		log.Info("received shutdown signal, draining")
		d.Shutdown(time.Duration(graceSeconds) * time.Second)
		cancel()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				log.WithError(err).Warn("accept failed")
			}
			break
		}
		unixConn, ok := conn.(*net.UnixConn)
		if !ok {
			conn.Close()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveClient(ctx, d, unixConn)
		}()
	}
	wg.Wait()
	log.Info("shutdown complete")
}

// serveClient runs one tool connection's southbound read loop until the
// channel closes or ctx is canceled, registering and deregistering it as a
// manager.ControlClient for the duration.
func serveClient(ctx context.Context, d *manager.Daemon, conn *net.UnixConn) {
	ch, err := channel.NewUnix(conn)
	if err != nil {
		log.WithError(err).Warn("wrapping client connection")
		return
	}
	defer ch.Close()

	client := &manager.ControlClient{Ch: ch}
	d.AddClient(client)
	defer d.RemoveClient(client)

	log := log.WithField("component", "dispatch")
	for {
		var closed bool
		select {
		case <-ctx.Done():
			return
		case _, open := <-ch.Readiness():
			closed = !open
		}
		for {
			msg, ok, err := ch.TryRead()
			if err != nil {
				return
			}
			if !ok {
				break
			}
			dispatch.Southbound(ctx, d, client, msg, log)
		}
		if closed {
			return
		}
	}
}
