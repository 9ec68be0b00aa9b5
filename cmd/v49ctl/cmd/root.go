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

package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sbtech/vita49-agent/channel"
	"github.com/sbtech/vita49-agent/expect"
	"github.com/sbtech/vita49-agent/sequence"
)

// RootCmd is the main entry point. Exported so v49ctl could be extended
// without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "v49ctl",
	Short: "Control-plane client for the VITA-49 agent",
}

var (
	rootVerboseFlag bool
	rootSockFlag    string
	rootTimeout     time.Duration
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
	RootCmd.PersistentFlags().StringVar(&rootSockFlag, "sock", "/var/run/v49d.sock", "path to the daemon's control socket")
	RootCmd.PersistentFlags().DurationVar(&rootTimeout, "timeout", 2*time.Second, "how long to wait for a response")
}

// ConfigureVerbosity configures log verbosity based on parsed flags. Must be
// called by any subcommand that wants debug-level logging on -v.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute is the main entry point for the CLI interface.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// dial connects to the daemon's control socket and wraps it as a channel.
func dial() (channel.Channel, error) {
	conn, err := net.Dial("unix", rootSockFlag)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", rootSockFlag, err)
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("unexpected connection type for %s", rootSockFlag)
	}
	return channel.NewUnix(unixConn)
}

// runSequence dials the daemon, runs the named sequence, and returns its
// value and any error to the caller.
func runSequence(name string, a sequence.Args) (any, error) {
	ConfigureVerbosity()
	ch, err := dial()
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	eng := expect.New(ch)
	ctx, cancel := context.WithTimeout(context.Background(), rootTimeout+time.Second)
	defer cancel()
	return sequence.Run(ctx, eng, name, a, rootTimeout)
}

// dieOnErr prints err and exits 1 if it's non-nil; used by subcommand Run
// functions that want a single-line failure path.
func dieOnErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
