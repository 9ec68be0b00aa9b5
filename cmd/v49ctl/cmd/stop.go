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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbtech/vita49-agent/protocol"
	"github.com/sbtech/vita49-agent/sequence"
)

var (
	stopSIDFlag  uint32
	stopWhenFlag string
	stopFracFlag uint64
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running worker (the worker accepts only --when relative)",
	Run: func(c *cobra.Command, args []string) {
		interp := protocol.TSRelative
		switch stopWhenFlag {
		case "relative":
			interp = protocol.TSRelative
		case "absolute":
			interp = protocol.TSAbsolute
		default:
			dieOnErr(fmt.Errorf("--when must be relative or absolute, got %q", stopWhenFlag))
		}
		a := sequence.Args{CID: newCID(), SID: stopSIDFlag, TSInterp: &interp, TSFrac: stopFracFlag}
		_, err := runSequence("stop", a)
		dieOnErr(err)
	},
}

func init() {
	stopCmd.Flags().Uint32Var(&stopSIDFlag, "sid", 0, "stream ID to stop (required)")
	stopCmd.Flags().StringVar(&stopWhenFlag, "when", "relative", "relative or absolute")
	stopCmd.Flags().Uint64Var(&stopFracFlag, "sample-count", 0, "sample count sent in the request's fractional timestamp (not examined by the worker)")
	stopCmd.MarkFlagRequired("sid")
	RootCmd.AddCommand(stopCmd)
}
