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
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sbtech/vita49-agent/protocol"
)

// listCmd talks the local Control protocol directly rather than going
// through the sequence/expect machinery built for Command packets: List is
// a daemon-local verb, not an on-wire VITA-49 packet.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stream IDs the daemon currently has workers for",
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()
		ch, err := dial()
		dieOnErr(err)
		defer ch.Close()

		dieOnErr(ch.Enqueue(protocol.FormatList(nil)))

		deadline := time.After(rootTimeout)
		for {
			select {
			case <-ch.Readiness():
			case <-deadline:
				dieOnErr(fmt.Errorf("timed out waiting for the daemon's list reply"))
			}
			msg, ok, err := ch.TryRead()
			dieOnErr(err)
			if !ok {
				continue
			}
			ctrl, err := protocol.ParseControl(msg)
			dieOnErr(err)
			if ctrl.Verb != protocol.CtrlList || ctrl.List == nil {
				continue
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Stream ID"})
			for _, sid := range ctrl.List.SIDs {
				table.Append([]string{strconv.FormatUint(uint64(sid), 10)})
			}
			table.Render()
			return
		}
	},
}

func init() {
	RootCmd.AddCommand(listCmd)
}
