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
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sbtech/vita49-agent/protocol"
	"github.com/sbtech/vita49-agent/sequence"
)

var enumerateRIDFlag []string

var enumerateCmd = &cobra.Command{
	Use:   "enumerate",
	Short: "Show full descriptors for one or more resources",
	Run: func(c *cobra.Command, args []string) {
		a := sequence.Args{CID: newCID()}
		if len(enumerateRIDFlag) > 0 {
			a.RID = parseRIDs(enumerateRIDFlag)
		}
		val, err := runSequence("enumerate", a)
		dieOnErr(err)
		infos, _ := val.([]protocol.ResourceInfo)

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"UUID", "Name", "TX", "RX", "Rate (Q8.8)", "Min", "Max"})
		for _, info := range infos {
			table.Append([]string{
				info.UUID.String(),
				info.Name,
				strconv.Itoa(int(info.TXChannels)),
				strconv.Itoa(int(info.RXChannels)),
				strconv.Itoa(int(info.RateQ8_8)),
				strconv.Itoa(int(info.MinPacketBytes)),
				strconv.Itoa(int(info.MaxPacketBytes)),
			})
		}
		table.Render()
	},
}

func init() {
	enumerateCmd.Flags().StringSliceVar(&enumerateRIDFlag, "rid", nil, "restrict to these resource UUIDs (default: all)")
	RootCmd.AddCommand(enumerateCmd)
}
