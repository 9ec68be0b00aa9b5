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
	"github.com/spf13/cobra"

	"github.com/sbtech/vita49-agent/sequence"
)

var openSIDFlag uint32

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Move a worker from Allocated to Open",
	Run: func(c *cobra.Command, args []string) {
		_, err := runSequence("open", sequence.Args{CID: newCID(), SID: openSIDFlag})
		dieOnErr(err)
	},
}

func init() {
	openCmd.Flags().Uint32Var(&openSIDFlag, "sid", 0, "stream ID to open (required)")
	openCmd.MarkFlagRequired("sid")
	RootCmd.AddCommand(openCmd)
}
