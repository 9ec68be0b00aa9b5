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

var closeSIDFlag uint32

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Move a worker to Closed, releasing its access bits",
	Run: func(c *cobra.Command, args []string) {
		_, err := runSequence("close", sequence.Args{CID: newCID(), SID: closeSIDFlag})
		dieOnErr(err)
	},
}

func init() {
	closeCmd.Flags().Uint32Var(&closeSIDFlag, "sid", 0, "stream ID to close (required)")
	closeCmd.MarkFlagRequired("sid")
	RootCmd.AddCommand(closeCmd)
}
