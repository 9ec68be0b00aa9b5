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

	"github.com/sbtech/vita49-agent/sequence"
)

var accessRIDFlag []string

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Request exclusive access to one resource and print the assigned stream ID",
	Run: func(c *cobra.Command, args []string) {
		a := sequence.Args{CID: newCID(), RID: parseRIDs(accessRIDFlag)}
		val, err := runSequence("access", a)
		dieOnErr(err)
		sid, _ := val.(uint32)
		fmt.Println(sid)
	},
}

func init() {
	accessCmd.Flags().StringSliceVar(&accessRIDFlag, "rid", nil, "resource UUID to acquire (required; the daemon accepts exactly one)")
	accessCmd.MarkFlagRequired("rid")
	RootCmd.AddCommand(accessCmd)
}
