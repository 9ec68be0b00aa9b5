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

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List resource UUIDs the daemon currently advertises",
	Run: func(c *cobra.Command, args []string) {
		val, err := runSequence("discover", sequence.Args{CID: newCID()})
		dieOnErr(err)
		ids, _ := val.([]string)
		for _, id := range ids {
			fmt.Println(id)
		}
	},
}

func init() {
	RootCmd.AddCommand(discoverCmd)
}
