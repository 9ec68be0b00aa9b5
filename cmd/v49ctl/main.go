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

// v49ctl is the tool-side CLI: one subcommand per control-plane verb,
// dialing the daemon's Unix socket and driving the expect engine to
// completion. Grounded on cmd/ptpcheck's main.go/root.go split.
package main

import "github.com/sbtech/vita49-agent/cmd/v49ctl/cmd"

func main() {
	cmd.Execute()
}
