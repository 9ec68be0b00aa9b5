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

import "github.com/google/uuid"

// newCID mints a fresh client identifier for one CLI invocation; every
// command is its own client as far as the daemon is concerned.
func newCID() *uuid.UUID {
	id := uuid.New()
	return &id
}

// parseRIDs converts a list of UUID strings from the command line, exiting
// on the first malformed one.
func parseRIDs(raw []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		dieOnErr(err)
		out = append(out, id)
	}
	return out
}
