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

package config

import (
	"path/filepath"
	"testing"

	"github.com/go-ini/ini"
	"github.com/stretchr/testify/require"
)

func TestLoadFilePreamble(t *testing.T) {
	raw := "" +
		"[global]\n" +
		"pidfile=/var/run/v49d.pid\n" +
		"[paths]\n" +
		"resources=/etc/v49/resource.conf\n" +
		"[log]\n" +
		"level=debug\n" +
		"[manager]\n" +
		"socket=/var/run/v49d.sock\n" +
		"grace=10\n"

	f, err := ini.Load([]byte(raw))
	require.NoError(t, err)

	s, err := LoadFile(f)
	require.NoError(t, err)
	require.Equal(t, "/var/run/v49d.pid", s.Global.PidFile)
	require.Equal(t, "/etc/v49/resource.conf", s.Global.ResourceConfPath)
	require.Equal(t, "debug", s.Global.LogLevel)
	require.Equal(t, "/var/run/v49d.sock", s.Global.ManagerSocket)
	require.Equal(t, 10, s.Global.GraceSeconds)
}

func TestLoadFileRoles(t *testing.T) {
	raw := "" +
		"[global]\n" +
		"[tool0]\n" +
		"control=/var/run/v49-tool0.sock\n" +
		"[radio0]\n" +
		"worker=1\n"

	f, err := ini.Load([]byte(raw))
	require.NoError(t, err)

	s, err := LoadFile(f)
	require.NoError(t, err)
	require.Len(t, s.Roles, 2)
	require.Equal(t, "tool0", s.Roles[0].Name)
	require.Equal(t, ClassControl, s.Roles[0].Class)
	require.Equal(t, "/var/run/v49-tool0.sock", s.Roles[0].Socket)
	require.Equal(t, "radio0", s.Roles[1].Name)
	require.Equal(t, ClassWorker, s.Roles[1].Class)
}

func TestLoadFileSectionWithoutClassIsError(t *testing.T) {
	raw := "[global]\n[mystery]\nfoo=bar\n"
	f, err := ini.Load([]byte(raw))
	require.NoError(t, err)

	_, err = LoadFile(f)
	require.Error(t, err)
}

func TestDynamicRoundTrip(t *testing.T) {
	dc := DefaultDynamic()
	dc.LogLevel = "debug"
	dc.MTU = 1400

	path := filepath.Join(t.TempDir(), "dynamic.yaml")
	require.NoError(t, dc.Write(path))

	got, err := ReadDynamic(path)
	require.NoError(t, err)
	require.Equal(t, dc, *got)
}
