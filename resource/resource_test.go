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

package resource

import (
	"testing"

	"github.com/go-ini/ini"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	u1 = "4cb6f860-107e-42b3-a2bc-cda24cff1b73"
	u2 = "f0b6a6de-9e3a-4a36-9c36-8f4a2f6e6d11"
)

func TestLoadFileBasic(t *testing.T) {
	raw := "" +
		"[" + u1 + "]\n" +
		"name=radio0\n" +
		"txch=2\n" +
		"rxch=2\n" +
		"rate=61.44\n" +
		"min=64\n" +
		"max=8192\n" +
		"spec=AD1T1\n"

	f, err := ini.Load([]byte(raw))
	require.NoError(t, err)

	tbl, err := LoadFile(f)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())

	d, ok := tbl.ByUUID(uuid.MustParse(u1))
	require.True(t, ok)
	require.Equal(t, "radio0", d.Name)
	require.Equal(t, uint8(2), d.TXChannels)
	require.Equal(t, uint8(2), d.RXChannels)
	require.Equal(t, uint32(15728), d.RateQ8_8) // 61.44 * 256, truncated
	require.Equal(t, DirectionTX, d.Direction)
	require.Equal(t, uint8(1), d.Device)
	require.Equal(t, uint8(1), d.Channel)

	byName, ok := tbl.ByName("radio0")
	require.True(t, ok)
	require.Equal(t, d, byName)
}

func TestLoadFileCopyClonesThenOverrides(t *testing.T) {
	raw := "" +
		"[" + u1 + "]\n" +
		"name=radio0\n" +
		"txch=2\n" +
		"rxch=2\n" +
		"rate=61.44\n" +
		"min=64\n" +
		"max=8192\n" +
		"spec=AD1T1\n" +
		"[" + u2 + "]\n" +
		"copy=" + u1 + "\n" +
		"name=radio1\n" +
		"spec=AD2R2\n"

	f, err := ini.Load([]byte(raw))
	require.NoError(t, err)

	tbl, err := LoadFile(f)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())

	clone, ok := tbl.ByUUID(uuid.MustParse(u2))
	require.True(t, ok)
	require.Equal(t, "radio1", clone.Name)
	require.Equal(t, uint8(2), clone.TXChannels) // inherited from copy source
	require.Equal(t, DirectionRX, clone.Direction)
	require.Equal(t, uint8(2), clone.Device)
	require.Equal(t, uint8(2), clone.Channel)
	require.Equal(t, uuid.MustParse(u2), clone.UUID) // copy never clones the UUID
}

func TestLoadFileCopyUnknownSourceIsError(t *testing.T) {
	raw := "[" + u1 + "]\ncopy=" + u2 + "\n"
	f, err := ini.Load([]byte(raw))
	require.NoError(t, err)

	_, err = LoadFile(f)
	require.Error(t, err)
}

func TestLoadFileBadSectionNameIsError(t *testing.T) {
	raw := "[not-a-uuid]\nname=x\n"
	f, err := ini.Load([]byte(raw))
	require.NoError(t, err)

	_, err = LoadFile(f)
	require.Error(t, err)
}

func TestLoadFileBadSpecTagIsError(t *testing.T) {
	raw := "[" + u1 + "]\nspec=ZZZ\n"
	f, err := ini.Load([]byte(raw))
	require.NoError(t, err)

	_, err = LoadFile(f)
	require.Error(t, err)
}

func TestLoadFileRejectsNewerSchemaVersion(t *testing.T) {
	raw := "schema_version=9.9.9\n[" + u1 + "]\nname=radio0\n"
	f, err := ini.Load([]byte(raw))
	require.NoError(t, err)

	_, err = LoadFile(f)
	require.Error(t, err)
}

func TestLoadFileAcceptsOlderOrEqualSchemaVersion(t *testing.T) {
	raw := "schema_version=1.0.0\n[" + u1 + "]\nname=radio0\n"
	f, err := ini.Load([]byte(raw))
	require.NoError(t, err)

	tbl, err := LoadFile(f)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
}

func TestAllPreservesInsertionOrder(t *testing.T) {
	tbl := NewTable()
	idA := uuid.MustParse(u2)
	idB := uuid.MustParse(u1)
	tbl.Add(&Descriptor{UUID: idA, Name: "b"})
	tbl.Add(&Descriptor{UUID: idB, Name: "a"})

	all := tbl.All()
	require.Len(t, all, 2)
	require.Equal(t, idA, all[0].UUID)
	require.Equal(t, idB, all[1].UUID)
}
