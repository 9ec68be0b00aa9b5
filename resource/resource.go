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

// Package resource loads and indexes the resource descriptor table the
// manager consumes for Discovery, Enumeration, and Access.
package resource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
	"github.com/google/uuid"
	goversion "github.com/hashicorp/go-version"
)

// supportedSchemaVersion is the newest resource.conf schema this build
// understands. A file's [DEFAULT] schema_version, when present, is rejected
// if it is newer than this.
var supportedSchemaVersion = goversion.Must(goversion.NewVersion("1.0.0"))

// Direction is the data-flow direction of a resource's channel.
type Direction uint8

// Known directions.
const (
	DirectionRX Direction = iota
	DirectionTX
)

func (d Direction) String() string {
	if d == DirectionTX {
		return "TX"
	}
	return "RX"
}

// Descriptor mirrors include/common/resource.h's struct resource_info,
// extended with the access-bit set and a device/direction/channel identifier
// derived from resource.conf's "spec" tag, format AD[12]{T|R}[12].
type Descriptor struct {
	UUID           uuid.UUID
	Name           string
	TXChannels     uint8
	RXChannels     uint8
	RateQ8_8       uint32 // MHz, Q8.8 fixed point
	MinPacketBytes uint16
	MaxPacketBytes uint16
	AccessBits     uint8
	Device         uint8
	Direction      Direction
	Channel        uint8
}

// Table indexes descriptors by UUID (primary key) and by exact name, both
// required for Enumeration.
type Table struct {
	byUUID map[uuid.UUID]*Descriptor
	byName map[string]*Descriptor
	order  []uuid.UUID // insertion order, preserved for deterministic Enumeration/Discovery
}

// NewTable returns an empty resource table, useful for tests and for the manager
// when run without a config file.
func NewTable() *Table {
	return &Table{byUUID: map[uuid.UUID]*Descriptor{}, byName: map[string]*Descriptor{}}
}

// Add inserts or replaces a descriptor. Replacing a name already present in the
// table is permitted (later sections win), mirroring resource.conf's "copy" tag
// semantics where an entry may clone an earlier one.
func (t *Table) Add(d *Descriptor) {
	if _, exists := t.byUUID[d.UUID]; !exists {
		t.order = append(t.order, d.UUID)
	}
	t.byUUID[d.UUID] = d
	if d.Name != "" {
		t.byName[d.Name] = d
	}
}

// ByUUID looks up a descriptor by its primary key.
func (t *Table) ByUUID(id uuid.UUID) (*Descriptor, bool) {
	d, ok := t.byUUID[id]
	return d, ok
}

// ByName looks up a descriptor by exact, case-sensitive name.
func (t *Table) ByName(name string) (*Descriptor, bool) {
	d, ok := t.byName[name]
	return d, ok
}

// All returns every descriptor in insertion (config file) order.
func (t *Table) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byUUID[id])
	}
	return out
}

// Len returns the number of descriptors in the table.
func (t *Table) Len() int { return len(t.order) }

// Load reads resource.conf-style configuration: one section per resource
// (the section name is the UUID), with tags
// copy/name/txch/rxch/rate/min/max/spec. Grounded on calnex/config/config.go's
// go-ini Section-based read pattern.
func Load(path string) (*Table, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("resource: load %s: %w", path, err)
	}
	return LoadFile(cfg)
}

// LoadFile builds a Table from an already-parsed ini.File, so callers (and
// tests) can construct one without touching disk.
func LoadFile(cfg *ini.File) (*Table, error) {
	if err := checkSchemaVersion(cfg); err != nil {
		return nil, err
	}

	t := NewTable()
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		id, err := uuid.Parse(sec.Name())
		if err != nil {
			return nil, fmt.Errorf("resource: section %q is not a UUID: %w", sec.Name(), err)
		}

		d := &Descriptor{UUID: id}
		if copyFrom := sec.Key("copy").String(); copyFrom != "" {
			srcID, err := uuid.Parse(copyFrom)
			if err != nil {
				return nil, fmt.Errorf("resource: section %q copy=%q is not a UUID: %w", sec.Name(), copyFrom, err)
			}
			src, ok := t.ByUUID(srcID)
			if !ok {
				return nil, fmt.Errorf("resource: section %q copy=%q not yet defined", sec.Name(), copyFrom)
			}
			cloned := *src
			cloned.UUID = id
			d = &cloned
		}

		applyTag(sec, "name", &d.Name)
		applyUintTag(sec, "txch", &d.TXChannels)
		applyUintTag(sec, "rxch", &d.RXChannels)
		applyUintTag(sec, "min", &d.MinPacketBytes)
		applyUintTag(sec, "max", &d.MaxPacketBytes)
		if rate := sec.Key("rate").String(); rate != "" {
			q, err := parseRateQ8_8(rate)
			if err != nil {
				return nil, fmt.Errorf("resource: section %q rate=%q: %w", sec.Name(), rate, err)
			}
			d.RateQ8_8 = q
		}
		if spec := sec.Key("spec").String(); spec != "" {
			if err := applySpecTag(d, spec); err != nil {
				return nil, fmt.Errorf("resource: section %q spec=%q: %w", sec.Name(), spec, err)
			}
		}

		t.Add(d)
	}
	return t, nil
}

// checkSchemaVersion rejects a resource.conf whose [DEFAULT] schema_version
// is newer than this build supports; an absent key is treated as compatible
// (older conf files predate the key).
func checkSchemaVersion(cfg *ini.File) error {
	raw := cfg.Section(ini.DefaultSection).Key("schema_version").String()
	if raw == "" {
		return nil
	}
	v, err := goversion.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("resource: malformed schema_version %q: %w", raw, err)
	}
	if v.GreaterThan(supportedSchemaVersion) {
		return fmt.Errorf("resource: schema_version %s is newer than the %s this build supports", v, supportedSchemaVersion)
	}
	return nil
}

func applyTag(sec *ini.Section, key string, dst *string) {
	if v := sec.Key(key).String(); v != "" {
		*dst = v
	}
}

func applyUintTag[T ~uint8 | ~uint16](sec *ini.Section, key string, dst *T) {
	if v := sec.Key(key).String(); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err == nil {
			*dst = T(n)
		}
	}
}

// parseRateQ8_8 parses a decimal MHz value (e.g. "61.44") into a Q8.8 fixed-point
// representation.
func parseRateQ8_8(s string) (uint32, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return uint32(f * 256), nil
}

// applySpecTag parses the "spec" tag of format AD[12]{T|R}[12]: the literal
// prefix "AD", a device digit, a direction letter, and a channel digit.
func applySpecTag(d *Descriptor, spec string) error {
	spec = strings.TrimSpace(spec)
	if len(spec) != 5 || spec[0] != 'A' || spec[1] != 'D' {
		return fmt.Errorf("malformed spec tag %q, want AD[12]{T|R}[12]", spec)
	}
	device := spec[2]
	if device != '1' && device != '2' {
		return fmt.Errorf("malformed device digit in spec tag %q", spec)
	}
	d.Device = device - '0'

	switch dir := spec[3]; dir {
	case 'T':
		d.Direction = DirectionTX
	case 'R':
		d.Direction = DirectionRX
	default:
		return fmt.Errorf("malformed direction letter in spec tag %q", spec)
	}

	channel := spec[4]
	if channel != '1' && channel != '2' {
		return fmt.Errorf("malformed channel digit in spec tag %q", spec)
	}
	d.Channel = channel - '0'
	return nil
}
