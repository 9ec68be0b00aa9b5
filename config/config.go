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

// Package config loads daemon.conf, the section-oriented text configuration
// that hands the core the resource table's file path and a set of agent roles: a
// [global]/[paths]/[log]/[manager] preamble followed by one section per
// worker or control-client instance, naming its class via a control= or
// worker= tag. Grounded on calnex/config/config.go's go-ini Section read
// pattern and ptp/ptp4u/server/config.go's split between a StaticConfig
// (requires a restart) and a DynamicConfig (reloadable, YAML on disk).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-ini/ini"
	"gopkg.in/yaml.v2"
)

// RoleClass distinguishes the two instance classes a daemon.conf section may
// name: a control-client listener or a worker template. Mirrors the
// original's class-registry tag, replacing the linker-section plugin lookup
// with a plain string compare.
type RoleClass string

// Known role classes.
const (
	ClassControl RoleClass = "control"
	ClassWorker  RoleClass = "worker"
)

// Role is one non-preamble section of daemon.conf: a named agent role bound
// to either a control-client listener or a worker template.
type Role struct {
	Name  string
	Class RoleClass
	// Socket is the control= class's listen path; empty for worker roles.
	Socket string
}

// Global holds the [global]/[paths]/[log]/[manager] preamble sections.
type Global struct {
	ResourceConfPath string // [paths] resources=
	PidFile          string // [global] pidfile=
	LogLevel         string // [log] level=
	LogFile          string // [log] file=
	ManagerSocket    string // [manager] socket=
	GraceSeconds     int    // [manager] grace= — shutdown drain/kill grace period
}

// Static is the fully parsed daemon.conf: the preamble plus every named role,
// in file order, so the daemon can spin up listeners and worker templates
// deterministically.
type Static struct {
	Global Global
	Roles  []Role
}

// Load reads path as a daemon.conf file.
func Load(path string) (*Static, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return LoadFile(cfg)
}

// LoadFile builds a Static from an already-parsed ini.File, so tests can
// construct one without touching disk.
func LoadFile(cfg *ini.File) (*Static, error) {
	s := &Static{Global: Global{LogLevel: "warning", GraceSeconds: 5}}

	if sec, err := cfg.GetSection("global"); err == nil {
		s.Global.PidFile = sec.Key("pidfile").String()
	}
	if sec, err := cfg.GetSection("paths"); err == nil {
		s.Global.ResourceConfPath = sec.Key("resources").String()
	}
	if sec, err := cfg.GetSection("log"); err == nil {
		if lvl := sec.Key("level").String(); lvl != "" {
			s.Global.LogLevel = lvl
		}
		s.Global.LogFile = sec.Key("file").String()
	}
	if sec, err := cfg.GetSection("manager"); err == nil {
		s.Global.ManagerSocket = sec.Key("socket").String()
		if g := sec.Key("grace").String(); g != "" {
			n, err := strconv.Atoi(g)
			if err != nil {
				return nil, fmt.Errorf("config: [manager] grace=%q: %w", g, err)
			}
			s.Global.GraceSeconds = n
		}
	}

	for _, sec := range cfg.Sections() {
		switch sec.Name() {
		case ini.DefaultSection, "global", "paths", "log", "manager":
			continue
		}

		role := Role{Name: sec.Name()}
		switch {
		case sec.HasKey("control"):
			role.Class = ClassControl
			role.Socket = sec.Key("control").String()
		case sec.HasKey("worker"):
			role.Class = ClassWorker
		default:
			return nil, fmt.Errorf("config: section %q names neither control= nor worker=", sec.Name())
		}
		s.Roles = append(s.Roles, role)
	}
	return s, nil
}

// Dynamic is the reloadable subset of daemon configuration: log level and the
// pagination/grace-period knobs an operator may adjust without a restart.
// Mirrors ptp/ptp4u/server/config.go's DynamicConfig/ReadDynamicConfig/Write
// trio exactly, adapted to this daemon's own tunables.
type Dynamic struct {
	LogLevel     string `yaml:"log_level"`
	MTU          int    `yaml:"mtu"`
	GraceSeconds int    `yaml:"grace_seconds"`
}

// DefaultDynamic returns the built-in defaults, used when no dynamic config
// file is given.
func DefaultDynamic() Dynamic {
	return Dynamic{LogLevel: "warning", MTU: 5120, GraceSeconds: 5}
}

// ReadDynamic loads a Dynamic config from a YAML file at path.
func ReadDynamic(path string) (*Dynamic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dc := DefaultDynamic()
	if err := yaml.Unmarshal(data, &dc); err != nil {
		return nil, err
	}
	return &dc, nil
}

// Write persists dc to path as YAML, 0644.
func (dc *Dynamic) Write(path string) error {
	data, err := yaml.Marshal(dc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
