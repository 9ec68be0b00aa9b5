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

package protocol

// PacketType is the top-level discriminator carried in the common header's top bits.
// Control packets never reach this enum: they are recognized by magic before the
// common header is even parsed (see DecodePacket).
type PacketType uint8

// Known packet types.
const (
	TypeCommand PacketType = 1
	TypeContext PacketType = 2
)

func (t PacketType) String() string {
	switch t {
	case TypeCommand:
		return "Command"
	case TypeContext:
		return "Context"
	default:
		return "Unknown"
	}
}

// TSI selects the interpretation of the integer timestamp field.
type TSI uint8

// Known TSI values.
const (
	TSINone TSI = iota
	TSIUTC
	TSIGPS
	TSIOther
)

func (t TSI) String() string {
	switch t {
	case TSINone:
		return "None"
	case TSIUTC:
		return "UTC"
	case TSIGPS:
		return "GPS"
	case TSIOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// TSF selects the interpretation of the fractional timestamp field.
type TSF uint8

// Known TSF values.
const (
	TSFNone TSF = iota
	TSFSampleCount
	TSFPicoseconds
	TSFFreeRunning
)

func (t TSF) String() string {
	switch t {
	case TSFNone:
		return "None"
	case TSFSampleCount:
		return "SampleCount"
	case TSFPicoseconds:
		return "Picoseconds"
	case TSFFreeRunning:
		return "FreeRunning"
	default:
		return "Unknown"
	}
}

// Role distinguishes a Command packet's direction in the request/response exchange.
type Role uint8

// Known roles.
const (
	RoleRequest Role = iota
	RoleResult
	RoleNotify
	RoleInternal
)

func (r Role) String() string {
	switch r {
	case RoleRequest:
		return "Request"
	case RoleResult:
		return "Result"
	case RoleNotify:
		return "Notify"
	case RoleInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Request identifies the verb carried by a Command packet.
type Request uint8

// Known requests.
const (
	ReqDiscovery Request = iota
	ReqEnumeration
	ReqAccess
	ReqOpen
	ReqConfigure
	ReqStart
	ReqStop
	ReqClose
	ReqRelease
	ReqContextReport
	ReqTimestampControl
)

func (r Request) String() string {
	switch r {
	case ReqDiscovery:
		return "Discovery"
	case ReqEnumeration:
		return "Enumeration"
	case ReqAccess:
		return "Access"
	case ReqOpen:
		return "Open"
	case ReqConfigure:
		return "Configure"
	case ReqStart:
		return "Start"
	case ReqStop:
		return "Stop"
	case ReqClose:
		return "Close"
	case ReqRelease:
		return "Release"
	case ReqContextReport:
		return "ContextReport"
	case ReqTimestampControl:
		return "TimestampControl"
	default:
		return "Unknown"
	}
}

// Result is carried by a Result-role Command packet.
type Result uint8

// Known results.
const (
	ResSuccess Result = iota
	ResUnspecified
	ResInvalidArg
	ResNotFound
	ResAllocFailed
	ResAccessDenied
)

func (r Result) String() string {
	switch r {
	case ResSuccess:
		return "Success"
	case ResUnspecified:
		return "Unspecified"
	case ResInvalidArg:
		return "InvalidArg"
	case ResNotFound:
		return "NotFound"
	case ResAllocFailed:
		return "AllocFailed"
	case ResAccessDenied:
		return "AccessDenied"
	default:
		return "Unknown"
	}
}

// TimestampInterpretation selects how a Stop request's fractional timestamp must be
// read.
type TimestampInterpretation uint8

// Known interpretations.
const (
	TSImmediate TimestampInterpretation = iota
	TSAbsolute
	TSRelative
)

func (t TimestampInterpretation) String() string {
	switch t {
	case TSImmediate:
		return "Immediate"
	case TSAbsolute:
		return "Absolute"
	case TSRelative:
		return "Relative"
	default:
		return "Unknown"
	}
}

// ControlVerb identifies the daemon-local Control packet's operation.
type ControlVerb uint8

// Known control verbs.
const (
	CtrlShutdown ControlVerb = iota
	CtrlStart
	CtrlStop
	CtrlList
)

func (v ControlVerb) String() string {
	switch v {
	case CtrlShutdown:
		return "Shutdown"
	case CtrlStart:
		return "Start"
	case CtrlStop:
		return "Stop"
	case CtrlList:
		return "List"
	default:
		return "Unknown"
	}
}
