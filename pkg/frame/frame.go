// Package frame holds the opaque transfer frame handle that flows through the
// FOP engine, together with the virtual channel frame counter and the BC
// control frame factory the engine depends on.
package frame

import (
	"bytes"
	"fmt"
)

// Type identifies the service a transfer frame belongs to
type Type int

const (
	TypeAD Type = iota // Sequence-controlled (acknowledged) data
	TypeBD             // Expedited data, bypasses the sliding window
	TypeBC             // Bypass control command (Unlock / Set V(R))
)

// String returns string representation of Type
func (t Type) String() string {
	switch t {
	case TypeAD:
		return "AD"
	case TypeBD:
		return "BD"
	case TypeBC:
		return "BC"
	default:
		return "Unknown"
	}
}

// ControlCommand identifies the command carried by a BC frame
type ControlCommand int

const (
	ControlNone ControlCommand = iota
	ControlUnlock
	ControlSetVR
)

// String returns string representation of ControlCommand
func (c ControlCommand) String() string {
	switch c {
	case ControlNone:
		return "None"
	case ControlUnlock:
		return "Unlock"
	case ControlSetVR:
		return "SetVR"
	default:
		return "Unknown"
	}
}

// Frame is a transfer frame as seen by the FOP: a sequenced unit with a type
// tag and a payload the engine never looks into.
type Frame struct {
	Type     Type
	VCID     uint8
	Sequence uint8 // N(S) for AD frames, BC counter for BC frames

	// Set for BC frames only
	Command ControlCommand
	VR      uint8

	Data []byte
}

// NewAD creates a sequence-controlled frame. The sequence number is assigned
// by the FOP when the frame is accepted.
func NewAD(vcid uint8, data []byte) *Frame {
	return &Frame{Type: TypeAD, VCID: vcid, Data: data}
}

// NewBD creates an expedited frame
func NewBD(vcid uint8, data []byte) *Frame {
	return &Frame{Type: TypeBD, VCID: vcid, Data: data}
}

// Len returns the payload length
func (f *Frame) Len() int {
	return len(f.Data)
}

// String returns a string representation of the frame
func (f *Frame) String() string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Frame{Type=%s, VC=%d, ", f.Type, f.VCID))
	switch f.Type {
	case TypeAD:
		buf.WriteString(fmt.Sprintf("N(S)=%d, ", f.Sequence))
	case TypeBC:
		buf.WriteString(fmt.Sprintf("Cmd=%s, ", f.Command))
		if f.Command == ControlSetVR {
			buf.WriteString(fmt.Sprintf("V(R)=%d, ", f.VR))
		}
	}
	buf.WriteString(fmt.Sprintf("DataLen=%d}", len(f.Data)))
	return buf.String()
}

// Clone creates a deep copy of the frame
func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)

	return &Frame{
		Type:     f.Type,
		VCID:     f.VCID,
		Sequence: f.Sequence,
		Command:  f.Command,
		VR:       f.VR,
		Data:     data,
	}
}
