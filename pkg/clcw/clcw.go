// Package clcw models the Command Link Control Word returned by the receiving
// end of a COP-1 link, and converts it to and from its 32-bit wire form.
package clcw

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Size is the length of an encoded CLCW in bytes
const Size = 4

// COPInEffect value for COP-1
const COP1 uint8 = 1

// Bit positions within the 32-bit word, counted from the least significant bit
const (
	bitControlWordType = 31
	shiftVersion       = 29
	shiftStatus        = 26
	shiftCOP           = 24
	shiftVCID          = 18
	bitNoRF            = 15
	bitNoBitLock       = 14
	bitLockout         = 13
	bitWait            = 12
	bitRetransmit      = 11
	shiftFarmB         = 9
)

var (
	ErrInvalidLength   = errors.New("clcw: invalid length")
	ErrNotCLCW         = errors.New("clcw: control word type is not CLCW")
	ErrUnsupportedCOP  = errors.New("clcw: COP in effect is not COP-1")
	ErrUnsupportedVers = errors.New("clcw: unsupported version")
)

// CLCW is a decoded Command Link Control Word
type CLCW struct {
	Version     uint8
	Status      uint8
	COPInEffect uint8
	VCID        uint8
	NoRF        bool
	NoBitLock   bool
	Lockout     bool
	Wait        bool
	Retransmit  bool
	FarmB       uint8 // FARM-B counter, two bits
	ReportValue uint8 // N(R)
}

// Decode parses a 4-byte CLCW
func Decode(data []byte) (CLCW, error) {
	if len(data) != Size {
		return CLCW{}, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(data))
	}

	w := binary.BigEndian.Uint32(data)
	if w&(1<<bitControlWordType) != 0 {
		return CLCW{}, ErrNotCLCW
	}

	c := CLCW{
		Version:     uint8(w>>shiftVersion) & 0x03,
		Status:      uint8(w>>shiftStatus) & 0x07,
		COPInEffect: uint8(w>>shiftCOP) & 0x03,
		VCID:        uint8(w>>shiftVCID) & 0x3F,
		NoRF:        w&(1<<bitNoRF) != 0,
		NoBitLock:   w&(1<<bitNoBitLock) != 0,
		Lockout:     w&(1<<bitLockout) != 0,
		Wait:        w&(1<<bitWait) != 0,
		Retransmit:  w&(1<<bitRetransmit) != 0,
		FarmB:       uint8(w>>shiftFarmB) & 0x03,
		ReportValue: uint8(w),
	}

	if c.Version != 0 {
		return CLCW{}, ErrUnsupportedVers
	}
	if c.COPInEffect != COP1 {
		return CLCW{}, ErrUnsupportedCOP
	}

	return c, nil
}

// Encode serializes the CLCW to its 4-byte wire form. COPInEffect is forced to COP-1.
func (c CLCW) Encode() []byte {
	var w uint32
	w |= uint32(c.Status&0x07) << shiftStatus
	w |= uint32(COP1) << shiftCOP
	w |= uint32(c.VCID&0x3F) << shiftVCID
	if c.NoRF {
		w |= 1 << bitNoRF
	}
	if c.NoBitLock {
		w |= 1 << bitNoBitLock
	}
	if c.Lockout {
		w |= 1 << bitLockout
	}
	if c.Wait {
		w |= 1 << bitWait
	}
	if c.Retransmit {
		w |= 1 << bitRetransmit
	}
	w |= uint32(c.FarmB&0x03) << shiftFarmB
	w |= uint32(c.ReportValue)

	out := make([]byte, Size)
	binary.BigEndian.PutUint32(out, w)
	return out
}

// String returns a string representation of the CLCW
func (c CLCW) String() string {
	return fmt.Sprintf("CLCW{VC=%d, N(R)=%d, Lockout=%t, Wait=%t, Retransmit=%t, FarmB=%d}",
		c.VCID, c.ReportValue, c.Lockout, c.Wait, c.Retransmit, c.FarmB)
}
