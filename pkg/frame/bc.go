package frame

import "sync"

// Control command encodings (CCSDS 232.0-B)
var (
	unlockCommand = []byte{0x00}
	setVRPrefix   = []byte{0x82, 0x00}
)

// BCFactory builds BC control frames for one virtual channel. BC frames carry
// their own counter, independent of V(S).
type BCFactory struct {
	vcid    uint8
	counter uint8
	mu      sync.Mutex
}

// NewBCFactory creates a factory for the given virtual channel
func NewBCFactory(vcid uint8) *BCFactory {
	return &BCFactory{vcid: vcid}
}

// BuildUnlockFrame builds an Unlock control frame
func (b *BCFactory) BuildUnlockFrame() *Frame {
	data := make([]byte, len(unlockCommand))
	copy(data, unlockCommand)

	return &Frame{
		Type:     TypeBC,
		VCID:     b.vcid,
		Sequence: b.nextCounter(),
		Command:  ControlUnlock,
		Data:     data,
	}
}

// BuildSetVRFrame builds a Set V(R) control frame
func (b *BCFactory) BuildSetVRFrame(vr uint8) *Frame {
	data := make([]byte, 0, len(setVRPrefix)+1)
	data = append(data, setVRPrefix...)
	data = append(data, vr)

	return &Frame{
		Type:     TypeBC,
		VCID:     b.vcid,
		Sequence: b.nextCounter(),
		Command:  ControlSetVR,
		VR:       vr,
		Data:     data,
	}
}

func (b *BCFactory) nextCounter() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.counter
	b.counter++
	return c
}
