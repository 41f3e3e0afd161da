package channel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"avaneesh/cop1-go/pkg/clcw"
	"avaneesh/cop1-go/pkg/frame"
)

// Envelope layout on every transport:
//
//	sync (2) | body length (2, big-endian) | kind (1) | body | CRC-16 (2)
//
// The CRC covers everything before it.
const (
	SyncByte1 uint8 = 0x1A
	SyncByte2 uint8 = 0xCF

	HeaderSize   = 5
	TrailerSize  = 2
	MaxBodySize  = 1024
	MinEnvelope  = HeaderSize + TrailerSize
	frameHdrSize = 5 // type, vcid, sequence, command, V(R)
)

// Kind identifies what an envelope carries
type Kind uint8

const (
	KindFrame Kind = 0x01 // Transfer frame, ground to spacecraft
	KindCLCW  Kind = 0x02 // CLCW report, spacecraft to ground
)

// String returns string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "Frame"
	case KindCLCW:
		return "CLCW"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(k))
	}
}

var (
	ErrInvalidSync  = errors.New("invalid sync bytes")
	ErrInvalidCRC   = errors.New("CRC check failed")
	ErrTooLarge     = errors.New("envelope body too large")
	ErrTruncated    = errors.New("envelope truncated")
	ErrUnknownKind  = errors.New("unknown envelope kind")
	ErrInvalidFrame = errors.New("invalid frame body")
	ErrNilFrame     = errors.New("nil frame")
)

// Envelope is a decoded transport record; only the field matching Kind is set
type Envelope struct {
	Kind  Kind
	Frame *frame.Frame
	CLCW  clcw.CLCW
}

func encode(kind Kind, body []byte) ([]byte, error) {
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(body))
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(body)+TrailerSize)
	buf[0] = SyncByte1
	buf[1] = SyncByte2
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(body)))
	buf[4] = byte(kind)
	buf = append(buf, body...)
	return AppendCRC(buf), nil
}

// EncodeFrame builds the envelope for a transfer frame
func EncodeFrame(f *frame.Frame) ([]byte, error) {
	if f == nil {
		return nil, ErrNilFrame
	}

	body := make([]byte, frameHdrSize, frameHdrSize+len(f.Data))
	body[0] = byte(f.Type)
	body[1] = f.VCID
	body[2] = f.Sequence
	body[3] = byte(f.Command)
	body[4] = f.VR
	body = append(body, f.Data...)
	return encode(KindFrame, body)
}

// EncodeCLCW builds the envelope for a CLCW report
func EncodeCLCW(c clcw.CLCW) []byte {
	data, _ := encode(KindCLCW, c.Encode())
	return data
}

// bodyLength validates a header and returns the body length it announces
func bodyLength(header []byte) (int, error) {
	if len(header) < HeaderSize {
		return 0, ErrTruncated
	}
	if header[0] != SyncByte1 || header[1] != SyncByte2 {
		return 0, ErrInvalidSync
	}
	n := int(binary.BigEndian.Uint16(header[2:4]))
	if n > MaxBodySize {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	return n, nil
}

// Decode parses one complete envelope
func Decode(data []byte) (Envelope, error) {
	n, err := bodyLength(data)
	if err != nil {
		return Envelope{}, err
	}
	if len(data) != HeaderSize+n+TrailerSize {
		return Envelope{}, fmt.Errorf("%w: have %d bytes, need %d", ErrTruncated, len(data), HeaderSize+n+TrailerSize)
	}
	if !VerifyCRC(data) {
		return Envelope{}, ErrInvalidCRC
	}

	body := data[HeaderSize : HeaderSize+n]
	switch kind := Kind(data[4]); kind {
	case KindFrame:
		f, err := decodeFrame(body)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Kind: kind, Frame: f}, nil
	case KindCLCW:
		c, err := clcw.Decode(body)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Kind: kind, CLCW: c}, nil
	default:
		return Envelope{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func decodeFrame(body []byte) (*frame.Frame, error) {
	if len(body) < frameHdrSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidFrame, len(body))
	}
	t := frame.Type(body[0])
	if t != frame.TypeAD && t != frame.TypeBD && t != frame.TypeBC {
		return nil, fmt.Errorf("%w: type %d", ErrInvalidFrame, body[0])
	}

	data := make([]byte, len(body)-frameHdrSize)
	copy(data, body[frameHdrSize:])

	return &frame.Frame{
		Type:     t,
		VCID:     body[1],
		Sequence: body[2],
		Command:  frame.ControlCommand(body[3]),
		VR:       body[4],
		Data:     data,
	}, nil
}

// readEnvelope reads one envelope from a byte stream. The CRC is checked
// later by Decode.
func readEnvelope(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	n, err := bodyLength(header)
	if err != nil {
		return nil, err
	}

	data := make([]byte, HeaderSize+n+TrailerSize)
	copy(data, header)
	if _, err := io.ReadFull(r, data[HeaderSize:]); err != nil {
		return nil, err
	}
	return data, nil
}
