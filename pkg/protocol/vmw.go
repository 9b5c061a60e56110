package protocol

import (
	"encoding/binary"
	"fmt"
)

// VMWHeaderSize is the size of the outer header on every VMW message.
const VMWHeaderSize = 8

// VMWCountSize is the size of the sub-packet count that follows the outer
// header in a batch message.
const VMWCountSize = 2

// VMWHeader is the outer {message id, message length} pair carried in
// network order at the start of every VMW message. MsgLen covers the whole
// message, outer header included.
type VMWHeader struct {
	MsgID  uint32
	MsgLen uint32
}

// MarshalBinaryTo writes the outer header in network order into dst.
func (h VMWHeader) MarshalBinaryTo(dst []byte) error {
	if len(dst) < VMWHeaderSize {
		return fmt.Errorf("vmw: need %d bytes, have %d", VMWHeaderSize, len(dst))
	}
	binary.BigEndian.PutUint32(dst[0:4], h.MsgID)
	binary.BigEndian.PutUint32(dst[4:8], h.MsgLen)
	return nil
}

// UnmarshalBinary decodes the outer header from network order bytes.
func (h *VMWHeader) UnmarshalBinary(b []byte) error {
	if len(b) < VMWHeaderSize {
		return fmt.Errorf("vmw: need %d bytes, have %d", VMWHeaderSize, len(b))
	}
	h.MsgID = binary.BigEndian.Uint32(b[0:4])
	h.MsgLen = binary.BigEndian.Uint32(b[4:8])
	return nil
}

// SokfMsgSize is the exact size of a start-of-K-frame datagram.
const SokfMsgSize = 12

// MaxKFrameOffset is the largest legal kframe offset; offsets wrap on a
// wheel of MaxKFrameOffset+1 positions.
const MaxKFrameOffset = 9

// NumKFrameOffsets is the size of the offset wheel.
const NumKFrameOffsets = MaxKFrameOffset + 1

// SokfMessage is the 12-byte timing datagram.
type SokfMessage struct {
	VMWHeader
	KFrameOffset uint32
}

// UnmarshalBinary decodes a SOKF datagram. The caller is expected to have
// checked the datagram size already; field validation is separate.
func (m *SokfMessage) UnmarshalBinary(b []byte) error {
	if len(b) < SokfMsgSize {
		return fmt.Errorf("sokf: need %d bytes, have %d", SokfMsgSize, len(b))
	}
	if err := m.VMWHeader.UnmarshalBinary(b); err != nil {
		return err
	}
	m.KFrameOffset = binary.BigEndian.Uint32(b[8:12])
	return nil
}

// MarshalBinary encodes a SOKF datagram.
func (m SokfMessage) MarshalBinary() ([]byte, error) {
	b := make([]byte, SokfMsgSize)
	if err := m.VMWHeader.MarshalBinaryTo(b); err != nil {
		return nil, err
	}
	binary.BigEndian.PutUint32(b[8:12], m.KFrameOffset)
	return b, nil
}
