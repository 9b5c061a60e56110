package protocol

import (
	"encoding/binary"
	"fmt"
)

// BatchParseResult carries the decoded content of a downlink VMW batch.
// Sub is a list of non-owning windows into the input buffer, each covering
// one MPLS sub-packet (label + ITM + payload, without the length prefix).
// TrailingBytes counts extraneous bytes after the last sub-packet; they do
// not fail the batch.
type BatchParseResult struct {
	Header        VMWHeader
	Sub           [][]byte
	TrailingBytes int
}

// ParseBatch decodes a received VMW batch message. Any malformation aborts
// the whole batch: the returned error describes the first failure and no
// windows are returned. The windows alias buf and must not outlive it.
func ParseBatch(buf []byte) (BatchParseResult, error) {
	var res BatchParseResult
	if len(buf) < VMWHeaderSize {
		return res, fmt.Errorf("batch: %d bytes, need %d for outer header", len(buf), VMWHeaderSize)
	}
	if err := res.Header.UnmarshalBinary(buf); err != nil {
		return res, err
	}
	if int(res.Header.MsgLen) != len(buf) {
		return res, fmt.Errorf("batch: declared length %d, datagram is %d", res.Header.MsgLen, len(buf))
	}
	rest := buf[VMWHeaderSize:]
	if len(rest) < VMWCountSize {
		return res, fmt.Errorf("batch: truncated before packet count")
	}
	numPackets := int(binary.BigEndian.Uint16(rest[:VMWCountSize]))
	rest = rest[VMWCountSize:]

	res.Sub = make([][]byte, 0, numPackets)
	for i := 0; i < numPackets; i++ {
		if len(rest) < LengthPrefixSize {
			return BatchParseResult{}, fmt.Errorf("batch: truncated before length of sub-packet %d/%d", i+1, numPackets)
		}
		subLen := int(binary.BigEndian.Uint16(rest[:LengthPrefixSize]))
		rest = rest[LengthPrefixSize:]
		if subLen < MinMPLSPacketSize {
			return BatchParseResult{}, fmt.Errorf("batch: sub-packet %d length %d below minimum %d", i+1, subLen, MinMPLSPacketSize)
		}
		if len(rest) < subLen {
			return BatchParseResult{}, fmt.Errorf("batch: sub-packet %d length %d exceeds remaining %d", i+1, subLen, len(rest))
		}
		sub := rest[:subLen]
		if err := validateSubPacket(sub); err != nil {
			return BatchParseResult{}, fmt.Errorf("batch: sub-packet %d: %w", i+1, err)
		}
		res.Sub = append(res.Sub, sub)
		rest = rest[subLen:]
	}
	res.TrailingBytes = len(rest)
	return res, nil
}

// validateSubPacket checks the size of an MPLS sub-packet against the
// fixed/VITM rules of its embedded ITM header.
func validateSubPacket(sub []byte) error {
	hdr, err := ParseITMHeader(sub[MPLSHeaderSize:])
	if err != nil {
		return err
	}
	if hdr.IsVITM() {
		if len(sub) < MinMPLSVITMSize || len(sub) > MaxMPLSVITMSize {
			return fmt.Errorf("vitm size %d outside [%d,%d]", len(sub), MinMPLSVITMSize, MaxMPLSVITMSize)
		}
		return nil
	}
	if len(sub) != FixedMPLSPacketSize {
		return fmt.Errorf("fixed itm size %d, want %d", len(sub), FixedMPLSPacketSize)
	}
	return nil
}

// SubPacketITM returns the ITM header view embedded in an MPLS sub-packet.
func SubPacketITM(sub []byte) (ITMHeader, error) {
	if len(sub) < MinMPLSPacketSize {
		return nil, fmt.Errorf("sub-packet %d bytes, need %d", len(sub), MinMPLSPacketSize)
	}
	return ParseITMHeader(sub[MPLSHeaderSize:])
}
