package router

import (
	"encoding/binary"
	"net"

	"github.com/rs/zerolog"

	"mia-go/pkg/executor"
	"mia-go/pkg/protocol"
	"mia-go/pkg/stats"
)

// TPNEndpoint exchanges packets with the radio frontend. Inbound packets
// are either bare fixed ITMs or MPLS-wrapped VITMs; outbound packets keep
// their MPLS header. An optional 2-byte internet checksum trailer covers
// each datagram when udp_checksum is enabled.
type TPNEndpoint struct {
	*endpoint
	router   *Router
	counters *stats.Counters
	nodeID   uint8
	checksum bool
}

func newTPNEndpoint(listen string, remote *net.UDPAddr, exec *executor.Executor, log zerolog.Logger, r *Router, counters *stats.Counters, nodeID uint8, checksum bool) (*TPNEndpoint, error) {
	base, err := newEndpoint("tpn", listen, remote, exec, log)
	if err != nil {
		return nil, err
	}
	t := &TPNEndpoint{
		endpoint: base,
		router:   r,
		counters: counters,
		nodeID:   nodeID,
		checksum: checksum,
	}
	base.handle = t.handleRead
	return t, nil
}

// SetChecksum toggles trailer computation. Executor thread only.
func (t *TPNEndpoint) SetChecksum(enabled bool) { t.checksum = enabled }

// OnSokf is part of the tick fan-out. The radio endpoint keeps no
// per-frame state.
func (t *TPNEndpoint) OnSokf() {}

func (t *TPNEndpoint) handleRead(buf []byte) {
	if t.checksum {
		payload, ok := verifyChecksumTrailer(buf)
		if !ok {
			t.counters.DroppedMalformed.Add(1)
			t.log.Warn().Int("size", len(buf)).Msg("TPN checksum mismatch")
			return
		}
		buf = payload
	}
	if len(buf) < protocol.ITMHeaderSize {
		t.counters.DroppedMalformed.Add(1)
		t.log.Warn().Int("size", len(buf)).Msg("TPN packet too short")
		return
	}

	// A bare fixed ITM starts with its header; anything else carries an
	// MPLS label first.
	itm := protocol.ITMHeader(buf)
	if !itm.IsVITM() && len(buf) == protocol.ITMHeaderSize+protocol.FixedITMPayloadSize {
		t.router.routeUplinkITM(buf, itm.SourceNode(), itm.DestNode())
		return
	}

	if len(buf) < protocol.MinMPLSPacketSize {
		t.counters.DroppedMalformed.Add(1)
		t.log.Warn().Int("size", len(buf)).Msg("TPN MPLS packet too short")
		return
	}
	inner := protocol.ITMHeader(buf[protocol.MPLSHeaderSize:])
	src := t.nodeID
	if !inner.PayloadType().IsMissionData() {
		src = inner.SourceNode()
	}
	t.router.routeUplinkMPLS(buf, src, inner.DestNode())
}

// SendMPLS queues an MPLS packet toward the radio. Executor thread only.
// The buffer must be owned by the caller; it is consumed.
func (t *TPNEndpoint) SendMPLS(buf []byte) {
	if t.checksum {
		buf = appendChecksumTrailer(buf)
	}
	t.send(buf, true)
	t.counters.PacketsToTPN.Add(1)
}

// appendChecksumTrailer grows buf by the 2-byte internet checksum of its
// contents.
func appendChecksumTrailer(buf []byte) []byte {
	sum := internetChecksum(buf)
	return binary.BigEndian.AppendUint16(buf, sum)
}

// verifyChecksumTrailer checks and strips the trailer, returning the
// covered payload.
func verifyChecksumTrailer(buf []byte) ([]byte, bool) {
	if len(buf) < 2 {
		return nil, false
	}
	payload := buf[:len(buf)-2]
	want := binary.BigEndian.Uint16(buf[len(buf)-2:])
	return payload, internetChecksum(payload) == want
}

// internetChecksum is the RFC 1071 ones-complement sum over b.
func internetChecksum(b []byte) uint16 {
	var sum uint32
	for len(b) >= 2 {
		sum += uint32(binary.BigEndian.Uint16(b))
		b = b[2:]
	}
	if len(b) == 1 {
		sum += uint32(b[0]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + sum>>16
	}
	return ^uint16(sum)
}
