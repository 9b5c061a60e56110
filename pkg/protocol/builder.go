package protocol

import (
	"encoding/binary"
	"fmt"
)

// Plane selects which half of the wire gateway a batch is destined to.
type Plane uint8

const (
	PlaneCP Plane = iota // control plane
	PlaneDP              // data plane
)

func (p Plane) String() string {
	if p == PlaneDP {
		return "DP"
	}
	return "CP"
}

// UplinkPacket is one scheduled uplink MPLS packet. Bytes holds the
// complete pre-prepared wire form: 2-byte network-order length prefix,
// MPLS label, then the ITM bytes. The payload type tag is kept alongside
// so the builder can choose the destination plane without re-parsing.
type UplinkPacket struct {
	Bytes       []byte
	PayloadType PayloadType
}

// Batch is a finished framed VMW message ready for the write queue.
type Batch struct {
	Plane      Plane
	Bytes      []byte
	NumPackets int
}

// Builder merges individually scheduled uplink packets into framed VMW
// batch messages, keeping control-plane and data-plane accumulators
// strictly apart and never letting a batch exceed MaxMPLSBatchSize.
// Mission-data packets go to the data plane without consulting the drop
// policy; everything else is subject to the toSv policy before joining
// the control plane.
type Builder struct {
	emit func(Batch)
	drop func(PayloadType) bool

	pendingControl      []UplinkPacket
	pendingControlBytes int
	pendingData         []UplinkPacket
	pendingDataBytes    int
}

// NewBuilder creates a builder emitting finished batches through emit.
// drop is the toSv drop policy; it may be nil to disable dropping.
func NewBuilder(emit func(Batch), drop func(PayloadType) bool) *Builder {
	if drop == nil {
		drop = func(PayloadType) bool { return false }
	}
	return &Builder{emit: emit, drop: drop}
}

// AddPacket accumulates one uplink packet, flushing the target plane first
// if the packet would push it past the batch size cap.
func (b *Builder) AddPacket(p UplinkPacket) {
	need := len(p.Bytes)
	if p.PayloadType.IsMissionData() {
		if b.pendingDataBytes+need > MaxMPLSBatchSize {
			b.flushData()
		}
		b.pendingData = append(b.pendingData, p)
		b.pendingDataBytes += need
	} else {
		if b.drop(p.PayloadType) {
			return
		}
		if b.pendingControlBytes+need > MaxMPLSBatchSize {
			b.flushControl()
		}
		b.pendingControl = append(b.pendingControl, p)
		b.pendingControlBytes += need
	}
	b.writeIfReady(MaxPacketsPerTimeslot)
}

// Finalize flushes whatever remains, control plane first.
func (b *Builder) Finalize() {
	b.writeIfReady(1)
}

func (b *Builder) writeIfReady(threshold int) {
	if len(b.pendingControl) >= threshold {
		b.flushControl()
	}
	if len(b.pendingData) >= threshold {
		b.flushData()
	}
}

func (b *Builder) flushControl() {
	if len(b.pendingControl) == 0 {
		return
	}
	b.emit(BuildBatch(PlaneCP, b.pendingControl))
	b.pendingControl = nil
	b.pendingControlBytes = 0
}

func (b *Builder) flushData() {
	if len(b.pendingData) == 0 {
		return
	}
	b.emit(BuildBatch(PlaneDP, b.pendingData))
	b.pendingData = nil
	b.pendingDataBytes = 0
}

// PendingControl and PendingData expose accumulator depths for stats.
func (b *Builder) PendingControl() int { return len(b.pendingControl) }
func (b *Builder) PendingData() int    { return len(b.pendingData) }

// BuildBatch produces the on-the-wire bytes of a batch: outer header with
// KBandRecvMsgID, 2-byte packet count, then each packet's pre-prepared
// bytes. The outer length field is patched in last.
func BuildBatch(plane Plane, packets []UplinkPacket) Batch {
	total := VMWHeaderSize + VMWCountSize
	for _, p := range packets {
		total += len(p.Bytes)
	}
	buf := make([]byte, 0, total)
	hdr := make([]byte, VMWHeaderSize)
	// Length is patched after the body is assembled.
	VMWHeader{MsgID: KBandRecvMsgID}.MarshalBinaryTo(hdr)
	buf = append(buf, hdr...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(packets)))
	for _, p := range packets {
		buf = append(buf, p.Bytes...)
	}
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(buf)))
	return Batch{Plane: plane, Bytes: buf, NumPackets: len(packets)}
}

// NewUplinkITM wraps an ITM/VITM in the adapter's fake IMPLS label and
// length prefix. Fixed-size mission-data payloads lose their last payload
// byte, emulating the downstream hardware. qosForITEData is the configured
// QOS used for VITMs carrying ITE data messages.
func NewUplinkITM(itm []byte, qosForITEData uint8) (UplinkPacket, error) {
	hdr, err := ParseITMHeader(itm)
	if err != nil {
		return UplinkPacket{}, err
	}
	pt := hdr.PayloadType()

	body := itm
	var qos uint8
	if hdr.IsVITM() {
		qos = QOSOAM
		if ite, err := ParseITEHeader(itm[ITMHeaderSize:]); err == nil && ite.IsData() {
			qos = qosForITEData
		}
	} else {
		qos = uint8(pt)
		if pt.IsMissionData() && len(body) > ITMHeaderSize {
			body = body[:len(body)-1]
		}
	}

	wire := make([]byte, LengthPrefixSize+MPLSHeaderSize+len(body))
	binary.BigEndian.PutUint16(wire[0:2], uint16(MPLSHeaderSize+len(body)))
	FakeIMPLS(qos).MarshalBinaryTo(wire[2 : 2+MPLSHeaderSize])
	copy(wire[2+MPLSHeaderSize:], body)
	return UplinkPacket{Bytes: wire, PayloadType: pt}, nil
}

// NewUplinkMPLS prefixes an already-wrapped MPLS packet with its length,
// tagging it with the payload type of the embedded ITM header.
func NewUplinkMPLS(mpls []byte) (UplinkPacket, error) {
	hdr, err := SubPacketITM(mpls)
	if err != nil {
		return UplinkPacket{}, fmt.Errorf("uplink mpls: %w", err)
	}
	wire := make([]byte, LengthPrefixSize+len(mpls))
	binary.BigEndian.PutUint16(wire[0:2], uint16(len(mpls)))
	copy(wire[2:], mpls)
	return UplinkPacket{Bytes: wire, PayloadType: hdr.PayloadType()}, nil
}
