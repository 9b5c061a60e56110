package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func collectBatches(batches *[]Batch) func(Batch) {
	return func(b Batch) { *batches = append(*batches, b) }
}

func mustUplinkITM(t *testing.T, itm []byte) UplinkPacket {
	t.Helper()
	p, err := NewUplinkITM(itm, DefaultQOSForITEData)
	if err != nil {
		t.Fatalf("NewUplinkITM failed: %v", err)
	}
	return p
}

func TestBuilderPlaneSeparation(t *testing.T) {
	var batches []Batch
	b := NewBuilder(collectBatches(&batches), nil)

	b.AddPacket(mustUplinkITM(t, makeFixedITM(PayloadVoice, 3, 9)))
	b.AddPacket(mustUplinkITM(t, makeFixedITM(PayloadMissionData0, 4, 9)))
	b.AddPacket(mustUplinkITM(t, makeFixedITM(PayloadStatus, 5, 9)))
	if len(batches) != 0 {
		t.Fatalf("Batches emitted before Finalize: %d", len(batches))
	}

	b.Finalize()
	if len(batches) != 2 {
		t.Fatalf("Expected 2 batches, got %d", len(batches))
	}
	// Control plane flushes before the data plane.
	if batches[0].Plane != PlaneCP || batches[0].NumPackets != 2 {
		t.Errorf("First batch: plane %v with %d packets", batches[0].Plane, batches[0].NumPackets)
	}
	if batches[1].Plane != PlaneDP || batches[1].NumPackets != 1 {
		t.Errorf("Second batch: plane %v with %d packets", batches[1].Plane, batches[1].NumPackets)
	}

	// Both batches must parse back cleanly.
	for _, batch := range batches {
		res, err := ParseBatch(batch.Bytes)
		if err != nil {
			t.Fatalf("Emitted %v batch does not parse: %v", batch.Plane, err)
		}
		if len(res.Sub) != batch.NumPackets {
			t.Errorf("%v batch: %d sub-packets, want %d", batch.Plane, len(res.Sub), batch.NumPackets)
		}
	}
}

func TestBuilderTimeslotCap(t *testing.T) {
	var batches []Batch
	b := NewBuilder(collectBatches(&batches), nil)

	for i := 0; i < MaxPacketsPerTimeslot+1; i++ {
		b.AddPacket(mustUplinkITM(t, makeFixedITM(PayloadVoice, 3, 9)))
	}
	if len(batches) != 1 {
		t.Fatalf("Expected 1 batch after exceeding the timeslot cap, got %d", len(batches))
	}
	if batches[0].NumPackets != MaxPacketsPerTimeslot {
		t.Errorf("Capped batch carries %d packets, want %d", batches[0].NumPackets, MaxPacketsPerTimeslot)
	}

	b.Finalize()
	if len(batches) != 2 || batches[1].NumPackets != 1 {
		t.Fatalf("Expected the leftover packet in a second batch, got %d batches", len(batches))
	}
}

func TestBuilderByteCap(t *testing.T) {
	var batches []Batch
	b := NewBuilder(collectBatches(&batches), nil)

	// Maximum-size VITMs: each wire packet occupies
	// LengthPrefixSize+MPLSHeaderSize+ITMHeaderSize+MaxVITMPayloadSize bytes.
	perPacket := LengthPrefixSize + MPLSHeaderSize + ITMHeaderSize + MaxVITMPayloadSize
	fit := MaxMPLSBatchSize / perPacket

	for i := 0; i < fit+1; i++ {
		b.AddPacket(mustUplinkITM(t, makeVITM(PayloadControl, 3, 9, make([]byte, MaxVITMPayloadSize))))
	}
	if len(batches) != 1 {
		t.Fatalf("Expected 1 batch after exceeding the byte cap, got %d", len(batches))
	}
	if batches[0].NumPackets != fit {
		t.Errorf("Byte-capped batch carries %d packets, want %d", batches[0].NumPackets, fit)
	}
	if len(batches[0].Bytes) > VMWHeaderSize+VMWCountSize+MaxMPLSBatchSize {
		t.Errorf("Batch body exceeds cap: %d bytes", len(batches[0].Bytes))
	}
}

func TestBuilderDropPolicy(t *testing.T) {
	var batches []Batch
	dropVoice := func(pt PayloadType) bool { return pt == PayloadVoice }
	b := NewBuilder(collectBatches(&batches), dropVoice)

	b.AddPacket(mustUplinkITM(t, makeFixedITM(PayloadVoice, 3, 9)))
	// Mission data never consults the drop policy.
	b.AddPacket(mustUplinkITM(t, makeFixedITM(PayloadMissionData1, 4, 9)))
	b.Finalize()

	if len(batches) != 1 {
		t.Fatalf("Expected 1 batch, got %d", len(batches))
	}
	if batches[0].Plane != PlaneDP || batches[0].NumPackets != 1 {
		t.Errorf("Surviving batch: plane %v with %d packets", batches[0].Plane, batches[0].NumPackets)
	}
}

func TestNewUplinkITMFixed(t *testing.T) {
	itm := makeFixedITM(PayloadVoice, 3, 9)
	p := mustUplinkITM(t, itm)
	if p.PayloadType != PayloadVoice {
		t.Errorf("Expected payload type voice, got %v", p.PayloadType)
	}
	wantLen := LengthPrefixSize + MPLSHeaderSize + len(itm)
	if len(p.Bytes) != wantLen {
		t.Fatalf("Wire length %d, want %d", len(p.Bytes), wantLen)
	}
	if got := binary.BigEndian.Uint16(p.Bytes[:2]); int(got) != MPLSHeaderSize+len(itm) {
		t.Errorf("Length prefix %d, want %d", got, MPLSHeaderSize+len(itm))
	}
	var label MPLSHeader
	if err := label.UnmarshalBinary(p.Bytes[2:]); err != nil {
		t.Fatalf("label decode failed: %v", err)
	}
	if label.QOS != uint8(PayloadVoice) {
		t.Errorf("Fixed ITM label QOS %d, want payload type %d", label.QOS, PayloadVoice)
	}
	if !bytes.Equal(p.Bytes[2+MPLSHeaderSize:], itm) {
		t.Error("ITM bytes altered in wire form")
	}
}

func TestNewUplinkITMFixedMissionDataTruncation(t *testing.T) {
	itm := makeFixedITM(PayloadMissionData0, 3, 9)
	p := mustUplinkITM(t, itm)
	// Fixed mission data loses its last payload byte.
	wantLen := LengthPrefixSize + MPLSHeaderSize + len(itm) - 1
	if len(p.Bytes) != wantLen {
		t.Errorf("Wire length %d, want %d", len(p.Bytes), wantLen)
	}
}

func TestNewUplinkITMVITMQOS(t *testing.T) {
	// ITE control message inside the VITM: OAM QOS.
	ctl := makeVITM(PayloadControl, 3, 9, []byte{0x00, 0x09})
	p := mustUplinkITM(t, ctl)
	var label MPLSHeader
	if err := label.UnmarshalBinary(p.Bytes[2:]); err != nil {
		t.Fatalf("label decode failed: %v", err)
	}
	if label.QOS != QOSOAM {
		t.Errorf("Control VITM label QOS %d, want %d", label.QOS, QOSOAM)
	}

	// ITE data message: the configured data QOS.
	data := makeVITM(PayloadControl, 3, 9, []byte{0x80, 0x09})
	p = mustUplinkITM(t, data)
	if err := label.UnmarshalBinary(p.Bytes[2:]); err != nil {
		t.Fatalf("label decode failed: %v", err)
	}
	if label.QOS != DefaultQOSForITEData {
		t.Errorf("Data VITM label QOS %d, want %d", label.QOS, DefaultQOSForITEData)
	}
}

func TestNewUplinkMPLS(t *testing.T) {
	sub := makeMPLSSub(makeFixedITM(PayloadStatus, 3, 9))
	p, err := NewUplinkMPLS(sub)
	if err != nil {
		t.Fatalf("NewUplinkMPLS failed: %v", err)
	}
	if p.PayloadType != PayloadStatus {
		t.Errorf("Expected payload type status, got %v", p.PayloadType)
	}
	if got := binary.BigEndian.Uint16(p.Bytes[:2]); int(got) != len(sub) {
		t.Errorf("Length prefix %d, want %d", got, len(sub))
	}
	if !bytes.Equal(p.Bytes[2:], sub) {
		t.Error("MPLS bytes altered in wire form")
	}

	if _, err := NewUplinkMPLS(sub[:MinMPLSPacketSize-1]); err == nil {
		t.Error("Expected error for undersized MPLS packet")
	}
}
