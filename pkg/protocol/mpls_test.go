package protocol

import (
	"testing"
)

func TestMPLSPackUnpack(t *testing.T) {
	h := MPLSHeader{
		Type:       3,
		Identifier: 0xC7,
		Path:       5,
		Port:       0x0B,
		Reserved:   2,
		QOS:        6,
		Spare:      1,
		TTL:        0xFE,
	}
	got := UnpackMPLS(h.Pack())
	if got != h {
		t.Errorf("Pack/Unpack round trip: got %+v, want %+v", got, h)
	}
}

func TestMPLSPackMasksOversizedFields(t *testing.T) {
	h := MPLSHeader{Type: 0xFF, Path: 0xFF, Port: 0xFF, QOS: 0xFF, Spare: 0xFF}
	got := UnpackMPLS(h.Pack())
	if got.Type != 3 || got.Path != 7 || got.Port != 15 || got.QOS != 7 || got.Spare != 1 {
		t.Errorf("Oversized fields not masked: %+v", got)
	}
}

func TestMPLSMarshalBinary(t *testing.T) {
	h := MPLSHeader{Type: 1, Identifier: 0x2A, QOS: 2, TTL: 1}
	b := make([]byte, MPLSHeaderSize)
	if err := h.MarshalBinaryTo(b); err != nil {
		t.Fatalf("MarshalBinaryTo failed: %v", err)
	}
	var got MPLSHeader
	if err := got.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if got != h {
		t.Errorf("wire round trip: got %+v, want %+v", got, h)
	}

	if err := h.MarshalBinaryTo(make([]byte, 3)); err == nil {
		t.Error("Expected error marshalling into 3 bytes")
	}
	if err := got.UnmarshalBinary(make([]byte, 3)); err == nil {
		t.Error("Expected error unmarshalling from 3 bytes")
	}
}

func TestFakeIMPLS(t *testing.T) {
	h := FakeIMPLS(5)
	if h.Type != 1 || h.Identifier != 0x2A || h.TTL != 1 {
		t.Errorf("Unexpected constant label pattern: %+v", h)
	}
	if h.QOS != 5 {
		t.Errorf("Expected QOS 5, got %d", h.QOS)
	}
	// QOS wider than 3 bits is masked at construction.
	if got := FakeIMPLS(0xFF).QOS; got != 7 {
		t.Errorf("Expected masked QOS 7, got %d", got)
	}
}
